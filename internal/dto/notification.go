package dto

import "github.com/noah-isme/scahts-api/internal/models"

// BulkNotificationRequest is the admin broadcast payload.
type BulkNotificationRequest struct {
	Notifications []models.NotificationSpec `json:"notifications" validate:"required,min=1,max=1000,dive"`
}

// NotificationListQuery mirrors recipient listing filters.
type NotificationListQuery struct {
	UnreadOnly bool
	Page       int
	PageSize   int
}

// UnreadCountResponse reports the recipient's unread total.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// MarkAllReadResponse reports how many notifications were flagged.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
