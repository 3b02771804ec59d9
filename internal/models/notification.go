package models

import "time"

// NotificationType categorises in-app notifications.
type NotificationType string

const (
	NotificationTypeLeaveStatus   NotificationType = "LEAVE_STATUS"
	NotificationTypeGeneral       NotificationType = "GENERAL"
	NotificationTypeAnnouncement  NotificationType = "ANNOUNCEMENT"
	NotificationTypeStudyMaterial NotificationType = "STUDY_MATERIAL"
	NotificationTypeMarks         NotificationType = "MARKS"
	NotificationTypeAttendance    NotificationType = "ATTENDANCE"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeLeaveStatus, NotificationTypeGeneral, NotificationTypeAnnouncement,
		NotificationTypeStudyMaterial, NotificationTypeMarks, NotificationTypeAttendance:
		return true
	}
	return false
}

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipientId"`
	SenderID    *string          `db:"sender_id" json:"senderId,omitempty"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	Type        NotificationType `db:"type" json:"type"`
	Link        *string          `db:"link" json:"link,omitempty"`
	IsRead      bool             `db:"is_read" json:"isRead"`
	ReadAt      *time.Time       `db:"read_at" json:"readAt,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updatedAt"`
}

// NotificationSpec describes a notification to be created.
type NotificationSpec struct {
	RecipientID string           `json:"recipientId" validate:"required"`
	SenderID    string           `json:"senderId,omitempty"`
	Title       string           `json:"title" validate:"required,max=200"`
	Message     string           `json:"message" validate:"required"`
	Type        NotificationType `json:"type" validate:"required"`
	Link        string           `json:"link,omitempty"`
	SendEmail   bool             `json:"sendEmail,omitempty"`
}

// NotificationFilter constrains recipient listing.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Limit       int
	Offset      int
}

// BulkError reports one failed entry of a bulk insert.
type BulkError struct {
	Index       int    `json:"index"`
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
}

// BulkResult summarises a best-effort bulk insert.
type BulkResult struct {
	SuccessCount int            `json:"successCount"`
	Errors       []BulkError    `json:"errors"`
	Created      []Notification `json:"-"`
}
