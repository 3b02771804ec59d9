package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scahts-api/internal/dto"
	"github.com/noah-isme/scahts-api/internal/models"
	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
	"github.com/noah-isme/scahts-api/pkg/response"
)

type notificationService interface {
	List(ctx context.Context, recipientID string, query dto.NotificationListQuery) ([]models.Notification, int, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, recipientID, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	Broadcast(ctx context.Context, actor models.Actor, req dto.BulkNotificationRequest) (models.BulkResult, error)
}

// NotificationHandler serves the caller's inbox and the admin broadcast.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler builds a new handler.
func NewNotificationHandler(service notificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List godoc
// @Summary List the caller's notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	query := dto.NotificationListQuery{}
	if raw := c.Query("unread"); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Validation("invalid query parameter", map[string]string{"unread": "must be true or false"}))
			return
		}
		query.UnreadOnly = unread
	}
	var err error
	if query.Page, err = queryInt(c, "page"); err != nil {
		response.Error(c, err)
		return
	}
	if query.PageSize, err = queryInt(c, "pageSize"); err != nil {
		response.Error(c, err)
		return
	}

	items, total, err := h.service.List(c.Request.Context(), actor.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size := query.Page, query.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = len(items)
	}
	response.JSON(c, http.StatusOK, items, &response.Pagination{Page: page, PageSize: size, TotalCount: total})
}

// UnreadCount godoc
// @Summary Count unread notifications
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.UnreadCountResponse{Unread: count}, nil)
}

// MarkRead godoc
// @Summary Mark one notification read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	n, err := h.service.MarkRead(c.Request.Context(), actor.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, n, nil)
}

// MarkAllRead godoc
// @Summary Mark every notification read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /notifications/read-all [put]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	updated, err := h.service.MarkAllRead(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MarkAllReadResponse{Updated: updated}, nil)
}

// Broadcast godoc
// @Summary Create notifications in bulk
// @Description Best effort: each entry is inserted independently and failures are reported by index.
// @Tags Notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BulkNotificationRequest true "Notifications"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/notifications/bulk [post]
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.BulkNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid notification payload"))
		return
	}
	result, err := h.service.Broadcast(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
