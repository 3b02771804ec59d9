package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/scahts-api/internal/dto"
	"github.com/noah-isme/scahts-api/internal/models"
	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
	"github.com/noah-isme/scahts-api/pkg/mailer"
)

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	CreateMany(ctx context.Context, items []models.Notification) models.BulkResult
	ListByRecipient(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string, at time.Time) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error)
}

type contactDirectory interface {
	FindContacts(ctx context.Context, userIDs []string) ([]models.Contact, error)
}

// NotificationConfig toggles the email side channel.
type NotificationConfig struct {
	EmailEnabled bool
	BaseURL      string
}

// NotificationService creates and serves in-app notifications.
type NotificationService struct {
	repo      notificationStore
	contacts  contactDirectory
	mailer    mailer.Mailer
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	config    NotificationConfig
}

// NewNotificationService constructs the service. mail and contacts may be nil
// when email is not wanted.
func NewNotificationService(repo notificationStore, contacts contactDirectory, mail mailer.Mailer, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, config NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &NotificationService{
		repo:      repo,
		contacts:  contacts,
		mailer:    mail,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		config:    config,
	}
}

func (s *NotificationService) checkSpec(spec models.NotificationSpec) error {
	if err := s.validator.Struct(spec); err != nil {
		return validationError(err, "invalid notification")
	}
	if !spec.Type.Valid() {
		return appErrors.Validation("invalid notification", map[string]string{"type": "unknown notification type"})
	}
	return nil
}

func buildNotification(spec models.NotificationSpec) models.Notification {
	return models.Notification{
		RecipientID: spec.RecipientID,
		SenderID:    optionalString(spec.SenderID),
		Title:       spec.Title,
		Message:     spec.Message,
		Type:        spec.Type,
		Link:        optionalString(spec.Link),
	}
}

// Notify persists a single notification and, when requested, emails the recipient.
func (s *NotificationService) Notify(ctx context.Context, spec models.NotificationSpec) (*models.Notification, error) {
	if err := s.checkSpec(spec); err != nil {
		return nil, err
	}
	n := buildNotification(spec)
	if err := s.repo.Create(ctx, &n); err != nil {
		s.metrics.RecordNotification(NotificationOutcomeFailed, 1)
		return nil, appErrors.Internal(err, "failed to create notification")
	}
	s.metrics.RecordNotification(NotificationOutcomeCreated, 1)
	if spec.SendEmail {
		s.email(ctx, []models.Notification{n})
	}
	return &n, nil
}

// NotifyBulk inserts every valid spec independently. Invalid specs and failed
// writes are reported per input index; successful rows stay persisted.
func (s *NotificationService) NotifyBulk(ctx context.Context, specs []models.NotificationSpec) models.BulkResult {
	result := models.BulkResult{Errors: []models.BulkError{}}
	positions := make([]int, 0, len(specs))
	batch := make([]models.Notification, 0, len(specs))
	for i, spec := range specs {
		if err := s.checkSpec(spec); err != nil {
			result.Errors = append(result.Errors, models.BulkError{Index: i, RecipientID: spec.RecipientID, Message: err.Error()})
			continue
		}
		positions = append(positions, i)
		batch = append(batch, buildNotification(spec))
	}
	if len(batch) == 0 {
		s.metrics.RecordNotification(NotificationOutcomeFailed, len(result.Errors))
		return result
	}

	stored := s.repo.CreateMany(ctx, batch)
	failed := make(map[int]bool, len(stored.Errors))
	for _, e := range stored.Errors {
		failed[e.Index] = true
		e.Index = positions[e.Index]
		result.Errors = append(result.Errors, e)
	}
	result.SuccessCount = stored.SuccessCount
	result.Created = stored.Created

	var toEmail []models.Notification
	created := 0
	for batchIdx, inputIdx := range positions {
		if failed[batchIdx] {
			continue
		}
		if specs[inputIdx].SendEmail && created < len(stored.Created) {
			toEmail = append(toEmail, stored.Created[created])
		}
		created++
	}

	s.metrics.RecordNotification(NotificationOutcomeCreated, result.SuccessCount)
	s.metrics.RecordNotification(NotificationOutcomeFailed, len(result.Errors))
	if len(toEmail) > 0 {
		s.email(ctx, toEmail)
	}
	return result
}

// Broadcast lets an administrator fan out arbitrary notifications.
func (s *NotificationService) Broadcast(ctx context.Context, actor models.Actor, req dto.BulkNotificationRequest) (models.BulkResult, error) {
	if err := authorize(actor, ActionNotificationBulk); err != nil {
		return models.BulkResult{}, err
	}
	if len(req.Notifications) == 0 {
		return models.BulkResult{}, appErrors.Validation("notifications are required", map[string]string{"notifications": "required"})
	}
	if len(req.Notifications) > 1000 {
		return models.BulkResult{}, appErrors.Validation("too many notifications", map[string]string{"notifications": "must not exceed 1000"})
	}
	specs := make([]models.NotificationSpec, len(req.Notifications))
	for i, spec := range req.Notifications {
		if spec.SenderID == "" {
			spec.SenderID = actor.UserID
		}
		specs[i] = spec
	}
	result := s.NotifyBulk(ctx, specs)
	s.logger.Info("notification broadcast",
		zap.String("actor_id", actor.UserID),
		zap.Int("requested", len(specs)),
		zap.Int("created", result.SuccessCount),
		zap.Int("failed", len(result.Errors)),
	)
	return result, nil
}

// List returns the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID string, query dto.NotificationListQuery) ([]models.Notification, int, error) {
	page, size := normalizePage(query.Page, query.PageSize, 20, 100)
	items, total, err := s.repo.ListByRecipient(ctx, models.NotificationFilter{
		RecipientID: recipientID,
		UnreadOnly:  query.UnreadOnly,
		Limit:       size,
		Offset:      (page - 1) * size,
	})
	if err != nil {
		return nil, 0, appErrors.Internal(err, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, total, nil
}

// UnreadCount returns how many notifications the recipient has not read.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flags a notification read. Only the recipient may do so; anyone
// else gets not found.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id string) (*models.Notification, error) {
	n, err := s.repo.MarkRead(ctx, id, recipientID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Internal(err, "failed to update notification")
	}
	return n, nil
}

// MarkAllRead flags every unread notification of the recipient.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, recipientID, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Internal(err, "failed to update notifications")
	}
	return updated, nil
}

// email sends one message per notification. Failures are logged only.
func (s *NotificationService) email(ctx context.Context, items []models.Notification) {
	if !s.config.EmailEnabled || s.mailer == nil || s.contacts == nil || len(items) == 0 {
		return
	}
	ids := make([]string, 0, len(items))
	for _, n := range items {
		ids = append(ids, n.RecipientID)
	}
	contacts, err := s.contacts.FindContacts(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to resolve notification contacts", zap.Error(err))
		return
	}
	byID := make(map[string]models.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}
	for _, n := range items {
		contact, ok := byID[n.RecipientID]
		if !ok || contact.Email == "" {
			s.logger.Debug("notification recipient has no email", zap.String("recipient_id", n.RecipientID))
			continue
		}
		msg := mailer.Message{
			To:          mail.Address{Name: contact.FullName, Address: contact.Email},
			Subject:     n.Title,
			TextContent: s.emailBody(n),
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			s.metrics.RecordEmail(EmailOutcomeFailed)
			s.logger.Warn("failed to send notification email",
				zap.String("notification_id", n.ID),
				zap.String("recipient_id", n.RecipientID),
				zap.Error(err),
			)
			continue
		}
		s.metrics.RecordEmail(EmailOutcomeSent)
	}
}

func (s *NotificationService) emailBody(n models.Notification) string {
	body := n.Message
	if n.Link != nil && *n.Link != "" {
		link := *n.Link
		if strings.HasPrefix(link, "/") && s.config.BaseURL != "" {
			link = strings.TrimRight(s.config.BaseURL, "/") + link
		}
		body = fmt.Sprintf("%s\n\n%s", body, link)
	}
	return body
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := value
	return &v
}

func normalizePage(page, size, defaultSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size
}
