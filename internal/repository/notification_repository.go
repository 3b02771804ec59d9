package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scahts-api/internal/models"
)

const notificationColumns = `id, recipient_id, sender_id, title, message, type, link, is_read, read_at, created_at, updated_at`

const insertNotification = `INSERT INTO notifications (` + notificationColumns + `)
VALUES (:id, :recipient_id, :sender_id, :title, :message, :type, :link, :is_read, :read_at, :created_at, :updated_at)`

// NotificationRepository persists in-app notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func prepareNotification(n *models.Notification, now time.Time) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = n.CreatedAt
	n.IsRead = false
	n.ReadAt = nil
}

// Create inserts a single unread notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	prepareNotification(n, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, insertNotification, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// CreateMany inserts each notification independently. A failed row does not
// abort the others; failures are reported by input index.
func (r *NotificationRepository) CreateMany(ctx context.Context, items []models.Notification) models.BulkResult {
	result := models.BulkResult{Errors: []models.BulkError{}, Created: make([]models.Notification, 0, len(items))}
	now := time.Now().UTC()
	for i := range items {
		n := items[i]
		prepareNotification(&n, now)
		if _, err := r.db.NamedExecContext(ctx, insertNotification, &n); err != nil {
			result.Errors = append(result.Errors, models.BulkError{
				Index:       i,
				RecipientID: n.RecipientID,
				Message:     err.Error(),
			})
			continue
		}
		result.SuccessCount++
		result.Created = append(result.Created, n)
	}
	return result
}

// ListByRecipient returns a recipient's notifications, newest first, and the total.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	where := ` FROM notifications WHERE recipient_id = $1`
	if filter.UnreadOnly {
		where += ` AND is_read = FALSE`
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	listQuery := fmt.Sprintf(`SELECT %s%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, notificationColumns, where, limit, offset)
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, listQuery, filter.RecipientID); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+where, filter.RecipientID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}

// CountUnread returns the number of unread notifications of a recipient.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`
	var total int
	if err := r.db.GetContext(ctx, &total, query, recipientID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return total, nil
}

// MarkRead flags one notification read. Returns sql.ErrNoRows when the
// notification does not belong to the recipient.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) (*models.Notification, error) {
	query := `UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $3), updated_at = $3
WHERE id = $1 AND recipient_id = $2 RETURNING ` + notificationColumns
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, id, recipientID, at); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return &n, nil
}

// MarkAllRead flags every unread notification of a recipient and returns the count.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error) {
	const query = `UPDATE notifications SET is_read = TRUE, read_at = $2, updated_at = $2 WHERE recipient_id = $1 AND is_read = FALSE`
	result, err := r.db.ExecContext(ctx, query, recipientID, at)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check notification rows: %w", err)
	}
	return rows, nil
}
