package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/scahts-api/internal/models"
	"github.com/noah-isme/scahts-api/pkg/jobs"
)

const notificationJobType = "notification.batch"

// NotificationBatch groups the notifications produced by one transition.
// Direct entries are created one by one; Fanout entries go through the bulk path.
type NotificationBatch struct {
	Source string
	Direct []models.NotificationSpec
	Fanout []models.NotificationSpec
}

// Empty reports whether the batch carries nothing to send.
func (b NotificationBatch) Empty() bool {
	return len(b.Direct) == 0 && len(b.Fanout) == 0
}

func (b NotificationBatch) size() int {
	return len(b.Direct) + len(b.Fanout)
}

type notificationSender interface {
	Notify(ctx context.Context, spec models.NotificationSpec) (*models.Notification, error)
	NotifyBulk(ctx context.Context, specs []models.NotificationSpec) models.BulkResult
}

// DispatcherConfig sizes the worker pool behind the dispatcher.
type DispatcherConfig struct {
	Workers    int
	BufferSize int
	JobTimeout time.Duration
}

// NotificationDispatcher delivers notification batches on background workers
// once the triggering write has committed. Delivery is at most once.
type NotificationDispatcher struct {
	queue   *jobs.Queue
	sender  notificationSender
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationDispatcher builds the dispatcher and its queue. Call Start
// before dispatching.
func NewNotificationDispatcher(sender notificationSender, metrics *MetricsService, logger *zap.Logger, cfg DispatcherConfig) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &NotificationDispatcher{sender: sender, metrics: metrics, logger: logger}
	d.queue = jobs.NewQueue("notifications", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		JobTimeout: cfg.JobTimeout,
		OnFailure:  d.onFailure,
		Logger:     logger,
	})
	return d
}

// Start launches the workers.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains queued batches, bounded by ctx.
func (d *NotificationDispatcher) Stop(ctx context.Context) error {
	return d.queue.Stop(ctx)
}

// Dispatch enqueues batch without waiting for delivery. A full or stopped
// queue drops the batch with a warning.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, batch NotificationBatch) {
	if batch.Empty() {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: batch}
	if err := d.queue.Enqueue(job); err != nil {
		d.metrics.RecordNotification(NotificationOutcomeDropped, batch.size())
		d.logger.Warn("notification batch dropped",
			zap.String("source", batch.Source),
			zap.Int("notifications", batch.size()),
			zap.Error(err),
		)
	}
}

func (d *NotificationDispatcher) handle(ctx context.Context, job jobs.Job) error {
	batch, ok := job.Payload.(NotificationBatch)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}

	failures := 0
	for _, spec := range batch.Direct {
		if _, err := d.sender.Notify(ctx, spec); err != nil {
			failures++
			d.logger.Warn("notification failed",
				zap.String("source", batch.Source),
				zap.String("recipient_id", spec.RecipientID),
				zap.Error(err),
			)
		}
	}
	if len(batch.Fanout) > 0 {
		result := d.sender.NotifyBulk(ctx, batch.Fanout)
		for _, e := range result.Errors {
			failures++
			d.logger.Warn("bulk notification entry failed",
				zap.String("source", batch.Source),
				zap.Int("index", e.Index),
				zap.String("recipient_id", e.RecipientID),
				zap.String("error", e.Message),
			)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d notifications for %s failed", failures, batch.size(), batch.Source)
	}
	return nil
}

// onFailure counts batches, not notifications.
func (d *NotificationDispatcher) onFailure(job jobs.Job, err error) {
	d.metrics.RecordNotification(NotificationOutcomeIncomplete, 1)
}
