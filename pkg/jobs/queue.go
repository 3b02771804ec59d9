package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer has no free slot.
	ErrQueueFull = errors.New("queue full")
	// ErrQueueClosed is returned by Enqueue before Start or after Stop.
	ErrQueueClosed = errors.New("queue not running")
)

// Job is one unit of background work.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// FailureHook observes a job whose handler returned an error or panicked.
type FailureHook func(Job, error)

// QueueConfig configures the worker pool. A zero JobTimeout leaves handlers
// bounded only by the queue lifetime.
type QueueConfig struct {
	Workers    int
	BufferSize int
	JobTimeout time.Duration
	OnFailure  FailureHook
	Logger     *zap.Logger
}

// Queue runs jobs on a fixed pool of goroutines. Each job is attempted once;
// failures go to the hook and the log, never back onto the queue.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	running bool
	started bool
}

// NewQueue builds a stopped queue.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Later calls are no-ops; a stopped queue cannot
// be restarted.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true
	q.running = true
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.wg.Add(q.cfg.Workers)
	for i := 0; i < q.cfg.Workers; i++ {
		go q.work()
	}
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers), zap.Int("buffer", q.cfg.BufferSize))
}

// Stop refuses new jobs, lets workers drain what is buffered and waits for
// them. If ctx expires first the in-flight handlers are cancelled.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	close(q.jobs)
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(drained)
	}()

	defer q.cancel()
	select {
	case <-drained:
		q.logger.Info("queue stopped")
		return nil
	case <-ctx.Done():
		abandoned := len(q.jobs)
		q.cancel()
		<-drained
		q.logger.Warn("queue stopped before drain completed", zap.Int("abandoned", abandoned))
		return ctx.Err()
	}
}

// Enqueue hands job to the pool without blocking.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueClosed)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

// Pending reports how many jobs wait in the buffer.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

func (q *Queue) work() {
	defer q.wg.Done()
	for job := range q.jobs {
		if err := q.run(job); err != nil {
			q.logger.Error("job failed",
				zap.String("job_id", job.ID),
				zap.String("type", job.Type),
				zap.Duration("waited", time.Since(job.Enqueued)),
				zap.Error(err),
			)
			if q.cfg.OnFailure != nil {
				q.cfg.OnFailure(job, err)
			}
		}
	}
}

func (q *Queue) run(job Job) (err error) {
	ctx := q.ctx
	if q.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.JobTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return q.handler(ctx, job)
}
