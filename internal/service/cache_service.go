package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scahts-api/internal/models"
	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
)

const pendingQueuePrefix = "leave:pending:"

// PayloadStore persists opaque cache payloads.
type PayloadStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Purge(ctx context.Context, prefix string) (int, error)
}

// PendingQueueCache memoizes the teacher and HOD review queues. Any leave
// transition flushes every queue since one change can move a request
// between gates. Each flush bumps a generation so a read that started
// before the flush cannot store its result afterwards.
type PendingQueueCache struct {
	store      PayloadStore
	metrics    *MetricsService
	ttl        time.Duration
	logger     *zap.Logger
	generation atomic.Uint64
}

// NewPendingQueueCache returns nil when store is nil; a nil cache always misses.
func NewPendingQueueCache(store PayloadStore, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *PendingQueueCache {
	if store == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PendingQueueCache{store: store, metrics: metrics, ttl: ttl, logger: logger}
}

func pendingQueueKey(gate models.LeaveGate, scope string) string {
	return pendingQueuePrefix + string(gate) + ":" + scope
}

// Lookup returns the cached queue for gate and scope. Errors count as misses.
func (c *PendingQueueCache) Lookup(ctx context.Context, gate models.LeaveGate, scope string) ([]models.LeaveRequestDetail, bool) {
	if c == nil {
		return nil, false
	}
	key := pendingQueueKey(gate, scope)
	start := time.Now()
	raw, err := c.store.Load(ctx, key)
	if err != nil {
		c.metrics.RecordCacheOperation(false, time.Since(start))
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("pending queue lookup failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var items []models.LeaveRequestDetail
	if err := json.Unmarshal(raw, &items); err != nil {
		c.metrics.RecordCacheOperation(false, time.Since(start))
		c.logger.Warn("discarding unreadable pending queue", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	c.metrics.RecordCacheOperation(true, time.Since(start))
	return items, true
}

// Generation identifies the flush epoch a read starts in. Pass it to Store.
func (c *PendingQueueCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	return c.generation.Load()
}

// Store caches a queue loaded during generation gen. It is skipped when a
// flush happened since then.
func (c *PendingQueueCache) Store(ctx context.Context, gate models.LeaveGate, scope string, gen uint64, items []models.LeaveRequestDetail) {
	if c == nil {
		return
	}
	key := pendingQueueKey(gate, scope)
	if c.generation.Load() != gen {
		c.logger.Debug("skipping stale pending queue", zap.String("key", key))
		return
	}
	payload, err := json.Marshal(items)
	if err != nil {
		c.logger.Warn("encode pending queue", zap.String("key", key), zap.Error(err))
		return
	}
	start := time.Now()
	if err := c.store.Save(ctx, key, payload, c.ttl); err != nil {
		c.logger.Warn("pending queue store failed", zap.String("key", key), zap.Error(err))
	}
	c.metrics.ObserveCacheWrite(time.Since(start))
}

// Flush drops every cached queue.
func (c *PendingQueueCache) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	c.generation.Add(1)
	if _, err := c.store.Purge(ctx, pendingQueuePrefix); err != nil {
		c.logger.Warn("pending queue flush failed", zap.Error(err))
	}
}
