package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
)

const purgeBatchSize = 100

// CacheRepository keeps raw payloads in Redis under a shared namespace.
type CacheRepository struct {
	client    *redis.Client
	namespace string
	logger    *zap.Logger
}

// NewCacheRepository wires a Redis backed payload store. Keys are prefixed
// with namespace so several deployments can share one Redis database.
func NewCacheRepository(client *redis.Client, namespace string, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, namespace: namespace, logger: logger}
}

func (r *CacheRepository) key(suffix string) string {
	if r.namespace == "" {
		return suffix
	}
	return r.namespace + ":" + suffix
}

// Load returns the payload stored at key or ErrCacheMiss.
func (r *CacheRepository) Load(ctx context.Context, key string) ([]byte, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, appErrors.ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return raw, nil
}

// Save writes payload at key with the given expiry.
func (r *CacheRepository) Save(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Set(ctx, r.key(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Purge unlinks every key under prefix, pipelining deletes in batches.
func (r *CacheRepository) Purge(ctx context.Context, prefix string) (int, error) {
	if r.client == nil {
		return 0, nil
	}

	var (
		batch   []string
		removed int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		pipe := r.client.Pipeline()
		pipe.Unlink(ctx, batch...)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		removed += len(batch)
		batch = batch[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, r.key(prefix)+"*", purgeBatchSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == purgeBatchSize {
			if err := flush(); err != nil {
				return removed, fmt.Errorf("purge %s: %w", prefix, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan %s: %w", prefix, err)
	}
	if err := flush(); err != nil {
		return removed, fmt.Errorf("purge %s: %w", prefix, err)
	}

	r.logger.Debug("cache purged", zap.String("prefix", prefix), zap.Int("keys", removed))
	return removed, nil
}
