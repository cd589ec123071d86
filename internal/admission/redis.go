package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tradegate/internal/models"
)

// RedisStore is a WindowStore backed by a Redis counter, shared by every
// process instance pointed at the same server.
//
// Each increment runs INCR, EXPIRE NX and PTTL in one transactional
// pipeline: the counter and its expiry are committed together, so no
// caller can observe an incremented counter without a window attached.
// The expiry is only set when absent, which keeps ResetAt fixed for the
// lifetime of the window instead of sliding on every request.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection with a
// bounded ping before returning.
func NewRedisStore(cfg models.RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Incr implements WindowStore. Any communication failure is reported as
// ErrStoreUnavailable.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (Usage, error) {
	pipe := s.client.TxPipeline()
	counter := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.PTTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return Usage{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// PTTL reports the true remaining window, which may have been set by
	// another instance; a negative reply means the expiry raced away, so
	// fall back to a full window.
	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}

	return Usage{
		Count:   counter.Val(),
		ResetAt: time.Now().Add(remaining),
	}, nil
}

// ActiveKeys counts live admission buckets via SCAN over the key prefix.
func (s *RedisStore) ActiveKeys(ctx context.Context) (int, error) {
	var count int
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

// Healthy pings the server.
func (s *RedisStore) Healthy(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
