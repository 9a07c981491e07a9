package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/raphaelgruber/mooddine/internal/models"
	"github.com/raphaelgruber/mooddine/internal/quota"
)

const (
	fieldCount       = "count"
	fieldWindowStart = "window_start"
)

// RedisStore keeps the quota record as a Redis hash.
// The key expires two windows after the last write; an expired record reads
// as absent, which the gate treats as a fresh window anyway.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore returns a store for key on client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: 2 * models.QuotaWindow}
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get implements quota.Store.
func (s *RedisStore) Get(ctx context.Context) (models.QuotaState, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return models.QuotaState{}, false, fmt.Errorf("hgetall %s: %w", s.key, err)
	}
	if len(fields) == 0 {
		return models.QuotaState{}, false, nil
	}

	rawCount, ok := fields[fieldCount]
	if !ok {
		return models.QuotaState{}, false, fmt.Errorf("%w: %s has no %s field", quota.ErrCorruptState, s.key, fieldCount)
	}
	rawStart, ok := fields[fieldWindowStart]
	if !ok {
		return models.QuotaState{}, false, fmt.Errorf("%w: %s has no %s field", quota.ErrCorruptState, s.key, fieldWindowStart)
	}

	count, err := strconv.Atoi(rawCount)
	if err != nil {
		return models.QuotaState{}, false, fmt.Errorf("%w: count %q: %v", quota.ErrCorruptState, rawCount, err)
	}
	start, err := strconv.ParseInt(rawStart, 10, 64)
	if err != nil {
		return models.QuotaState{}, false, fmt.Errorf("%w: window_start %q: %v", quota.ErrCorruptState, rawStart, err)
	}

	return models.QuotaState{Count: count, WindowStart: start}, true, nil
}

// Set implements quota.Store.
func (s *RedisStore) Set(ctx context.Context, state models.QuotaState) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, fieldCount, state.Count, fieldWindowStart, state.WindowStart)
		pipe.Expire(ctx, s.key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("hset %s: %w", s.key, err)
	}
	return nil
}
