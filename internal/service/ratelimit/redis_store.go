package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore backs the limiter with Redis so counters are
// shared across the server and worker processes.
type RedisCounterStore struct {
	rdb *redis.Client
}

func NewRedisCounterStore(rdb *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	// Set expiration on first increment; the key dies at the window
	// boundary so rollover needs no reset job.
	if count == 1 {
		s.rdb.Expire(ctx, key, ttl)
	}

	return count, nil
}

func (s *RedisCounterStore) Decrement(ctx context.Context, key string) error {
	return s.rdb.Decr(ctx, key).Err()
}

func (s *RedisCounterStore) Get(ctx context.Context, key string) (int64, error) {
	count, err := s.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}
