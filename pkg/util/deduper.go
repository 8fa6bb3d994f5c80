package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Deduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDeduper(rdb *redis.Client, ttl time.Duration) *Deduper {
	return &Deduper{rdb: rdb, ttl: ttl}
}

// AcquireOnce tries to acquire a dedup lock for a given handler + event ID.
// returns true if this is the FIRST time processing
// returns false if it's a duplicate
func (d *Deduper) AcquireOnce(ctx context.Context, handler, eventID string) bool {
	key := fmt.Sprintf("dedup:%s:%s", handler, eventID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// Redis 挂了？为了安全：当 redis 不可用时，不阻止处理，返回 true
		return true
	}
	return ok
}

// Release frees the dedup key so a redelivered message gets processed
// again. The guard is against duplicate deliveries of handled events,
// not against retries: a handler that nacks for requeue must release,
// or every redelivery would be skipped as a duplicate.
func (d *Deduper) Release(ctx context.Context, handler, eventID string) {
	key := fmt.Sprintf("dedup:%s:%s", handler, eventID)
	d.rdb.Del(ctx, key)
}
