package analyze

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"attention-engine/internal/model"
)

// RunLock serializes analysis runs per account. A second run request
// while one is in flight is rejected, not queued.
type RunLock interface {
	Acquire(ctx context.Context, account model.AccountID) (bool, error)
	Release(ctx context.Context, account model.AccountID) error
}

// lockTTL bounds how long a crashed run can wedge an account.
const lockTTL = 10 * time.Minute

type RedisRunLock struct {
	client *redis.Client
}

func NewRedisRunLock(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{client: client}
}

func runLockKey(account model.AccountID) string {
	return fmt.Sprintf("runlock:analysis:%s", account)
}

func (l *RedisRunLock) Acquire(ctx context.Context, account model.AccountID) (bool, error) {
	return l.client.SetNX(ctx, runLockKey(account), "1", lockTTL).Result()
}

func (l *RedisRunLock) Release(ctx context.Context, account model.AccountID) error {
	return l.client.Del(ctx, runLockKey(account)).Err()
}
