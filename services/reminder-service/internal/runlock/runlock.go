package runlock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a best-effort Redis lease so overlapping reminder runs from
// multiple replicas don't double-scan. The sent flags remain the real
// idempotency guarantee; the lock only avoids wasted work.
type Lock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func New(client *redis.Client, key string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Lock{client: client, key: key, ttl: ttl}
}

func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, "1", l.ttl).Result()
}

func (l *Lock) Release(ctx context.Context) {
	_ = l.client.Del(ctx, l.key).Err()
}
