package idempotency

import (
	"context"
	"time"

	"github.com/nimasrn/daily-mass/pkg/redis"
)

// KeyLock is a best-effort cross-process mutex on a redis key. The TTL bounds
// how long a crashed holder can block others.
type KeyLock struct {
	redis  redis.RedisAdapter
	prefix string
	ttl    time.Duration
}

func NewKeyLock(redisAdapter redis.RedisAdapter, prefix string, ttl time.Duration) *KeyLock {
	return &KeyLock{redis: redisAdapter, prefix: prefix, ttl: ttl}
}

func (l *KeyLock) TryLock(ctx context.Context, key string) (bool, error) {
	return l.redis.SetNX(ctx, l.prefix+key, []byte("1"), l.ttl)
}

func (l *KeyLock) Unlock(ctx context.Context, key string) error {
	return l.redis.Del(ctx, l.prefix+key)
}
