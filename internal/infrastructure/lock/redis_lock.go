package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

const redisKeyPrefix = "pdm:release:lock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLock shares the generation guard between hosts through redis.
type RedisLock struct {
	client redis.UniversalClient
}

var _ ports.GenerationLock = (*RedisLock)(nil)

func NewRedisLock(client redis.UniversalClient) *RedisLock {
	return &RedisLock{client: client}
}

func (l *RedisLock) TryAcquire(ctx context.Context, rfqID string, owner string, ttl time.Duration) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}
	key := strings.TrimSpace(rfqID)
	if key == "" || strings.TrimSpace(owner) == "" {
		return false, errors.New("rfq id and owner are required")
	}

	ok, err := l.client.SetNX(ctx, redisKeyPrefix+key, owner, ttl).Result()
	if err != nil {
		return false, errs.Wrap(err, "redis setnx generation lock")
	}
	return ok, nil
}

func (l *RedisLock) Refresh(ctx context.Context, rfqID string, owner string, ttl time.Duration) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}

	extended, err := refreshScript.Run(ctx, l.client, []string{redisKeyPrefix + strings.TrimSpace(rfqID)}, owner, ttl.Milliseconds()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, errs.Wrap(err, "redis refresh generation lock")
	}
	return extended == 1, nil
}

func (l *RedisLock) Release(ctx context.Context, rfqID string, owner string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	if err := releaseScript.Run(ctx, l.client, []string{redisKeyPrefix + strings.TrimSpace(rfqID)}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errs.Wrap(err, "redis release generation lock")
	}
	return nil
}
