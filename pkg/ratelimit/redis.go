package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	failuresKeyPattern = "%s:%s:failures"
	lockoutsKeyPattern = "%s:%s:lockouts"
	lockKeyPattern     = "%s:%s:locked"
)

// RedisAttemptLimiter shares attempt counters between instances through Redis.
type RedisAttemptLimiter struct {
	rdb    redis.Cmdable
	prefix string
	policy AttemptPolicy
}

func NewRedisAttemptLimiter(rdb redis.Cmdable, prefix string, policy AttemptPolicy) *RedisAttemptLimiter {
	if prefix == "" {
		prefix = "attempts"
	}
	return &RedisAttemptLimiter{rdb: rdb, prefix: prefix, policy: policy.withDefaults()}
}

// Attempt counts the attempt with INCR before the guarded check runs, so
// concurrent callers on any instance see a single counter. Once the counter
// reaches MaxAttempts it lives as long as the lock, and every attempt past
// the limit is refused until both expire.
func (l *RedisAttemptLimiter) Attempt(ctx context.Context, key string) (time.Duration, error) {
	failuresKey := fmt.Sprintf(failuresKeyPattern, l.prefix, key)
	lockKey := fmt.Sprintf(lockKeyPattern, l.prefix, key)

	count, err := l.rdb.Incr(ctx, failuresKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count attempt: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, failuresKey, l.policy.Window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set attempt window: %w", err)
		}
	}

	limit := int64(l.policy.MaxAttempts)
	switch {
	case count < limit:
		return 0, nil
	case count > limit:
		return l.remaining(ctx, lockKey, failuresKey)
	}

	lockoutsKey := fmt.Sprintf(lockoutsKeyPattern, l.prefix, key)
	lockouts, err := l.rdb.Incr(ctx, lockoutsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count lockout: %w", err)
	}
	lockout := l.policy.Lockout(int(lockouts))

	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, lockoutsKey, lockout+l.policy.Window)
		pipe.Set(ctx, lockKey, "1", lockout)
		pipe.Expire(ctx, failuresKey, lockout)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to lock key: %w", err)
	}
	return 0, nil
}

func (l *RedisAttemptLimiter) remaining(ctx context.Context, lockKey, failuresKey string) (time.Duration, error) {
	for _, k := range []string{lockKey, failuresKey} {
		ttl, err := l.rdb.TTL(ctx, k).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to read lockout: %w", err)
		}
		// -2 means no key and -1 no expiry.
		if ttl > 0 {
			return ttl, ErrLocked
		}
	}
	return l.policy.BaseLockout, ErrLocked
}

func (l *RedisAttemptLimiter) Reset(ctx context.Context, key string) error {
	err := l.rdb.Del(ctx,
		fmt.Sprintf(failuresKeyPattern, l.prefix, key),
		fmt.Sprintf(lockoutsKeyPattern, l.prefix, key),
		fmt.Sprintf(lockKeyPattern, l.prefix, key),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	return nil
}
