package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

var _ Limiter = (*RedisLimiter)(nil)

// RedisLimiter is a fixed-window limiter shared across processes.
// Counting rides on INCR, so concurrent attempts against the same key
// are counted exactly once each. A backend failure fails closed: the
// attempt is reported as not allowed alongside the error.
type RedisLimiter struct {
	client redis.UniversalClient
	max    int
	window time.Duration
}

// NewRedisLimiter creates a limiter allowing max attempts per window,
// counted in Redis under "ratelimit:{action}:{identity}" keys.
func NewRedisLimiter(client redis.UniversalClient, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		max:    max,
		window: window,
	}
}

func (l *RedisLimiter) Check(ctx context.Context, action, identity string) (Result, error) {
	key := redisKeyPrefix + limiterKey(action, identity)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Result{Allowed: false, RetryAfter: l.window}, fmt.Errorf("rate limit increment failed: %w", err)
	}

	// First attempt in a window owns setting the expiry; the key then
	// lapses on its own when the window rolls over.
	if count == 1 {
		if err := l.client.PExpire(ctx, key, l.window).Err(); err != nil {
			return Result{Allowed: false, RetryAfter: l.window}, fmt.Errorf("rate limit expiry failed: %w", err)
		}
	}

	if count > int64(l.max) {
		retryAfter, err := l.client.PTTL(ctx, key).Result()
		if err != nil || retryAfter < 0 {
			retryAfter = l.window
		}
		return Result{Allowed: false, RetryAfter: retryAfter}, nil
	}

	return Result{Allowed: true, Remaining: l.max - int(count)}, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, action, identity string) error {
	return l.client.Del(ctx, redisKeyPrefix+limiterKey(action, identity)).Err()
}
