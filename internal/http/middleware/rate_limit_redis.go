package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFixedWindowLimiter counts requests per key in a fixed window shared
// by every replica. The window opens on the first hit and closes when the
// counter key expires.
type RedisFixedWindowLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisFixedWindowLimiter(client redis.UniversalClient, prefix string) *RedisFixedWindowLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisFixedWindowLimiter{client: client, prefix: prefix, now: time.Now}
}

func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = normalizePolicy(policy)
	redisKey := l.prefix + ":ratelimit:" + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}
	window, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit ttl: %w", err)
	}
	// first hit of a window, or a counter that lost its expiry
	if count == 1 || window < 0 {
		if err := l.client.PExpire(ctx, redisKey, policy.SustainedWindow).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expiry: %w", err)
		}
		window = policy.SustainedWindow
	}
	now := l.now()
	remaining := policy.SustainedLimit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	if count > int64(policy.SustainedLimit) {
		return Decision{
			Allowed:    false,
			RetryAfter: window,
			Remaining:  0,
			ResetAt:    now.Add(window),
			Reason:     "window",
		}, nil
	}
	return Decision{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}, nil
}
