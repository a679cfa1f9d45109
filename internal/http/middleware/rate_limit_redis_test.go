package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiterForTest(t *testing.T) (*miniredis.Miniredis, *RedisFixedWindowLimiter) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, NewRedisFixedWindowLimiter(client, "test")
}

func TestRedisFixedWindowLimiterCountsAndExpires(t *testing.T) {
	server, limiter := newRedisLimiterForTest(t)
	ctx := context.Background()
	policy := RateLimitPolicy{SustainedLimit: 2, SustainedWindow: time.Minute}

	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "auth:10.0.0.1", policy)
		if err != nil || !d.Allowed {
			t.Fatalf("hit %d expected allowed, got %+v err=%v", i+1, d, err)
		}
	}
	d, err := limiter.Allow(ctx, "auth:10.0.0.1", policy)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed || d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("expected denial with retry within window, got %+v", d)
	}
	if ttl := server.TTL("test:ratelimit:auth:10.0.0.1"); ttl <= 0 {
		t.Fatalf("expected counter ttl, got %s", ttl)
	}

	server.FastForward(61 * time.Second)
	d, err = limiter.Allow(ctx, "auth:10.0.0.1", policy)
	if err != nil || !d.Allowed {
		t.Fatalf("expected new window after expiry, got %+v err=%v", d, err)
	}
}

func TestRedisFixedWindowLimiterBackendErrorFailsClosed(t *testing.T) {
	server, limiter := newRedisLimiterForTest(t)
	server.Close()

	rl := NewRateLimiter(limiter, PerMinute(5), WithScope("auth"))
	rr := hit(rl.Middleware()(okHandler()), "10.0.0.1:1", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 when redis is down, got %d", rr.Code)
	}
}

func TestRedisLimiterSharedAcrossMiddlewareInstances(t *testing.T) {
	_, limiter := newRedisLimiterForTest(t)
	a := NewRateLimiter(limiter, PerMinute(1), WithScope("auth")).Middleware()(okHandler())
	b := NewRateLimiter(limiter, PerMinute(1), WithScope("auth")).Middleware()(okHandler())

	if rr := hit(a, "10.0.0.9:1", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("first replica expected 204, got %d", rr.Code)
	}
	if rr := hit(b, "10.0.0.9:1", ""); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second replica should see shared counter, got %d", rr.Code)
	}
}
