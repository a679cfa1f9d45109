package middleware

import (
	"context"
	"math"
	"sync"
	"time"
)

// localLimiter keeps per-key state in process memory. It is the fallback
// when no Redis is configured, so limits are per instance.
type localLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	nextSweep time.Time
	now       func() time.Time
}

type localBucket struct {
	tokens     float64
	lastRefill time.Time
	hits       []time.Time
}

func NewLocalLimiter() Limiter {
	return &localLimiter{buckets: make(map[string]*localBucket), now: time.Now}
}

func (b *localBucket) refill(now time.Time, p RateLimitPolicy) {
	if !now.After(b.lastRefill) {
		return
	}
	b.tokens = math.Min(float64(p.BurstCapacity), b.tokens+now.Sub(b.lastRefill).Seconds()*p.BurstRefillPerSec)
	b.lastRefill = now
}

func (b *localBucket) prune(cutoff time.Time) {
	kept := b.hits[:0]
	for _, hit := range b.hits {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}
	b.hits = kept
}

func (l *localLimiter) sweep(now time.Time, window time.Duration) {
	if now.Before(l.nextSweep) {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.lastRefill) > window {
			delete(l.buckets, k)
		}
	}
	l.nextSweep = now.Add(window)
}

func (l *localLimiter) Allow(_ context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = normalizePolicy(policy)
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now, policy.SustainedWindow)

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{tokens: float64(policy.BurstCapacity), lastRefill: now}
		l.buckets[key] = b
	}
	b.refill(now, policy)
	b.prune(now.Add(-policy.SustainedWindow))

	var bucketWait, windowWait time.Duration
	reason := ""
	if b.tokens < 1 {
		bucketWait = time.Duration(math.Ceil((1 - b.tokens) / policy.BurstRefillPerSec * float64(time.Second)))
		reason = "bucket"
	}
	if len(b.hits) >= policy.SustainedLimit {
		windowWait = max(b.hits[0].Add(policy.SustainedWindow).Sub(now), 0)
		if windowWait >= bucketWait {
			reason = "window"
		}
	}

	if bucketWait <= 0 && windowWait <= 0 {
		b.tokens = math.Max(b.tokens-1, 0)
		b.hits = append(b.hits, now)
		remaining := min(int(math.Floor(b.tokens)), policy.SustainedLimit-len(b.hits))
		return Decision{
			Allowed:   true,
			Remaining: max(remaining, 0),
			ResetAt:   b.hits[0].Add(policy.SustainedWindow),
		}, nil
	}

	wait := max(bucketWait, windowWait, time.Second)
	return Decision{RetryAfter: wait, ResetAt: now.Add(wait), Reason: reason}, nil
}
