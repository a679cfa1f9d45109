package health

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type CheckResult struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type Checker interface {
	Check(ctx context.Context) CheckResult
}

// ReadinessRunner runs every checker concurrently under a shared timeout. With
// a positive cacheTTL the last verdict is reused until it goes stale, so a
// burst of health checks costs one round of dependency calls.
type ReadinessRunner struct {
	timeout  time.Duration
	cacheTTL time.Duration
	checkers []Checker

	mu       sync.Mutex
	cachedAt time.Time
	ready    bool
	results  []CheckResult
	now      func() time.Time
}

func NewReadinessRunner(timeout, cacheTTL time.Duration, checkers ...Checker) *ReadinessRunner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ReadinessRunner{timeout: timeout, cacheTTL: cacheTTL, checkers: checkers, now: time.Now}
}

func (p *ReadinessRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cacheTTL > 0 && !p.cachedAt.IsZero() && p.now().Sub(p.cachedAt) < p.cacheTTL {
		return p.ready, append([]CheckResult(nil), p.results...)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results := make([]CheckResult, len(p.checkers))
	var g errgroup.Group
	for i, c := range p.checkers {
		g.Go(func() error {
			results[i] = c.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	ready := true
	for _, r := range results {
		if !r.Healthy {
			ready = false
			break
		}
	}
	p.ready, p.results, p.cachedAt = ready, results, p.now()
	return ready, append([]CheckResult(nil), results...)
}

type DBChecker struct {
	db *gorm.DB
}

func NewDBChecker(db *gorm.DB) DBChecker {
	return DBChecker{db: db}
}

func (c DBChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	res := CheckResult{Name: "database"}
	sqlDB, err := c.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	res.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Healthy = true
	return res
}

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) RedisChecker {
	return RedisChecker{client: client}
}

func (c RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	res := CheckResult{Name: "redis"}
	err := c.client.Ping(ctx).Err()
	res.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Healthy = true
	return res
}
