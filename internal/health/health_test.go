package health

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type countingChecker struct {
	name    string
	healthy bool
	calls   atomic.Int32
}

func (c *countingChecker) Check(context.Context) CheckResult {
	c.calls.Add(1)
	res := CheckResult{Name: c.name, Healthy: c.healthy}
	if !c.healthy {
		res.Error = c.name + " down"
	}
	return res
}

func TestReadinessRunnerReportsUnreadyWhenAnyCheckFails(t *testing.T) {
	ok := &countingChecker{name: "db", healthy: true}
	bad := &countingChecker{name: "redis", healthy: false}
	p := NewReadinessRunner(time.Second, 0, ok, bad)

	ready, results := p.Ready(context.Background())
	if ready {
		t.Fatal("expected unready")
	}
	if len(results) != 2 || results[0].Name != "db" || results[1].Error != "redis down" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestReadinessRunnerCachesVerdict(t *testing.T) {
	c := &countingChecker{name: "db", healthy: true}
	p := NewReadinessRunner(time.Second, time.Minute, c)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if ready, _ := p.Ready(context.Background()); !ready {
			t.Fatal("expected ready")
		}
	}
	if got := c.calls.Load(); got != 1 {
		t.Fatalf("expected one check within cache ttl, got %d", got)
	}

	now = now.Add(2 * time.Minute)
	p.Ready(context.Background())
	if got := c.calls.Load(); got != 2 {
		t.Fatalf("expected re-check after ttl, got %d", got)
	}
}

func TestDBCheckerPingsDatabase(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	res := NewDBChecker(db).Check(context.Background())
	if !res.Healthy || res.Name != "database" {
		t.Fatalf("expected healthy database check, got %+v", res)
	}
}

func TestRedisCheckerHealthyAndDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if res := NewRedisChecker(client).Check(context.Background()); !res.Healthy {
		t.Fatalf("expected healthy redis, got %+v", res)
	}

	mr.Close()
	res := NewRedisChecker(client).Check(context.Background())
	if res.Healthy || res.Error == "" {
		t.Fatalf("expected failing redis check, got %+v", res)
	}
}
