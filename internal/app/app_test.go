package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/config"
	"github.com/sandeepkv93/todo-auth-core/internal/health"
)

type recordingTask struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (r *recordingTask) Run(ctx context.Context, _ time.Duration) error {
	r.started.Store(true)
	<-ctx.Done()
	r.stopped.Store(true)
	return nil
}

func TestNewAssignsDependenciesAndTimeouts(t *testing.T) {
	cfg := &config.Config{
		ShutdownTimeout:              10 * time.Second,
		ShutdownHTTPDrainTimeout:     2 * time.Second,
		ShutdownObservabilityTimeout: 3 * time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := &http.Server{Addr: ":8080", ReadHeaderTimeout: time.Second}
	readiness := health.NewReadinessRunner(100*time.Millisecond, 50*time.Millisecond)
	stops := 0
	stop := func() { stops++ }

	a := New(cfg, logger, server, nil, nil, nil, readiness, stop)
	if a.Config != cfg || a.Logger != logger || a.Server != server || a.Readiness != readiness {
		t.Fatal("expected app dependencies to be assigned")
	}
	if a.ShutdownTimeout != cfg.ShutdownTimeout || a.ShutdownHTTPDrainTimeout != cfg.ShutdownHTTPDrainTimeout || a.ShutdownObservabilityTimeout != cfg.ShutdownObservabilityTimeout {
		t.Fatal("expected app shutdown timeouts copied from config")
	}

	a.StopBackgroundTasks()
	a.StopBackgroundTasks()
	if stops != 1 {
		t.Fatalf("expected stop callback exactly once, got %d", stops)
	}
}

func TestRunStopsServerAndSweeperOnCancel(t *testing.T) {
	cfg := &config.Config{
		SweepInterval:                time.Hour,
		ShutdownTimeout:              5 * time.Second,
		ShutdownHTTPDrainTimeout:     time.Second,
		ShutdownObservabilityTimeout: time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := &http.Server{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second}
	task := &recordingTask{}
	closed := false

	a := New(cfg, logger, server, nil, task, func() error { closed = true; return nil }, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !task.started.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	if !task.stopped.Load() || !closed {
		t.Fatalf("expected sweeper stopped and resources closed, stopped=%v closed=%v", task.stopped.Load(), closed)
	}
}

func TestShutdownReportsResourceErrors(t *testing.T) {
	cfg := &config.Config{ShutdownTimeout: time.Second}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(cfg, logger, &http.Server{}, nil, nil, func() error { return errors.New("close db") }, nil, nil)
	if err := a.Shutdown(context.Background()); err == nil {
		t.Fatal("expected shutdown error from resource close")
	}
}
