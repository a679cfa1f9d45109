package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/todo-auth-core/internal/config"
	"github.com/sandeepkv93/todo-auth-core/internal/health"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"
)

// BackgroundTask runs until ctx is cancelled.
type BackgroundTask interface {
	Run(ctx context.Context, interval time.Duration) error
}

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Sweeper       BackgroundTask
	Readiness     *health.ReadinessRunner

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	closeResources func() error
	stopOnce       sync.Once
	stop           func()
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	sweeper BackgroundTask,
	closeResources func() error,
	readiness *health.ReadinessRunner,
	stop func(),
) *App {
	return &App{
		Config:                       cfg,
		Logger:                       logger,
		Server:                       server,
		Observability:                runtime,
		Sweeper:                      sweeper,
		Readiness:                    readiness,
		ShutdownTimeout:              cfg.ShutdownTimeout,
		ShutdownHTTPDrainTimeout:     cfg.ShutdownHTTPDrainTimeout,
		ShutdownObservabilityTimeout: cfg.ShutdownObservabilityTimeout,
		closeResources:               closeResources,
		stop:                         stop,
	}
}

// StopBackgroundTasks runs the stop callback at most once.
func (a *App) StopBackgroundTasks() {
	a.stopOnce.Do(func() {
		if a.stop != nil {
			a.stop()
		}
	})
}

// Run serves HTTP and runs the retention sweeper until ctx is cancelled or
// either of them fails, then shuts everything down in order.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if a.Sweeper != nil && a.Config.SweepInterval > 0 {
		g.Go(func() error {
			return a.Sweeper.Run(gctx, a.Config.SweepInterval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.Background())
	})
	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	if a.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.ShutdownTimeout)
		defer cancel()
	}
	a.Logger.Info("shutdown started")
	a.StopBackgroundTasks()

	var errs []error
	drainCtx, cancelDrain := stageContext(ctx, a.ShutdownHTTPDrainTimeout)
	if err := a.Server.Shutdown(drainCtx); err != nil {
		errs = append(errs, fmt.Errorf("http drain: %w", err))
	}
	cancelDrain()

	if a.closeResources != nil {
		if err := a.closeResources(); err != nil {
			errs = append(errs, fmt.Errorf("close resources: %w", err))
		}
	}

	obsCtx, cancelObs := stageContext(ctx, a.ShutdownObservabilityTimeout)
	if err := a.Observability.Shutdown(obsCtx); err != nil {
		errs = append(errs, fmt.Errorf("observability shutdown: %w", err))
	}
	cancelObs()

	if err := errors.Join(errs...); err != nil {
		a.Logger.Error("shutdown finished with errors", "error", err)
		return err
	}
	a.Logger.Info("shutdown complete")
	return nil
}

func stageContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
