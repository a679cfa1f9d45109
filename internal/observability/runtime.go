package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sandeepkv93/todo-auth-core/internal/config"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Runtime owns the telemetry providers for the life of the process.
type Runtime struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider *sdklog.LoggerProvider
}

func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*Runtime, error) {
	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tp, err := InitTracing(ctx, cfg, logger)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}
	return &Runtime{MeterProvider: mp, TracerProvider: tp, LoggerProvider: lp}, nil
}

type shutdownStage struct {
	name string
	fn   func(context.Context) error
}

// stages lists providers in flush order. Logs go last so shutdown errors
// from the other providers can still be exported.
func (r *Runtime) stages() []shutdownStage {
	var out []shutdownStage
	if r.TracerProvider != nil {
		out = append(out, shutdownStage{"traces", r.TracerProvider.Shutdown})
	}
	if r.MeterProvider != nil {
		out = append(out, shutdownStage{"metrics", r.MeterProvider.Shutdown})
	}
	if r.LoggerProvider != nil {
		out = append(out, shutdownStage{"logs", r.LoggerProvider.Shutdown})
	}
	return out
}

// Shutdown flushes and stops every provider, continuing past failures.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, s := range r.stages() {
		if err := s.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s provider: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
