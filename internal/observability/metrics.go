package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "todo-auth-core"

type AppMetrics struct {
	authLoginCounter      metric.Int64Counter
	authRefreshCounter    metric.Int64Counter
	authLogoutCounter     metric.Int64Counter
	verificationCounter   metric.Int64Counter
	lockoutCounter        metric.Int64Counter
	securityLogFailures   metric.Int64Counter
	repositoryCounter     metric.Int64Counter
	rateLimitCounter      metric.Int64Counter
	rateLimitRetryAfter   metric.Float64Histogram
	accessTokenValidation metric.Int64Counter
	sweepDeleted          metric.Int64Counter
	authRequestDuration   metric.Float64Histogram
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		if err := registerMetrics(mp.Meter(meterName)); err != nil {
			return nil, err
		}
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	if err := registerMetrics(mp.Meter(meterName)); err != nil {
		return nil, err
	}
	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func registerMetrics(meter metric.Meter) error {
	var (
		m   AppMetrics
		err error
	)
	if m.authLoginCounter, err = meter.Int64Counter("auth.login.attempts"); err != nil {
		return err
	}
	if m.authRefreshCounter, err = meter.Int64Counter("auth.refresh.attempts"); err != nil {
		return err
	}
	if m.authLogoutCounter, err = meter.Int64Counter("auth.logout.attempts"); err != nil {
		return err
	}
	if m.verificationCounter, err = meter.Int64Counter("auth.verification.events"); err != nil {
		return err
	}
	if m.lockoutCounter, err = meter.Int64Counter("auth.lockout.events"); err != nil {
		return err
	}
	if m.securityLogFailures, err = meter.Int64Counter("security.log.write_failures"); err != nil {
		return err
	}
	if m.repositoryCounter, err = meter.Int64Counter("repository.operations"); err != nil {
		return err
	}
	if m.rateLimitCounter, err = meter.Int64Counter("http.rate_limit.decisions"); err != nil {
		return err
	}
	if m.rateLimitRetryAfter, err = meter.Float64Histogram("http.rate_limit.retry_after", metric.WithUnit("s")); err != nil {
		return err
	}
	if m.accessTokenValidation, err = meter.Int64Counter("auth.access_token.validations"); err != nil {
		return err
	}
	if m.sweepDeleted, err = meter.Int64Counter("retention.sweep.deleted"); err != nil {
		return err
	}
	if m.authRequestDuration, err = meter.Float64Histogram("auth.request.duration", metric.WithUnit("s")); err != nil {
		return err
	}

	metricsMu.Lock()
	appMetrics = &m
	metricsMu.Unlock()
	return nil
}

func newResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthLogin(ctx context.Context, status string) {
	m := current()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthRefresh(ctx context.Context, status string) {
	m := current()
	if m == nil {
		return
	}
	m.authRefreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func RecordAuthLogout(ctx context.Context, scope, status string) {
	m := current()
	if m == nil {
		return
	}
	m.authLogoutCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("status", status),
	))
}

func RecordVerificationEvent(ctx context.Context, purpose, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.verificationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", purpose),
		attribute.String("outcome", outcome),
	))
}

func RecordLockoutEvent(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.lockoutCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordSecurityLogFailure(ctx context.Context, kind string) {
	m := current()
	if m == nil {
		return
	}
	m.securityLogFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, decision, mode, keyType string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("decision", decision),
		attribute.String("mode", mode),
		attribute.String("key_type", keyType),
	))
}

func RecordRateLimitRetryAfter(ctx context.Context, scope, reason string, retryAfter time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitRetryAfter.Record(ctx, retryAfter.Seconds(), metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("reason", reason),
	))
}

func RecordAccessTokenValidation(ctx context.Context, outcome, source string) {
	m := current()
	if m == nil {
		return
	}
	m.accessTokenValidation.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	))
}

func RecordSweepDeleted(ctx context.Context, entity string, n int64) {
	m := current()
	if m == nil || n <= 0 {
		return
	}
	m.sweepDeleted.Add(ctx, n, metric.WithAttributes(attribute.String("entity", entity)))
}

func RecordAuthRequestDuration(ctx context.Context, flow, outcome string, d time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.authRequestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("outcome", outcome),
	))
}
