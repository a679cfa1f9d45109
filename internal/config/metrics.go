package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	configMetricsOnce sync.Once
	configLoads       metric.Int64Counter
)

var errParse = errors.New("parse env")

// invalidSetting is one rejected value, tagged with the subsystem it
// configures so load failures can be counted per concern.
type invalidSetting struct {
	concern string
	msg     string
}

func (e invalidSetting) Error() string { return e.msg }

func invalid(concern, msg string) error {
	return invalidSetting{concern: concern, msg: msg}
}

func recordConfigLoad(ctx context.Context, profile string, err error) {
	configMetricsOnce.Do(func() {
		counter, cerr := otel.Meter("todo-auth-core").Int64Counter(
			"config.load.events",
			metric.WithDescription("Configuration loads by profile, outcome and failing concern"),
		)
		if cerr == nil {
			configLoads = counter
		}
	})
	if configLoads == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	configLoads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", normalizeConfigProfile(profile)),
		attribute.String("outcome", outcome),
		attribute.String("concern", classifyConfigLoadError(err)),
	))
}

func normalizeConfigProfile(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "unknown"
	}
	return v
}

// classifyConfigLoadError names the first failing concern: "parse" for
// malformed values, the setting's subsystem for rejected ones.
func classifyConfigLoadError(err error) string {
	var bad invalidSetting
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, errParse):
		return "parse"
	case errors.As(err, &bad):
		return bad.concern
	default:
		return "unknown"
	}
}
