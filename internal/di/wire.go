//go:build wireinject
// +build wireinject

package di

import (
	"context"
	"log/slog"

	"github.com/google/wire"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/sandeepkv93/todo-auth-core/internal/app"
	"github.com/sandeepkv93/todo-auth-core/internal/config"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
)

func InitializeApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*app.App, error) {
	wire.Build(
		RepositorySet,
		ServiceSet,
		HTTPSet,
		provideRedis,
		provideResources,
		provideRuntime,
		provideApp,
	)
	return nil, nil
}

func InitializeSweepJob(cfg *config.Config, logger *slog.Logger) (*SweepJob, error) {
	wire.Build(
		provideDB,
		repository.NewSecurityEventRepository,
		repository.NewSessionRepository,
		repository.NewVerificationRepository,
		repository.NewLoginAttemptRepository,
		provideSweeper,
		provideSweepJob,
	)
	return nil, nil
}
