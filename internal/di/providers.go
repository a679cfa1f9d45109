package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"

	"github.com/sandeepkv93/todo-auth-core/internal/app"
	"github.com/sandeepkv93/todo-auth-core/internal/config"
	"github.com/sandeepkv93/todo-auth-core/internal/health"
	"github.com/sandeepkv93/todo-auth-core/internal/http/handler"
	"github.com/sandeepkv93/todo-auth-core/internal/http/middleware"
	"github.com/sandeepkv93/todo-auth-core/internal/http/router"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
	"github.com/sandeepkv93/todo-auth-core/internal/security"
	"github.com/sandeepkv93/todo-auth-core/internal/service"
)

var RepositorySet = wire.NewSet(
	provideDB,
	repository.NewTxManager,
	repository.NewUserRepository,
	repository.NewCredentialRepository,
	repository.NewSessionRepository,
	repository.NewVerificationRepository,
	repository.NewLoginAttemptRepository,
	repository.NewSecurityEventRepository,
)

var ServiceSet = wire.NewSet(
	provideJWTManager,
	providePasswordHasher,
	service.NewTokenService,
	provideSessionService,
	provideLockoutService,
	provideVerificationService,
	service.NewSecurityLogService,
	service.NewCredentialService,
	provideCodeSender,
	service.NewAuthService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	provideSweeper,
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewSessionHandler,
	provideReadiness,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

// Resources holds the process-level connections shut down with the app.
type Resources struct {
	DB    *gorm.DB
	Redis redis.UniversalClient
}

func (r Resources) Close() error {
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

func provideDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := repository.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseDriver == "sqlite" {
		if err := repository.Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// provideRedis returns nil when REDIS_ADDR is unset; consumers fall back to
// process-local implementations.
func provideRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		logger.Info("redis disabled; using local rate limiter and log code sender")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func provideResources(db *gorm.DB, client redis.UniversalClient) Resources {
	return Resources{DB: db, Redis: client}
}

func provideRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, logger, lp)
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
}

func providePasswordHasher(cfg *config.Config) *security.PasswordHasher {
	return security.NewPasswordHasher(cfg.BcryptCost)
}

func provideSessionService(sessions repository.SessionRepository, cfg *config.Config) *service.SessionService {
	return service.NewSessionService(sessions, cfg.JWTRefreshTTL)
}

func provideLockoutService(tx repository.TxManager, attempts repository.LoginAttemptRepository, cfg *config.Config) *service.LockoutService {
	return service.NewLockoutService(tx, attempts, cfg.LockoutThreshold, cfg.LockoutDuration)
}

func provideVerificationService(tx repository.TxManager, codes repository.VerificationRepository, cfg *config.Config) *service.VerificationService {
	return service.NewVerificationService(tx, codes, service.VerificationConfig{
		TTL:            cfg.VerificationTTL,
		ResendCooldown: cfg.VerificationResendCooldown,
		MaxAttempts:    cfg.VerificationMaxAttempts,
		CodeLength:     cfg.VerificationCodeLength,
		Pepper:         cfg.VerificationCodePepper,
	})
}

func provideCodeSender(cfg *config.Config, client redis.UniversalClient, logger *slog.Logger) service.CodeSender {
	if client == nil {
		return service.NewLogCodeSender(logger)
	}
	return service.NewRedisStreamCodeSender(client, cfg.RedisKeyPrefix)
}

func provideSweeper(
	events repository.SecurityEventRepository,
	sessions repository.SessionRepository,
	codes repository.VerificationRepository,
	attempts repository.LoginAttemptRepository,
	cfg *config.Config,
	logger *slog.Logger,
) *service.Sweeper {
	return service.NewSweeper(events, sessions, codes, attempts, service.RetentionPolicy{
		SecurityEvents: cfg.SecurityLogRetention,
		Sessions:       cfg.SessionRetention,
	}, logger)
}

func provideReadiness(db *gorm.DB, client redis.UniversalClient) *health.ReadinessRunner {
	checkers := []health.Checker{health.NewDBChecker(db)}
	if client != nil {
		checkers = append(checkers, health.NewRedisChecker(client))
	}
	return health.NewReadinessRunner(2*time.Second, time.Second, checkers...)
}

func provideRouterDependencies(
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	sessionHandler *handler.SessionHandler,
	tokens *service.TokenService,
	sessions *service.SessionService,
	client redis.UniversalClient,
	readiness *health.ReadinessRunner,
) router.Dependencies {
	dep := router.Dependencies{
		AuthHandler:      authHandler,
		SessionHandler:   sessionHandler,
		TokenVerifier:    tokens,
		Sessions:         sessions,
		CORSOrigins:      cfg.CORSAllowedOrigins,
		AuthRateLimitRPM: cfg.AuthRateLimitRPM,
		APIRateLimitRPM:  cfg.APIRateLimitRPM,
		Readiness:        readiness,
		EnableOTelHTTP:   cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	}
	var limiter middleware.Limiter
	mode := middleware.FailClosed
	if client != nil {
		limiter = middleware.NewRedisFixedWindowLimiter(client, cfg.RedisKeyPrefix)
		if cfg.RateLimitFailOpen {
			mode = middleware.FailOpen
		}
	} else {
		limiter = middleware.NewLocalLimiter()
	}
	scoped := func(scope string, rpm int, opts ...middleware.RateLimiterOption) func(http.Handler) http.Handler {
		opts = append([]middleware.RateLimiterOption{middleware.WithScope(scope), middleware.WithFailureMode(mode)}, opts...)
		return middleware.NewRateLimiter(limiter, middleware.PerMinute(rpm), opts...).Middleware()
	}
	dep.GlobalRateLimiter = scoped("api", cfg.APIRateLimitRPM, middleware.WithKeyFunc(middleware.SubjectOrIPKeyFunc(tokens)))
	dep.AuthRateLimiter = scoped("auth", cfg.AuthRateLimitRPM)
	dep.RouteRateLimitPolicies = router.RouteRateLimitPolicies{
		router.RoutePolicyLogin:        scoped("login", cfg.AuthRateLimitRPM),
		router.RoutePolicyRefresh:      scoped("refresh", cfg.AuthRateLimitRPM),
		router.RoutePolicyVerification: scoped("verification", cfg.AuthRateLimitRPM),
		router.RoutePolicyPassword:     scoped("password", cfg.AuthRateLimitRPM),
	}
	return dep
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	sweeper *service.Sweeper,
	resources Resources,
	readiness *health.ReadinessRunner,
) *app.App {
	return app.New(cfg, logger, server, runtime, sweeper, resources.Close, readiness, nil)
}

// SweepJob is the dependency graph of the one-shot sweep command.
type SweepJob struct {
	Sweeper   *service.Sweeper
	Resources Resources
}

func provideSweepJob(sweeper *service.Sweeper, db *gorm.DB) *SweepJob {
	return &SweepJob{Sweeper: sweeper, Resources: Resources{DB: db}}
}
