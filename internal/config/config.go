package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`

	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"todo_auth"`

	JWTIssuer        string        `env:"JWT_ISSUER" envDefault:"todo-auth-core"`
	JWTAudience      string        `env:"JWT_AUDIENCE" envDefault:"todo-clients"`
	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	JWTAccessTTL     time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	JWTRefreshTTL    time.Duration `env:"JWT_REFRESH_TTL" envDefault:"720h"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	LockoutThreshold int           `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutDuration  time.Duration `env:"LOCKOUT_DURATION" envDefault:"15m"`

	VerificationTTL            time.Duration `env:"VERIFICATION_TTL" envDefault:"10m"`
	VerificationResendCooldown time.Duration `env:"VERIFICATION_RESEND_COOLDOWN" envDefault:"60s"`
	VerificationMaxAttempts    int           `env:"VERIFICATION_MAX_ATTEMPTS" envDefault:"5"`
	VerificationCodeLength     int           `env:"VERIFICATION_CODE_LENGTH" envDefault:"6"`
	VerificationCodePepper     string        `env:"VERIFICATION_CODE_PEPPER"`

	SecurityLogRetention time.Duration `env:"SECURITY_LOG_RETENTION" envDefault:"2160h"`
	SessionRetention     time.Duration `env:"SESSION_RETENTION" envDefault:"720h"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`

	AuthRateLimitRPM   int      `env:"AUTH_RATE_LIMIT_RPM" envDefault:"30"`
	APIRateLimitRPM    int      `env:"API_RATE_LIMIT_RPM" envDefault:"300"`
	RateLimitFailOpen  bool     `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"false"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	OTELServiceName           string        `env:"OTEL_SERVICE_NAME" envDefault:"todo-auth-core"`
	OTELEnvironment           string        `env:"OTEL_ENVIRONMENT" envDefault:"development"`
	OTELExporterOTLPEndpoint  string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELExporterOTLPInsecure  bool          `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELMetricsEnabled        bool          `env:"OTEL_METRICS_ENABLED" envDefault:"false"`
	OTELTracingEnabled        bool          `env:"OTEL_TRACING_ENABLED" envDefault:"false"`
	OTELLogsEnabled           bool          `env:"OTEL_LOGS_ENABLED" envDefault:"false"`
	OTELMetricsExportInterval time.Duration `env:"OTEL_METRICS_EXPORT_INTERVAL" envDefault:"15s"`
	OTELTraceSamplingRatio    float64       `env:"OTEL_TRACE_SAMPLING_RATIO" envDefault:"1"`
	LogLevel                  string        `env:"LOG_LEVEL" envDefault:"info"`

	ShutdownTimeout              time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
	ShutdownHTTPDrainTimeout     time.Duration `env:"SHUTDOWN_HTTP_DRAIN_TIMEOUT" envDefault:"10s"`
	ShutdownObservabilityTimeout time.Duration `env:"SHUTDOWN_OBSERVABILITY_TIMEOUT" envDefault:"5s"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg, err := load()
	profile := ""
	if cfg != nil {
		profile = cfg.AppEnv
	}
	recordConfigLoad(context.Background(), profile, err)
	return cfg, err
}

func load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, invalid("database", fmt.Sprintf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, invalid("database", "DATABASE_URL is required"))
	}
	if len(c.JWTAccessSecret) < 32 {
		errs = append(errs, invalid("jwt", "JWT_ACCESS_SECRET must be at least 32 bytes"))
	}
	if len(c.JWTRefreshSecret) < 32 {
		errs = append(errs, invalid("jwt", "JWT_REFRESH_SECRET must be at least 32 bytes"))
	}
	if c.JWTAccessSecret != "" && c.JWTAccessSecret == c.JWTRefreshSecret {
		errs = append(errs, invalid("jwt", "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= c.JWTAccessTTL {
		errs = append(errs, invalid("jwt", "JWT_REFRESH_TTL must be longer than a positive JWT_ACCESS_TTL"))
	}
	if len(c.VerificationCodePepper) < 16 {
		errs = append(errs, invalid("verification", "VERIFICATION_CODE_PEPPER must be at least 16 bytes"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, invalid("password", "BCRYPT_COST must be between 4 and 31"))
	}
	if c.LockoutThreshold < 1 || c.LockoutDuration <= 0 {
		errs = append(errs, invalid("lockout", "LOCKOUT_THRESHOLD and LOCKOUT_DURATION must be positive"))
	}
	if c.VerificationTTL <= 0 || c.VerificationResendCooldown < 0 || c.VerificationMaxAttempts < 1 {
		errs = append(errs, invalid("verification", "VERIFICATION_TTL, VERIFICATION_RESEND_COOLDOWN and VERIFICATION_MAX_ATTEMPTS must be positive"))
	}
	if c.VerificationCodeLength < 4 || c.VerificationCodeLength > 10 {
		errs = append(errs, invalid("verification", "VERIFICATION_CODE_LENGTH must be between 4 and 10"))
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, invalid("telemetry", "OTEL_TRACE_SAMPLING_RATIO must be within [0,1]"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return normalizeConfigProfile(c.AppEnv) == "production" || normalizeConfigProfile(c.AppEnv) == "prod"
}
