package di

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:                     "test",
		HTTPAddr:                   "127.0.0.1:0",
		DatabaseDriver:             "sqlite",
		DatabaseURL:                fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		RedisKeyPrefix:             "todo_auth_test",
		JWTIssuer:                  "iss",
		JWTAudience:                "aud",
		JWTAccessSecret:            "abcdefghijklmnopqrstuvwxyz123456",
		JWTRefreshSecret:           "abcdefghijklmnopqrstuvwxyz654321",
		JWTAccessTTL:               15 * time.Minute,
		JWTRefreshTTL:              24 * time.Hour,
		BcryptCost:                 4,
		LockoutThreshold:           5,
		LockoutDuration:            15 * time.Minute,
		VerificationTTL:            10 * time.Minute,
		VerificationResendCooldown: time.Minute,
		VerificationMaxAttempts:    5,
		VerificationCodeLength:     6,
		VerificationCodePepper:     "pepper-pepper-pepper",
		SecurityLogRetention:       90 * 24 * time.Hour,
		SessionRetention:           30 * 24 * time.Hour,
		AuthRateLimitRPM:           100,
		APIRateLimitRPM:            100,
		CORSAllowedOrigins:         []string{"http://localhost:3000"},
		ShutdownTimeout:            time.Second,
	}
}

func TestInitializeAppServesReadiness(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := InitializeApp(context.Background(), cfg, logger, nil)
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	rr := httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestInitializeSweepJob(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	job, err := InitializeSweepJob(cfg, logger)
	if err != nil {
		t.Fatalf("initialize sweep job: %v", err)
	}
	t.Cleanup(func() { _ = job.Resources.Close() })

	report, err := job.Sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Total() != 0 {
		t.Fatalf("expected empty sweep on fresh database, got %+v", report)
	}
}
