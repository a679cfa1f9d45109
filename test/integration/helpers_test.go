package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/todo-auth-core/internal/config"
	"github.com/sandeepkv93/todo-auth-core/internal/di"
)

const testPassword = "Valid#Pass1234"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e envelope) code() string {
	if e.Error == nil {
		return ""
	}
	return e.Error.Code
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	Name         string `json:"name"`
}

type testServer struct {
	baseURL string
	client  *http.Client
	redis   *redis.Client
	mr      *miniredis.Miniredis
	cfg     *config.Config
}

type serverOption func(*config.Config)

func newAuthTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := &config.Config{
		AppEnv:                     "test",
		HTTPAddr:                   "127.0.0.1:0",
		DatabaseDriver:             "sqlite",
		DatabaseURL:                fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
		RedisAddr:                  mr.Addr(),
		RedisKeyPrefix:             "itest",
		JWTIssuer:                  "todo-auth-itest",
		JWTAudience:                "todo-app",
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
		AuthRateLimitRPM:           1000,
		APIRateLimitRPM:            1000,
		CORSAllowedOrigins:         []string{"http://localhost:3000"},
		ShutdownTimeout:            time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := di.InitializeApp(context.Background(), cfg, logger, nil)
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	srv := httptest.NewServer(a.Server.Handler)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		srv.Close()
		_ = rdb.Close()
		_ = a.Shutdown(context.Background())
	})
	return &testServer{baseURL: srv.URL, client: srv.Client(), redis: rdb, mr: mr, cfg: cfg}
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope (status %d): %v", resp.StatusCode, err)
	}
	return resp, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", string(env.Data), err)
	}
}

func (s *testServer) url(path string) string { return s.baseURL + path }

// lastCode reads the newest code delivered to email for purpose from the
// verification code stream.
func (s *testServer) lastCode(t *testing.T, email, purpose string) string {
	t.Helper()
	msgs, err := s.redis.XRevRange(context.Background(), s.cfg.RedisKeyPrefix+":verification_codes", "+", "-").Result()
	if err != nil {
		t.Fatalf("read code stream: %v", err)
	}
	for _, m := range msgs {
		if m.Values["email"] == email && m.Values["purpose"] == purpose {
			code, _ := m.Values["code"].(string)
			return code
		}
	}
	t.Fatalf("no %s code delivered to %s", purpose, email)
	return ""
}

func (s *testServer) codeCount(t *testing.T, email string) int {
	t.Helper()
	msgs, err := s.redis.XRange(context.Background(), s.cfg.RedisKeyPrefix+":verification_codes", "-", "+").Result()
	if err != nil {
		t.Fatalf("read code stream: %v", err)
	}
	n := 0
	for _, m := range msgs {
		if m.Values["email"] == email {
			n++
		}
	}
	return n
}

func (s *testServer) register(t *testing.T, email string) {
	t.Helper()
	resp, env := doJSON(t, s.client, http.MethodPost, s.url("/api/v1/auth/register"), map[string]string{
		"email":    email,
		"password": testPassword,
		"name":     "Test User",
	}, nil)
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register %s: status=%d code=%s", email, resp.StatusCode, env.code())
	}
}

// signUp registers and verifies email, returning the pair issued on
// verification.
func (s *testServer) signUp(t *testing.T, email string) tokenPair {
	t.Helper()
	s.register(t, email)
	resp, env := doJSON(t, s.client, http.MethodPost, s.url("/api/v1/auth/verify-email"), map[string]string{
		"email": email,
		"code":  s.lastCode(t, email, "register"),
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify %s: status=%d code=%s", email, resp.StatusCode, env.code())
	}
	var pair tokenPair
	decodeData(t, env, &pair)
	return pair
}

func (s *testServer) login(t *testing.T, email, password string, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	return doJSON(t, s.client, http.MethodPost, s.url("/api/v1/auth/login"), map[string]string{
		"email":    email,
		"password": password,
	}, headers)
}

func (s *testServer) mustLogin(t *testing.T, email string, headers map[string]string) tokenPair {
	t.Helper()
	resp, env := s.login(t, email, testPassword, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status=%d code=%s", email, resp.StatusCode, env.code())
	}
	var pair tokenPair
	decodeData(t, env, &pair)
	return pair
}

func (s *testServer) refresh(t *testing.T, refreshToken string) (*http.Response, envelope) {
	t.Helper()
	return doJSON(t, s.client, http.MethodPost, s.url("/api/v1/auth/refresh"), nil, bearer(refreshToken))
}
