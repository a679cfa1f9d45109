package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
	"github.com/sandeepkv93/todo-auth-core/internal/security"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: time.Now().UTC()} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type capturingSender struct {
	mu   sync.Mutex
	msgs []CodeMessage
}

func (s *capturingSender) SendCode(_ context.Context, msg CodeMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *capturingSender) last(t *testing.T) CodeMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		t.Fatal("expected a code to have been sent")
	}
	return s.msgs[len(s.msgs)-1]
}

func (s *capturingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

type authHarness struct {
	db           *gorm.DB
	clock        *testClock
	sender       *capturingSender
	users        repository.UserRepository
	sessionRepo  repository.SessionRepository
	eventRepo    repository.SecurityEventRepository
	jwtMgr       *security.JWTManager
	tokens       *TokenService
	sessions     *SessionService
	lockout      *LockoutService
	verification *VerificationService
	creds        *CredentialService
	auth         *AuthService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()
	db := newTestDB(t)
	clock := newTestClock()
	tx := repository.NewTxManager(db)

	h := &authHarness{
		db:          db,
		clock:       clock,
		sender:      &capturingSender{},
		users:       repository.NewUserRepository(db),
		sessionRepo: repository.NewSessionRepository(db),
		eventRepo:   repository.NewSecurityEventRepository(db),
		jwtMgr:      security.NewJWTManager("todo-auth", "todo-api", "access-secret-0123456789abcdef", "refresh-secret-0123456789abcdef", 15*time.Minute, 720*time.Hour),
	}
	h.tokens = NewTokenService(h.jwtMgr)
	h.sessions = NewSessionService(h.sessionRepo, 720*time.Hour)
	h.sessions.now = clock.Now
	h.lockout = NewLockoutService(tx, repository.NewLoginAttemptRepository(db), 5, 15*time.Minute)
	h.lockout.now = clock.Now
	h.verification = NewVerificationService(tx, repository.NewVerificationRepository(db), VerificationConfig{
		TTL:            10 * time.Minute,
		ResendCooldown: 60 * time.Second,
		MaxAttempts:    5,
		CodeLength:     6,
		Pepper:         "pepper-0123456789abcdef",
	})
	h.verification.now = clock.Now
	h.creds = NewCredentialService(repository.NewCredentialRepository(db), security.NewPasswordHasher(bcrypt.MinCost))
	seclog := NewSecurityLogService(h.eventRepo, nil)
	h.auth = NewAuthService(tx, h.users, h.creds, h.sessions, h.tokens, h.lockout, h.verification, seclog, h.sender, nil)
	h.auth.now = clock.Now
	return h
}

// registerVerified registers email and confirms it with the delivered code.
func (h *authHarness) registerVerified(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	ctx := context.Background()
	if _, err := h.auth.Register(ctx, RegisterInput{Email: email, Password: password, Name: "Tester"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := h.auth.VerifyEmail(ctx, VerifyEmailInput{Email: email, Code: h.sender.last(t).Code})
	if err != nil {
		t.Fatalf("verify email: %v", err)
	}
	return res
}

func (h *authHarness) eventKinds(t *testing.T, userID uint) []domain.SecurityEventKind {
	t.Helper()
	page, err := h.eventRepo.ListByUser(context.Background(), userID, repository.PageRequest{Page: 1, PageSize: repository.MaxPageSize})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	kinds := make([]domain.SecurityEventKind, 0, len(page.Items))
	for _, e := range page.Items {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func containsKind(kinds []domain.SecurityEventKind, want domain.SecurityEventKind) bool {
	for _, k := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// wrongCode returns a code of the same length that differs from code.
func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}
