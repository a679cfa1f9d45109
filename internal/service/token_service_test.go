package service

import (
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/security"
)

func newTokenServiceForTest() *TokenService {
	return NewTokenService(security.NewJWTManager("todo-auth", "todo-api", "access-secret-0123456789abcdef", "refresh-secret-0123456789abcdef", 15*time.Minute, 24*time.Hour))
}

func TestTokenServiceIssuePairRoundTrip(t *testing.T) {
	svc := newTokenServiceForTest()
	pair, err := svc.IssuePair(42, "sess-1", "fam-1", 1)
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	if pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiresIn %d", pair.ExpiresIn)
	}

	ac, ok := svc.VerifyAccess(pair.AccessToken)
	if !ok {
		t.Fatal("expected access token to verify")
	}
	if ac.UserID() != 42 || ac.SessionID != "sess-1" {
		t.Fatalf("unexpected access claims %+v", ac)
	}
	rc, ok := svc.VerifyRefresh(pair.RefreshToken)
	if !ok {
		t.Fatal("expected refresh token to verify")
	}
	if rc.UserID() != 42 || rc.SessionID != "sess-1" || rc.FamilyID != "fam-1" || rc.FamilyVersion != 1 {
		t.Fatalf("unexpected refresh claims %+v", rc)
	}
}

func TestTokenServiceVerifyIsBooleanOnGarbage(t *testing.T) {
	svc := newTokenServiceForTest()
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		if c, ok := svc.VerifyAccess(raw); ok || c != nil {
			t.Fatalf("expected %q to fail access verification", raw)
		}
		if c, ok := svc.VerifyRefresh(raw); ok || c != nil {
			t.Fatalf("expected %q to fail refresh verification", raw)
		}
	}
	pair, _ := svc.IssuePair(1, "s", "f", 1)
	if _, ok := svc.VerifyRefresh(pair.AccessToken); ok {
		t.Fatal("expected access token to fail refresh verification")
	}
}

func TestTokenServiceRotateAdvancesExactlyOneVersion(t *testing.T) {
	svc := newTokenServiceForTest()
	pair, _ := svc.IssuePair(1, "s", "f", 3)
	claims, ok := svc.VerifyRefresh(pair.RefreshToken)
	if !ok {
		t.Fatal("verify refresh failed")
	}

	if _, err := svc.Rotate(claims, 3); !errors.Is(err, ErrRotationVersion) {
		t.Fatalf("expected ErrRotationVersion for same version, got %v", err)
	}
	if _, err := svc.Rotate(claims, 5); !errors.Is(err, ErrRotationVersion) {
		t.Fatalf("expected ErrRotationVersion for skipped version, got %v", err)
	}
	next, err := svc.Rotate(claims, 4)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	nc, ok := svc.VerifyRefresh(next.RefreshToken)
	if !ok || nc.FamilyVersion != 4 || nc.FamilyID != "f" || nc.SessionID != "s" {
		t.Fatalf("unexpected rotated claims %+v", nc)
	}
}
