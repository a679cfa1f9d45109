package security

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasherHashAndCompare(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	hash, err := h.Hash("Pw1234!!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !h.Compare(hash, "Pw1234!!") {
		t.Fatal("expected password to match")
	}
	if h.Compare(hash, "Pw1234!?") {
		t.Fatal("expected wrong password to fail")
	}
	h.DummyCompare("anything")
}

func TestValidatePasswordPolicy(t *testing.T) {
	tests := []struct {
		name string
		pw   string
		ok   bool
	}{
		{name: "valid", pw: "Pw1234!!", ok: true},
		{name: "symbol only", pw: "password!", ok: true},
		{name: "too short", pw: "Pw1!", ok: false},
		{name: "too long", pw: "a1" + strings.Repeat("x", 71), ok: false},
		{name: "letters only", pw: "passwordonly", ok: false},
		{name: "digits only", pw: "1234567890", ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePasswordPolicy(tc.pw)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrWeakPassword) {
				t.Fatalf("expected ErrWeakPassword, got %v", err)
			}
		})
	}
}
