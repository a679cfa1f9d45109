package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/repository"
)

var (
	ErrValidation              = errors.New("validation failed")
	ErrEmailAlreadyRegistered  = errors.New("email already registered")
	ErrVerificationCodeInvalid = errors.New("verification code invalid")
	ErrVerificationCodeExpired = errors.New("verification code expired")
	ErrVerificationMaxAttempts = errors.New("verification max attempts exceeded")
	ErrTooSoon                 = errors.New("requested too soon")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrAccountLocked           = errors.New("account locked")
	ErrEmailNotVerified        = errors.New("email not verified")
	ErrAccountSuspended        = errors.New("account suspended")
	ErrRefreshTokenInvalid     = errors.New("refresh token invalid")
	ErrTokenReuseDetected      = errors.New("refresh token reuse detected")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionRevoked          = errors.New("session revoked")
	ErrExternalAccountLinked   = errors.New("external account already linked")
	ErrStaleFamilyVersion      = repository.ErrStaleFamilyVersion
)

type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindUnauthenticated  ErrorKind = "unauthenticated"
	KindForbidden        ErrorKind = "forbidden"
	KindConflict         ErrorKind = "conflict"
	KindRateLimited      ErrorKind = "rate_limited"
	KindSecurityIncident ErrorKind = "security_incident"
	KindNotFound         ErrorKind = "not_found"
	KindInternal         ErrorKind = "internal"
)

// KindOf classifies err into the error taxonomy. Anything that is not a
// domain error is an infrastructure failure.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrEmailAlreadyRegistered), errors.Is(err, ErrExternalAccountLinked):
		return KindConflict
	case errors.Is(err, ErrTooSoon), errors.Is(err, ErrAccountLocked), errors.Is(err, ErrVerificationMaxAttempts):
		return KindRateLimited
	case errors.Is(err, ErrTokenReuseDetected):
		return KindSecurityIncident
	case errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	case errors.Is(err, ErrAccountSuspended):
		return KindForbidden
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrVerificationCodeInvalid),
		errors.Is(err, ErrVerificationCodeExpired),
		errors.Is(err, ErrEmailNotVerified),
		errors.Is(err, ErrRefreshTokenInvalid),
		errors.Is(err, ErrSessionRevoked),
		errors.Is(err, ErrUnauthorized):
		return KindUnauthenticated
	default:
		return KindInternal
	}
}

// RetryAfterError attaches a wait hint to a rate-limited outcome.
type RetryAfterError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", e.Err.Error(), e.RetryAfter.Round(time.Second))
}

func (e *RetryAfterError) Unwrap() error { return e.Err }

func withRetryAfter(err error, d time.Duration) error {
	if d < 0 {
		d = 0
	}
	return &RetryAfterError{Err: err, RetryAfter: d}
}

// RetryAfterOf reports the wait hint carried by err, if any.
func RetryAfterOf(err error) (time.Duration, bool) {
	var ra *RetryAfterError
	if errors.As(err, &ra) {
		return ra.RetryAfter, true
	}
	return 0, false
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// isOutcome reports whether err is a domain outcome rather than an
// infrastructure failure.
func isOutcome(err error) bool {
	k := KindOf(err)
	return k != "" && k != KindInternal
}
