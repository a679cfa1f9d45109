package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sandeepkv93/todo-auth-core/internal/http/response"
	"github.com/sandeepkv93/todo-auth-core/internal/service"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{service.ErrEmailAlreadyRegistered, http.StatusConflict, "EMAIL_ALREADY_REGISTERED", "email is already registered"},
	{service.ErrVerificationCodeInvalid, http.StatusUnauthorized, "VERIFICATION_CODE_INVALID", "verification code is invalid"},
	{service.ErrVerificationCodeExpired, http.StatusUnauthorized, "VERIFICATION_CODE_EXPIRED", "verification code has expired"},
	{service.ErrVerificationMaxAttempts, http.StatusTooManyRequests, "VERIFICATION_MAX_ATTEMPTS_EXCEEDED", "too many verification attempts"},
	{service.ErrTooSoon, http.StatusTooManyRequests, "TOO_SOON", "please wait before requesting another code"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password"},
	{service.ErrAccountLocked, http.StatusLocked, "ACCOUNT_LOCKED", "account is temporarily locked"},
	{service.ErrEmailNotVerified, http.StatusUnauthorized, "EMAIL_NOT_VERIFIED", "email address is not verified"},
	{service.ErrAccountSuspended, http.StatusForbidden, "ACCOUNT_SUSPENDED", "account is suspended"},
	{service.ErrRefreshTokenInvalid, http.StatusUnauthorized, "REFRESH_TOKEN_INVALID", "refresh token is invalid"},
	{service.ErrTokenReuseDetected, http.StatusUnauthorized, "TOKEN_REUSE_DETECTED", "refresh token reuse detected; this session was signed out"},
	{service.ErrSessionRevoked, http.StatusUnauthorized, "UNAUTHORIZED", "session is no longer active"},
	{service.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"},
	{service.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found"},
	{service.ErrExternalAccountLinked, http.StatusConflict, "EXTERNAL_ACCOUNT_LINKED", "external account is already linked"},
}

// writeServiceError maps an orchestrator error to the HTTP contract.
// Infrastructure failures are logged and surface as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrValidation) {
		msg := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", msg, nil)
		return
	}
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		if d, ok := service.RetryAfterOf(err); ok {
			response.SetRetryAfter(w, d)
		}
		response.Error(w, r, m.status, m.code, m.message, nil)
		return
	}
	slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", nil)
}
