package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sandeepkv93/todo-auth-core/internal/http/response"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"
	"github.com/sandeepkv93/todo-auth-core/internal/security"
	"github.com/sandeepkv93/todo-auth-core/internal/service"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
)

// AuthMiddleware admits requests carrying a valid access token whose
// session is still active. A revoked session rejects its access tokens
// immediately rather than at token expiry.
func AuthMiddleware(verifier service.AccessTokenVerifier, sessions service.SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				observability.RecordAccessTokenValidation(r.Context(), "missing", "none")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
				return
			}
			claims, ok := verifier.VerifyAccess(raw)
			if !ok {
				observability.RecordAccessTokenValidation(r.Context(), "invalid", "bearer")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
				return
			}
			if sessions != nil {
				active, err := sessions.IsActive(r.Context(), claims.UserID(), claims.SessionID)
				if err != nil {
					slog.ErrorContext(r.Context(), "session lookup failed", "error", err)
					response.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", nil)
					return
				}
				if !active {
					observability.RecordAccessTokenValidation(r.Context(), "session_inactive", "bearer")
					response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "session is no longer active", nil)
					return
				}
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid", "bearer")
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.AccessClaims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.AccessClaims)
	return c, ok
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}
