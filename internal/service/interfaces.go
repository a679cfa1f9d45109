package service

import (
	"context"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
	"github.com/sandeepkv93/todo-auth-core/internal/security"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	VerifyEmail(ctx context.Context, in VerifyEmailInput) (*AuthResult, error)
	ResendVerification(ctx context.Context, email string, purpose domain.VerificationPurpose, meta RequestMeta) error
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	Refresh(ctx context.Context, rawRefresh string, meta RequestMeta) (*AuthResult, error)
	Logout(ctx context.Context, claims *security.AccessClaims, meta RequestMeta) error
	LogoutAll(ctx context.Context, userID uint, meta RequestMeta) (int64, error)
	ListSessions(ctx context.Context, userID uint, currentSessionID string) ([]SessionView, error)
	RevokeSession(ctx context.Context, userID uint, sessionID string, meta RequestMeta) (bool, error)
	ChangePassword(ctx context.Context, in ChangePasswordInput) error
	ForgotPassword(ctx context.Context, email string, meta RequestMeta) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error
	SecurityEvents(ctx context.Context, userID uint, page repository.PageRequest) (repository.PageResult[domain.SecurityEvent], error)
	LinkExternalCredential(ctx context.Context, in LinkExternalInput) (*CredentialView, error)
	ListCredentials(ctx context.Context, userID uint) ([]CredentialView, error)
}

type AccessTokenVerifier interface {
	VerifyAccess(raw string) (*security.AccessClaims, bool)
}

type SessionChecker interface {
	IsActive(ctx context.Context, userID uint, sessionID string) (bool, error)
}

var (
	_ AuthServiceInterface = (*AuthService)(nil)
	_ AccessTokenVerifier  = (*TokenService)(nil)
	_ SessionChecker       = (*SessionService)(nil)
)
