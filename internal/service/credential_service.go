package service

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
	"github.com/sandeepkv93/todo-auth-core/internal/security"

	"golang.org/x/oauth2"
)

type CredentialService struct {
	creds  repository.CredentialRepository
	hasher *security.PasswordHasher
}

func NewCredentialService(creds repository.CredentialRepository, hasher *security.PasswordHasher) *CredentialService {
	return &CredentialService{creds: creds, hasher: hasher}
}

// HashPassword checks the password policy and hashes the password. It is
// kept apart from storage so the slow hash runs outside transactions.
func (s *CredentialService) HashPassword(password string) (string, error) {
	if err := security.ValidatePasswordPolicy(password); err != nil {
		return "", validationError(err.Error())
	}
	return s.hasher.Hash(password)
}

// StorePasswordHash creates the user's password credential or replaces its
// hash. A user has at most one password credential.
func (s *CredentialService) StorePasswordHash(ctx context.Context, userID uint, email, hash string) error {
	_, err := s.creds.FindByUserAndProvider(ctx, userID, domain.ProviderPassword)
	switch {
	case err == nil:
		return s.creds.UpdatePasswordHash(ctx, userID, hash)
	case errors.Is(err, repository.ErrCredentialNotFound):
		return s.creds.Create(ctx, &domain.Credential{
			UserID:            userID,
			Provider:          domain.ProviderPassword,
			ProviderAccountID: normalizeEmail(email),
			PasswordHash:      hash,
		})
	default:
		return err
	}
}

// VerifyPassword compares password with the stored hash. Accounts without a
// password credential still pay for a comparison.
func (s *CredentialService) VerifyPassword(ctx context.Context, userID uint, password string) (bool, error) {
	c, err := s.creds.FindByUserAndProvider(ctx, userID, domain.ProviderPassword)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			s.hasher.DummyCompare(password)
			return false, nil
		}
		return false, err
	}
	return s.hasher.Compare(c.PasswordHash, password), nil
}

func (s *CredentialService) DummyCompare(password string) {
	s.hasher.DummyCompare(password)
}

// LinkExternal attaches an external identity to userID. A provider account
// belongs to at most one user; linking again for the same user refreshes the
// stored token set.
func (s *CredentialService) LinkExternal(ctx context.Context, userID uint, provider domain.CredentialProvider, accountID string, token *oauth2.Token) (*domain.Credential, error) {
	if !provider.IsExternal() {
		return nil, validationError("provider is not an external identity provider")
	}
	if accountID == "" {
		return nil, validationError("provider account id is required")
	}
	if !token.Valid() {
		return nil, validationError("provider token is missing or expired")
	}
	existing, err := s.creds.FindByProviderAccount(ctx, provider, accountID)
	switch {
	case err == nil && existing.UserID != userID:
		return nil, ErrExternalAccountLinked
	case err == nil:
		if err := s.creds.UpdateExternalTokens(ctx, existing.ID, token); err != nil {
			return nil, err
		}
		existing.ExternalTokens = token
		return existing, nil
	case !errors.Is(err, repository.ErrCredentialNotFound):
		return nil, err
	}

	c := &domain.Credential{
		UserID:            userID,
		Provider:          provider,
		ProviderAccountID: accountID,
		ExternalTokens:    token,
	}
	if err := s.creds.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrCredentialConflict) {
			return nil, ErrExternalAccountLinked
		}
		return nil, err
	}
	return c, nil
}

// CredentialView describes a linked login method without its secrets.
type CredentialView struct {
	Provider        domain.CredentialProvider `json:"provider"`
	LinkedAt        time.Time                 `json:"linkedAt"`
	TokenType       string                    `json:"tokenType,omitempty"`
	TokenExpiry     *time.Time                `json:"tokenExpiry,omitempty"`
	HasRefreshToken bool                      `json:"hasRefreshToken"`
}

func newCredentialView(c domain.Credential) CredentialView {
	v := CredentialView{Provider: c.Provider, LinkedAt: c.CreatedAt}
	if t := c.ExternalTokens; t != nil {
		v.TokenType = t.Type()
		v.HasRefreshToken = t.RefreshToken != ""
		if !t.Expiry.IsZero() {
			expiry := t.Expiry.UTC()
			v.TokenExpiry = &expiry
		}
	}
	return v
}

func (s *CredentialService) List(ctx context.Context, userID uint) ([]CredentialView, error) {
	creds, err := s.creds.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]CredentialView, 0, len(creds))
	for _, c := range creds {
		views = append(views, newCredentialView(c))
	}
	return views, nil
}
