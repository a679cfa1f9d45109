package repository

import (
	"context"
	"errors"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"

	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialConflict = errors.New("credential already exists")
)

type CredentialRepository interface {
	Create(ctx context.Context, c *domain.Credential) error
	FindByUserAndProvider(ctx context.Context, userID uint, provider domain.CredentialProvider) (*domain.Credential, error)
	FindByProviderAccount(ctx context.Context, provider domain.CredentialProvider, accountID string) (*domain.Credential, error)
	ListByUser(ctx context.Context, userID uint) ([]domain.Credential, error)
	UpdatePasswordHash(ctx context.Context, userID uint, hash string) error
	UpdateExternalTokens(ctx context.Context, id uint, token *oauth2.Token) error
}

type GormCredentialRepository struct{ db *gorm.DB }

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &GormCredentialRepository{db: db}
}

func (r *GormCredentialRepository) Create(ctx context.Context, c *domain.Credential) error {
	err := conn(ctx, r.db).Create(c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(ctx, "credential", "create", "conflict")
			return ErrCredentialConflict
		}
		observability.RecordRepositoryOperation(ctx, "credential", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "credential", "create", "success")
	return nil
}

func (r *GormCredentialRepository) FindByUserAndProvider(ctx context.Context, userID uint, provider domain.CredentialProvider) (*domain.Credential, error) {
	var c domain.Credential
	err := conn(ctx, r.db).Where("user_id = ? AND provider = ?", userID, provider).First(&c).Error
	return r.found(ctx, "find_by_user_and_provider", &c, err)
}

func (r *GormCredentialRepository) FindByProviderAccount(ctx context.Context, provider domain.CredentialProvider, accountID string) (*domain.Credential, error) {
	var c domain.Credential
	err := conn(ctx, r.db).Where("provider = ? AND provider_account_id = ?", provider, accountID).First(&c).Error
	return r.found(ctx, "find_by_provider_account", &c, err)
}

func (r *GormCredentialRepository) found(ctx context.Context, op string, c *domain.Credential, err error) (*domain.Credential, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "credential", op, "not_found")
			return nil, ErrCredentialNotFound
		}
		observability.RecordRepositoryOperation(ctx, "credential", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "credential", op, "success")
	return c, nil
}

func (r *GormCredentialRepository) ListByUser(ctx context.Context, userID uint) ([]domain.Credential, error) {
	var creds []domain.Credential
	err := conn(ctx, r.db).Where("user_id = ?", userID).Order("id ASC").Find(&creds).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "credential", "list_by_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "credential", "list_by_user", "success")
	return creds, nil
}

func (r *GormCredentialRepository) UpdatePasswordHash(ctx context.Context, userID uint, hash string) error {
	res := conn(ctx, r.db).Model(&domain.Credential{}).
		Where("user_id = ? AND provider = ?", userID, domain.ProviderPassword).
		Update("password_hash", hash)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "credential", "update_password_hash", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "credential", "update_password_hash", "not_found")
		return ErrCredentialNotFound
	}
	observability.RecordRepositoryOperation(ctx, "credential", "update_password_hash", "success")
	return nil
}

func (r *GormCredentialRepository) UpdateExternalTokens(ctx context.Context, id uint, token *oauth2.Token) error {
	res := conn(ctx, r.db).Model(&domain.Credential{ID: id}).
		Select("ExternalTokens").
		Updates(&domain.Credential{ExternalTokens: token})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "credential", "update_external_tokens", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "credential", "update_external_tokens", "not_found")
		return ErrCredentialNotFound
	}
	observability.RecordRepositoryOperation(ctx, "credential", "update_external_tokens", "success")
	return nil
}
