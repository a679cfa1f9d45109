package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoginAttemptRepository interface {
	Get(ctx context.Context, userID uint) (*domain.LoginAttempt, error)
	LockForUser(ctx context.Context, userID uint) (*domain.LoginAttempt, error)
	Save(ctx context.Context, a *domain.LoginAttempt) error
	Reset(ctx context.Context, userID uint) error
	CleanupStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormLoginAttemptRepository struct{ db *gorm.DB }

func NewLoginAttemptRepository(db *gorm.DB) LoginAttemptRepository {
	return &GormLoginAttemptRepository{db: db}
}

// Get returns the counter row, or a zero row when the account has never
// failed a login.
func (r *GormLoginAttemptRepository) Get(ctx context.Context, userID uint) (*domain.LoginAttempt, error) {
	var a domain.LoginAttempt
	err := conn(ctx, r.db).Where("user_id = ?", userID).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "login_attempt", "get", "not_found")
			return &domain.LoginAttempt{UserID: userID}, nil
		}
		observability.RecordRepositoryOperation(ctx, "login_attempt", "get", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "login_attempt", "get", "success")
	return &a, nil
}

// LockForUser makes sure the counter row exists, then reads it under a write
// lock so concurrent failures for one account serialize.
func (r *GormLoginAttemptRepository) LockForUser(ctx context.Context, userID uint) (*domain.LoginAttempt, error) {
	if !inTransaction(ctx) {
		return nil, ErrNoTransaction
	}
	db := conn(ctx, r.db)
	seed := domain.LoginAttempt{UserID: userID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "login_attempt", "lock_for_user", "error")
		return nil, err
	}
	var a domain.LoginAttempt
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&a).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "login_attempt", "lock_for_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "login_attempt", "lock_for_user", "success")
	return &a, nil
}

func (r *GormLoginAttemptRepository) Save(ctx context.Context, a *domain.LoginAttempt) error {
	err := conn(ctx, r.db).Save(a).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "login_attempt", "save", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "login_attempt", "save", "success")
	return nil
}

func (r *GormLoginAttemptRepository) Reset(ctx context.Context, userID uint) error {
	err := conn(ctx, r.db).Model(&domain.LoginAttempt{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"failure_count": 0, "locked_until": nil, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "login_attempt", "reset", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "login_attempt", "reset", "success")
	return nil
}

// CleanupStale removes counters that are neither locked nor touched since cutoff.
func (r *GormLoginAttemptRepository) CleanupStale(ctx context.Context, cutoff time.Time) (int64, error) {
	c := cutoff.UTC()
	res := conn(ctx, r.db).
		Where("updated_at <= ? AND (locked_until IS NULL OR locked_until <= ?)", c, c).
		Delete(&domain.LoginAttempt{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "login_attempt", "cleanup_stale", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "login_attempt", "cleanup_stale", "success")
	return res.RowsAffected, nil
}
