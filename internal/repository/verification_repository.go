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

var ErrVerificationNotFound = errors.New("verification code not found")

type VerificationRepository interface {
	Upsert(ctx context.Context, code *domain.VerificationCode) error
	LockBySubject(ctx context.Context, subject string, purpose domain.VerificationPurpose) (*domain.VerificationCode, error)
	Save(ctx context.Context, code *domain.VerificationCode) error
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormVerificationRepository struct{ db *gorm.DB }

func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &GormVerificationRepository{db: db}
}

// Upsert replaces whatever code exists for (subject, purpose), so at most one
// code is ever live per pair.
func (r *GormVerificationRepository) Upsert(ctx context.Context, code *domain.VerificationCode) error {
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subject"}, {Name: "purpose"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "code_hash", "status", "attempts", "expires_at", "last_sent_at", "consumed_at", "updated_at",
		}),
	}).Create(code).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "verification", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "verification", "upsert", "success")
	return nil
}

func (r *GormVerificationRepository) LockBySubject(ctx context.Context, subject string, purpose domain.VerificationPurpose) (*domain.VerificationCode, error) {
	if !inTransaction(ctx) {
		return nil, ErrNoTransaction
	}
	var v domain.VerificationCode
	err := conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("subject = ? AND purpose = ?", subject, purpose).
		First(&v).Error
	return r.found(ctx, "lock_by_subject", &v, err)
}

func (r *GormVerificationRepository) found(ctx context.Context, op string, v *domain.VerificationCode, err error) (*domain.VerificationCode, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "verification", op, "not_found")
			return nil, ErrVerificationNotFound
		}
		observability.RecordRepositoryOperation(ctx, "verification", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "verification", op, "success")
	return v, nil
}

func (r *GormVerificationRepository) Save(ctx context.Context, code *domain.VerificationCode) error {
	err := conn(ctx, r.db).Save(code).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "verification", "save", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "verification", "save", "success")
	return nil
}

func (r *GormVerificationRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := conn(ctx, r.db).Where("expires_at <= ?", cutoff.UTC()).Delete(&domain.VerificationCode{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "verification", "delete_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "verification", "delete_expired", "success")
	return res.RowsAffected, nil
}
