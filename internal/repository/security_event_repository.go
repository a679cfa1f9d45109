package repository

import (
	"context"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"

	"gorm.io/gorm"
)

type SecurityEventRepository interface {
	Append(ctx context.Context, e *domain.SecurityEvent) error
	ListByUser(ctx context.Context, userID uint, req PageRequest) (PageResult[domain.SecurityEvent], error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormSecurityEventRepository struct{ db *gorm.DB }

func NewSecurityEventRepository(db *gorm.DB) SecurityEventRepository {
	return &GormSecurityEventRepository{db: db}
}

func (r *GormSecurityEventRepository) Append(ctx context.Context, e *domain.SecurityEvent) error {
	err := conn(ctx, r.db).Create(e).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "security_event", "append", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "security_event", "append", "success")
	return nil
}

func (r *GormSecurityEventRepository) ListByUser(ctx context.Context, userID uint, req PageRequest) (PageResult[domain.SecurityEvent], error) {
	byUser := func(q *gorm.DB) *gorm.DB { return q.Where("user_id = ?", userID) }
	out, err := paginate[domain.SecurityEvent](conn(ctx, r.db), byUser, req, "created_at DESC", "id DESC")
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "security_event", "list_by_user", "error")
		return out, err
	}
	observability.RecordRepositoryOperation(ctx, "security_event", "list_by_user", "success")
	return out, nil
}

func (r *GormSecurityEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := conn(ctx, r.db).Where("created_at < ?", cutoff.UTC()).Delete(&domain.SecurityEvent{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "security_event", "delete_older_than", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "security_event", "delete_older_than", "success")
	return res.RowsAffected, nil
}
