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

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrStaleFamilyVersion = errors.New("stale token family version")
)

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	FindByIDForUser(ctx context.Context, userID uint, id string) (*domain.Session, error)
	LockByID(ctx context.Context, id string) (*domain.Session, error)
	AdvanceFamily(ctx context.Context, id string, expected int64, now, expiresAt time.Time) (int64, error)
	ListActiveByUserID(ctx context.Context, userID uint, now time.Time) ([]domain.Session, error)
	RevokeByIDForUser(ctx context.Context, userID uint, id, reason string) (bool, error)
	MarkReuseDetected(ctx context.Context, id string) error
	RevokeByUserID(ctx context.Context, userID uint, reason string) (int64, error)
	CleanupInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	err := conn(ctx, r.db).Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := conn(ctx, r.db).Where("id = ?", id).First(&s).Error
	return r.found(ctx, "find_by_id", &s, err)
}

func (r *GormSessionRepository) FindByIDForUser(ctx context.Context, userID uint, id string) (*domain.Session, error) {
	var s domain.Session
	err := conn(ctx, r.db).Where("user_id = ? AND id = ?", userID, id).First(&s).Error
	return r.found(ctx, "find_by_id_for_user", &s, err)
}

// LockByID reads the session row with a write lock. It must run inside
// TxManager.WithinTransaction for the lock to outlive the statement.
func (r *GormSessionRepository) LockByID(ctx context.Context, id string) (*domain.Session, error) {
	if !inTransaction(ctx) {
		return nil, ErrNoTransaction
	}
	var s domain.Session
	err := conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&s).Error
	return r.found(ctx, "lock_by_id", &s, err)
}

func (r *GormSessionRepository) found(ctx context.Context, op string, s *domain.Session, err error) (*domain.Session, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", op, "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "session", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", op, "success")
	return s, nil
}

// AdvanceFamily moves the family from expected to expected+1 and slides the
// session expiry to expiresAt. The version predicate makes the update a
// compare-and-swap: a concurrent advance from the same version affects zero
// rows and yields ErrStaleFamilyVersion.
func (r *GormSessionRepository) AdvanceFamily(ctx context.Context, id string, expected int64, now, expiresAt time.Time) (int64, error) {
	next := expected + 1
	res := conn(ctx, r.db).Model(&domain.Session{}).
		Where("id = ? AND family_version = ? AND revoked_at IS NULL", id, expected).
		Updates(map[string]any{
			"family_version": next,
			"last_active_at": now.UTC(),
			"expires_at":     expiresAt.UTC(),
		})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "advance_family", "error")
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "session", "advance_family", "stale")
		return 0, ErrStaleFamilyVersion
	}
	observability.RecordRepositoryOperation(ctx, "session", "advance_family", "success")
	return next, nil
}

func (r *GormSessionRepository) ListActiveByUserID(ctx context.Context, userID uint, now time.Time) ([]domain.Session, error) {
	var sessions []domain.Session
	err := conn(ctx, r.db).Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now.UTC()).
		Order("last_active_at DESC").
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "list_active_by_user_id", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "list_active_by_user_id", "success")
	return sessions, nil
}

func (r *GormSessionRepository) RevokeByIDForUser(ctx context.Context, userID uint, id, reason string) (bool, error) {
	session, err := r.FindByIDForUser(ctx, userID, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", "revoke_by_id_for_user", "not_found")
		} else {
			observability.RecordRepositoryOperation(ctx, "session", "revoke_by_id_for_user", "error")
		}
		return false, err
	}
	if session.RevokedAt != nil {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_by_id_for_user", "success")
		return false, nil
	}
	now := time.Now().UTC()
	res := conn(ctx, r.db).Model(&domain.Session{}).
		Where("user_id = ? AND id = ? AND revoked_at IS NULL", userID, id).
		Updates(map[string]any{"revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_by_id_for_user", "error")
		return res.RowsAffected > 0, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "revoke_by_id_for_user", "success")
	return res.RowsAffected > 0, nil
}

// MarkReuseDetected revokes the session and stamps reuse_detected_at. An
// already revoked session keeps its original revoke time.
func (r *GormSessionRepository) MarkReuseDetected(ctx context.Context, id string) error {
	now := time.Now().UTC()
	err := conn(ctx, r.db).Model(&domain.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reuse_detected_at": now,
			"revoked_reason":    "reuse_detected",
			"revoked_at":        gorm.Expr("COALESCE(revoked_at, ?)", now),
		}).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "mark_reuse_detected", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "mark_reuse_detected", "success")
	return nil
}

func (r *GormSessionRepository) RevokeByUserID(ctx context.Context, userID uint, reason string) (int64, error) {
	now := time.Now().UTC()
	res := conn(ctx, r.db).Model(&domain.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Updates(map[string]any{"revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_by_user_id", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "revoke_by_user_id", "success")
	return res.RowsAffected, nil
}

func (r *GormSessionRepository) CleanupInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := conn(ctx, r.db).
		Where("expires_at <= ? OR (revoked_at IS NOT NULL AND revoked_at <= ?)", cutoff.UTC(), cutoff.UTC()).
		Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "cleanup_inactive", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "cleanup_inactive", "success")
	return res.RowsAffected, nil
}
