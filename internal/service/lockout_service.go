package service

import (
	"context"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
)

type LockStatus struct {
	Locked      bool
	LockedUntil *time.Time
	Failures    int
	// NewlyLocked is set only on the failure that armed the lock.
	NewlyLocked bool
}

func (s LockStatus) RetryAfter(now time.Time) time.Duration {
	if !s.Locked || s.LockedUntil == nil {
		return 0
	}
	d := s.LockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// LockoutService tracks consecutive login failures per account. Counters are
// persisted and updated under a row lock, never held in process memory.
type LockoutService struct {
	tx        repository.TxManager
	attempts  repository.LoginAttemptRepository
	threshold int
	duration  time.Duration
	now       func() time.Time
}

func NewLockoutService(tx repository.TxManager, attempts repository.LoginAttemptRepository, threshold int, duration time.Duration) *LockoutService {
	if threshold < 1 {
		threshold = 5
	}
	return &LockoutService{tx: tx, attempts: attempts, threshold: threshold, duration: duration, now: time.Now}
}

// RecordFailure counts one failed attempt. The failure that reaches the
// threshold locks the account and reports Locked in the same call. Failures
// while already locked keep the existing window.
func (s *LockoutService) RecordFailure(ctx context.Context, userID uint) (LockStatus, error) {
	var st LockStatus
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		a, err := s.attempts.LockForUser(ctx, userID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		a.LastFailureAt = &now

		if a.LockedUntil != nil && now.Before(*a.LockedUntil) {
			st = lockStatusOf(a, now)
			return s.attempts.Save(ctx, a)
		}
		if a.LockedUntil != nil {
			a.LockedUntil = nil
			a.FailureCount = 0
		}

		a.FailureCount++
		if a.FailureCount >= s.threshold {
			a.FailureCount = s.threshold
			until := now.Add(s.duration)
			a.LockedUntil = &until
			st.NewlyLocked = true
		}
		if err := s.attempts.Save(ctx, a); err != nil {
			return err
		}
		newly := st.NewlyLocked
		st = lockStatusOf(a, now)
		st.NewlyLocked = newly
		return nil
	})
	if err != nil {
		observability.RecordLockoutEvent(ctx, "error")
		return LockStatus{}, err
	}
	switch {
	case st.NewlyLocked:
		observability.RecordLockoutEvent(ctx, "locked")
	case st.Locked:
		observability.RecordLockoutEvent(ctx, "failure_while_locked")
	default:
		observability.RecordLockoutEvent(ctx, "failure")
	}
	return st, nil
}

func (s *LockoutService) RecordSuccess(ctx context.Context, userID uint) error {
	if err := s.attempts.Reset(ctx, userID); err != nil {
		return err
	}
	observability.RecordLockoutEvent(ctx, "reset")
	return nil
}

// CheckLock is a pure read. A lock whose window has passed reads as unlocked.
func (s *LockoutService) CheckLock(ctx context.Context, userID uint) (LockStatus, error) {
	a, err := s.attempts.Get(ctx, userID)
	if err != nil {
		return LockStatus{}, err
	}
	return lockStatusOf(a, s.now().UTC()), nil
}

func lockStatusOf(a *domain.LoginAttempt, now time.Time) LockStatus {
	if a.LockedUntil != nil && now.Before(*a.LockedUntil) {
		until := *a.LockedUntil
		return LockStatus{Locked: true, LockedUntil: &until, Failures: a.FailureCount}
	}
	if a.LockedUntil != nil {
		return LockStatus{}
	}
	return LockStatus{Failures: a.FailureCount}
}
