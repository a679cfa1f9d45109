package repository

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginAttemptRepositoryGetMissingReturnsZeroRow(t *testing.T) {
	repo := NewLoginAttemptRepository(newTestDB(t))
	a, err := repo.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.UserID != 42 || a.FailureCount != 0 || a.LockedUntil != nil {
		t.Fatalf("expected zero row, got %+v", a)
	}
}

func TestLoginAttemptRepositoryLockSaveReset(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewLoginAttemptRepository(db)
	tx := NewTxManager(db)

	if _, err := repo.LockForUser(ctx, 7); !errors.Is(err, ErrNoTransaction) {
		t.Fatalf("expected ErrNoTransaction, got %v", err)
	}

	for i := 0; i < 2; i++ {
		err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
			a, err := repo.LockForUser(ctx, 7)
			if err != nil {
				return err
			}
			a.FailureCount++
			return repo.Save(ctx, a)
		})
		if err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	a, err := repo.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.FailureCount != 2 {
		t.Fatalf("expected 2 failures, got %d", a.FailureCount)
	}

	if err := repo.Reset(ctx, 7); err != nil {
		t.Fatalf("reset: %v", err)
	}
	a, err = repo.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.FailureCount != 0 || a.LockedUntil != nil {
		t.Fatalf("expected cleared counter, got %+v", a)
	}
}

func TestLoginAttemptRepositoryCleanupStaleKeepsActiveLocks(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewLoginAttemptRepository(db)
	tx := NewTxManager(db)

	lockedUntil := time.Now().UTC().Add(time.Hour)
	for _, id := range []uint{1, 2} {
		id := id
		err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
			a, err := repo.LockForUser(ctx, id)
			if err != nil {
				return err
			}
			a.FailureCount = 1
			if id == 2 {
				a.LockedUntil = &lockedUntil
			}
			return repo.Save(ctx, a)
		})
		if err != nil {
			t.Fatalf("seed %d: %v", id, err)
		}
	}

	n, err := repo.CleanupStale(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 stale row removed, got %d", n)
	}
	a, err := repo.Get(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.LockedUntil == nil {
		t.Fatal("expected locked row kept")
	}
}
