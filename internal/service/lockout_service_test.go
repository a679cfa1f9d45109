package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/repository"
)

func newLockoutServiceForTest(t *testing.T) (*LockoutService, *testClock) {
	t.Helper()
	db := newTestDB(t)
	clock := newTestClock()
	svc := NewLockoutService(repository.NewTxManager(db), repository.NewLoginAttemptRepository(db), 5, 15*time.Minute)
	svc.now = clock.Now
	return svc, clock
}

func TestLockoutFifthFailureLocksInSameCall(t *testing.T) {
	ctx := context.Background()
	svc, clock := newLockoutServiceForTest(t)

	for i := 1; i <= 4; i++ {
		st, err := svc.RecordFailure(ctx, 1)
		if err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
		if st.Locked || st.Failures != i {
			t.Fatalf("failure %d: unexpected status %+v", i, st)
		}
	}
	st, err := svc.RecordFailure(ctx, 1)
	if err != nil {
		t.Fatalf("failure 5: %v", err)
	}
	if !st.Locked || !st.NewlyLocked {
		t.Fatalf("expected 5th failure to lock, got %+v", st)
	}
	if got := st.RetryAfter(clock.Now()); got != 15*time.Minute {
		t.Fatalf("expected 15m retry after, got %s", got)
	}

	check, err := svc.CheckLock(ctx, 1)
	if err != nil {
		t.Fatalf("check lock: %v", err)
	}
	if !check.Locked {
		t.Fatal("expected CheckLock to report locked")
	}
}

func TestLockoutFailuresWhileLockedKeepWindow(t *testing.T) {
	ctx := context.Background()
	svc, clock := newLockoutServiceForTest(t)

	var first LockStatus
	for i := 0; i < 5; i++ {
		first, _ = svc.RecordFailure(ctx, 1)
	}
	clock.Advance(5 * time.Minute)
	st, err := svc.RecordFailure(ctx, 1)
	if err != nil {
		t.Fatalf("failure while locked: %v", err)
	}
	if !st.Locked || st.NewlyLocked {
		t.Fatalf("expected locked without re-arming, got %+v", st)
	}
	if !st.LockedUntil.Equal(*first.LockedUntil) {
		t.Fatalf("expected window unchanged, first=%v now=%v", first.LockedUntil, st.LockedUntil)
	}
	if st.Failures != 5 {
		t.Fatalf("expected counter pinned at threshold, got %d", st.Failures)
	}
}

func TestLockoutExpiredLockResetsWindow(t *testing.T) {
	ctx := context.Background()
	svc, clock := newLockoutServiceForTest(t)

	for i := 0; i < 5; i++ {
		if _, err := svc.RecordFailure(ctx, 1); err != nil {
			t.Fatalf("failure: %v", err)
		}
	}
	clock.Advance(15*time.Minute + time.Second)

	check, err := svc.CheckLock(ctx, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if check.Locked {
		t.Fatalf("expected lazy expiry, got %+v", check)
	}
	st, err := svc.RecordFailure(ctx, 1)
	if err != nil {
		t.Fatalf("failure after expiry: %v", err)
	}
	if st.Locked || st.Failures != 1 {
		t.Fatalf("expected fresh window, got %+v", st)
	}
}

func TestLockoutRecordSuccessClears(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLockoutServiceForTest(t)

	for i := 0; i < 3; i++ {
		if _, err := svc.RecordFailure(ctx, 9); err != nil {
			t.Fatalf("failure: %v", err)
		}
	}
	if err := svc.RecordSuccess(ctx, 9); err != nil {
		t.Fatalf("success: %v", err)
	}
	st, err := svc.CheckLock(ctx, 9)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if st.Locked || st.Failures != 0 {
		t.Fatalf("expected cleared counter, got %+v", st)
	}
}

func TestLockoutConcurrentFailuresLockExactlyOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLockoutServiceForTest(t)

	const workers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		armed int
		errs  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := svc.RecordFailure(ctx, 3)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if st.NewlyLocked {
				armed++
			}
		}()
	}
	wg.Wait()
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if armed != 1 {
		t.Fatalf("expected exactly one call to arm the lock, got %d", armed)
	}
	st, err := svc.CheckLock(ctx, 3)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !st.Locked || st.Failures != 5 {
		t.Fatalf("expected locked at threshold, got %+v", st)
	}
}
