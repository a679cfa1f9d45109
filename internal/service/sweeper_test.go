package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
)

func TestSweeperRemovesOnlyAgedRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	events := repository.NewSecurityEventRepository(db)
	sessions := repository.NewSessionRepository(db)
	codes := repository.NewVerificationRepository(db)
	attempts := repository.NewLoginAttemptRepository(db)

	now := time.Now().UTC()
	uid := uint(1)
	mustAppend := func(at time.Time) {
		if err := events.Append(ctx, &domain.SecurityEvent{UserID: &uid, Kind: domain.EventLogout, CreatedAt: at}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	mustAppend(now.Add(-100 * 24 * time.Hour))
	mustAppend(now)

	for _, exp := range []time.Time{now.Add(-60 * 24 * time.Hour), now.Add(time.Hour)} {
		if err := sessions.Create(ctx, &domain.Session{
			ID: uuid.NewString(), UserID: uid, FamilyID: uuid.NewString(), FamilyVersion: 1,
			LastActiveAt: now, ExpiresAt: exp,
		}); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	if err := codes.Upsert(ctx, &domain.VerificationCode{
		Subject: "a@x.com", Purpose: domain.PurposeRegister, UserID: uid, CodeHash: "h",
		Status: domain.VerificationPending, ExpiresAt: now.Add(-48 * time.Hour), LastSentAt: now.Add(-48 * time.Hour),
	}); err != nil {
		t.Fatalf("upsert code: %v", err)
	}

	sweeper := NewSweeper(events, sessions, codes, attempts, RetentionPolicy{
		SecurityEvents: 90 * 24 * time.Hour,
		Sessions:       30 * 24 * time.Hour,
	}, nil)
	report, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.SecurityEvents != 1 || report.Sessions != 1 || report.VerificationCodes != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Total() != 3 {
		t.Fatalf("expected total 3, got %d", report.Total())
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	db := newTestDB(t)
	sweeper := NewSweeper(
		repository.NewSecurityEventRepository(db),
		repository.NewSessionRepository(db),
		repository.NewVerificationRepository(db),
		repository.NewLoginAttemptRepository(db),
		RetentionPolicy{SecurityEvents: time.Hour, Sessions: time.Hour},
		nil,
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx, 10*time.Millisecond) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
