package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/observability"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
)

type RetentionPolicy struct {
	SecurityEvents time.Duration
	Sessions       time.Duration
	// Codes and idle counters only need to outlive their own windows.
	VerificationCodes time.Duration
	LoginAttempts     time.Duration
}

type SweepReport struct {
	SecurityEvents    int64
	Sessions          int64
	VerificationCodes int64
	LoginAttempts     int64
	Elapsed           time.Duration
}

func (r SweepReport) Total() int64 {
	return r.SecurityEvents + r.Sessions + r.VerificationCodes + r.LoginAttempts
}

// Sweeper reclaims storage. Correctness never depends on it running: expired
// locks, codes and sessions are already treated as inactive on read.
type Sweeper struct {
	events   repository.SecurityEventRepository
	sessions repository.SessionRepository
	codes    repository.VerificationRepository
	attempts repository.LoginAttemptRepository
	policy   RetentionPolicy
	logger   *slog.Logger
	now      func() time.Time
}

func NewSweeper(
	events repository.SecurityEventRepository,
	sessions repository.SessionRepository,
	codes repository.VerificationRepository,
	attempts repository.LoginAttemptRepository,
	policy RetentionPolicy,
	logger *slog.Logger,
) *Sweeper {
	if policy.VerificationCodes <= 0 {
		policy.VerificationCodes = 24 * time.Hour
	}
	if policy.LoginAttempts <= 0 {
		policy.LoginAttempts = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		events:   events,
		sessions: sessions,
		codes:    codes,
		attempts: attempts,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// Sweep runs every cleanup once. A failing step does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	now := s.now().UTC()
	var (
		report SweepReport
		errs   []error
	)

	steps := []struct {
		entity string
		run    func() (int64, error)
		out    *int64
	}{
		{"security_event", func() (int64, error) { return s.events.DeleteOlderThan(ctx, now.Add(-s.policy.SecurityEvents)) }, &report.SecurityEvents},
		{"session", func() (int64, error) { return s.sessions.CleanupInactiveBefore(ctx, now.Add(-s.policy.Sessions)) }, &report.Sessions},
		{"verification", func() (int64, error) { return s.codes.DeleteExpiredBefore(ctx, now.Add(-s.policy.VerificationCodes)) }, &report.VerificationCodes},
		{"login_attempt", func() (int64, error) { return s.attempts.CleanupStale(ctx, now.Add(-s.policy.LoginAttempts)) }, &report.LoginAttempts},
	}
	for _, step := range steps {
		n, err := step.run()
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", step.entity, err))
			continue
		}
		*step.out = n
		observability.RecordSweepDeleted(ctx, step.entity, n)
	}
	report.Elapsed = time.Since(start)
	return report, errors.Join(errs...)
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report, err := s.Sweep(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "retention sweep failed", "error", err)
				continue
			}
			s.logger.InfoContext(ctx, "retention sweep complete",
				"security_events", report.SecurityEvents,
				"sessions", report.Sessions,
				"verification_codes", report.VerificationCodes,
				"login_attempts", report.LoginAttempts,
				"elapsed", report.Elapsed,
			)
		}
	}
}
