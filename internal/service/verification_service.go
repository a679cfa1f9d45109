package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
	"github.com/sandeepkv93/todo-auth-core/internal/security"
)

type VerificationConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	CodeLength     int
	Pepper         string
}

// VerificationService owns the lifecycle of one-time codes:
// pending -> consumed | expired | locked.
type VerificationService struct {
	tx     repository.TxManager
	codes  repository.VerificationRepository
	gen    security.CodeGenerator
	hasher security.CodeHasher
	cfg    VerificationConfig
	now    func() time.Time
}

func NewVerificationService(tx repository.TxManager, codes repository.VerificationRepository, cfg VerificationConfig) *VerificationService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	return &VerificationService{
		tx:     tx,
		codes:  codes,
		gen:    security.NewCodeGenerator(cfg.CodeLength),
		hasher: security.NewCodeHasher(cfg.Pepper),
		cfg:    cfg,
		now:    time.Now,
	}
}

// Issue replaces any prior code for (subject, purpose) and returns the new
// plaintext code. Only its hash is stored.
func (s *VerificationService) Issue(ctx context.Context, subject string, purpose domain.VerificationPurpose, userID uint) (string, error) {
	if !purpose.Valid() {
		return "", validationError("unknown verification purpose")
	}
	subject = normalizeEmail(subject)
	code, err := s.gen.Generate()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	err = s.codes.Upsert(ctx, &domain.VerificationCode{
		Subject:    subject,
		Purpose:    purpose,
		UserID:     userID,
		CodeHash:   s.hasher.Hash(subject, string(purpose), code),
		Status:     domain.VerificationPending,
		Attempts:   0,
		ExpiresAt:  now.Add(s.cfg.TTL),
		LastSentAt: now,
	})
	if err != nil {
		return "", err
	}
	observability.RecordVerificationEvent(ctx, string(purpose), "issued")
	return code, nil
}

// Resend behaves like Issue unless the previous code was sent within the
// cooldown, in which case it fails with ErrTooSoon and a retry hint.
func (s *VerificationService) Resend(ctx context.Context, subject string, purpose domain.VerificationPurpose, userID uint) (string, error) {
	subject = normalizeEmail(subject)
	var code string
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		prev, err := s.codes.LockBySubject(ctx, subject, purpose)
		if err != nil && !errors.Is(err, repository.ErrVerificationNotFound) {
			return err
		}
		if prev != nil {
			next := prev.LastSentAt.Add(s.cfg.ResendCooldown)
			if now := s.now(); now.Before(next) {
				observability.RecordVerificationEvent(ctx, string(purpose), "too_soon")
				return withRetryAfter(ErrTooSoon, next.Sub(now))
			}
		}
		code, err = s.Issue(ctx, subject, purpose, userID)
		return err
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks candidate against the live code. Failed attempts are
// committed before the outcome error is returned, so the attempt counter
// cannot be reset by retrying.
func (s *VerificationService) Verify(ctx context.Context, subject string, purpose domain.VerificationPurpose, candidate string) (*domain.VerificationCode, error) {
	subject = normalizeEmail(subject)
	var (
		result  *domain.VerificationCode
		outcome error
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		v, err := s.codes.LockBySubject(ctx, subject, purpose)
		if errors.Is(err, repository.ErrVerificationNotFound) {
			outcome = ErrVerificationCodeInvalid
			return nil
		}
		if err != nil {
			return err
		}
		now := s.now().UTC()
		switch {
		case v.Status == domain.VerificationConsumed:
			outcome = ErrVerificationCodeInvalid
			return nil
		case !now.Before(v.ExpiresAt):
			outcome = ErrVerificationCodeExpired
			return nil
		case v.Status == domain.VerificationLocked:
			outcome = ErrVerificationMaxAttempts
			return nil
		}

		if !s.hasher.Equal(v.CodeHash, subject, string(purpose), strings.TrimSpace(candidate)) {
			v.Attempts++
			outcome = ErrVerificationCodeInvalid
			if v.Attempts >= s.cfg.MaxAttempts {
				v.Status = domain.VerificationLocked
				outcome = ErrVerificationMaxAttempts
			}
			return s.codes.Save(ctx, v)
		}

		v.Status = domain.VerificationConsumed
		v.ConsumedAt = &now
		if err := s.codes.Save(ctx, v); err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		observability.RecordVerificationEvent(ctx, string(purpose), "error")
		return nil, err
	}
	if outcome != nil {
		observability.RecordVerificationEvent(ctx, string(purpose), verificationOutcome(outcome))
		return nil, outcome
	}
	observability.RecordVerificationEvent(ctx, string(purpose), "consumed")
	return result, nil
}

func verificationOutcome(err error) string {
	switch {
	case errors.Is(err, ErrVerificationCodeExpired):
		return "expired"
	case errors.Is(err, ErrVerificationMaxAttempts):
		return "max_attempts"
	default:
		return "invalid"
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
