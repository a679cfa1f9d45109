package service

import (
	"context"
	"log/slog"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
)

type SecurityEventInput struct {
	UserID   *uint
	Kind     domain.SecurityEventKind
	Meta     RequestMeta
	Metadata map[string]string
}

// SecurityLogService appends audit rows. Writes happen after the business
// transaction commits; a failed write is logged and counted but never fails
// the request that caused it.
type SecurityLogService struct {
	events repository.SecurityEventRepository
	logger *slog.Logger
}

func NewSecurityLogService(events repository.SecurityEventRepository, logger *slog.Logger) *SecurityLogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecurityLogService{events: events, logger: logger}
}

func (s *SecurityLogService) Record(ctx context.Context, in SecurityEventInput) {
	e := &domain.SecurityEvent{
		UserID:    in.UserID,
		Kind:      in.Kind,
		IP:        in.Meta.IP,
		UserAgent: in.Meta.UserAgent,
		Metadata:  in.Metadata,
	}
	if err := s.events.Append(ctx, e); err != nil {
		observability.RecordSecurityLogFailure(ctx, string(in.Kind))
		attrs := []any{"kind", in.Kind, "error", err}
		if in.UserID != nil {
			attrs = append(attrs, "user_id", *in.UserID)
		}
		s.logger.ErrorContext(ctx, "security event write failed", attrs...)
	}
}

// RecordAll writes events in order.
func (s *SecurityLogService) RecordAll(ctx context.Context, events []SecurityEventInput) {
	for _, e := range events {
		s.Record(ctx, e)
	}
}

func (s *SecurityLogService) ListForUser(ctx context.Context, userID uint, page repository.PageRequest) (repository.PageResult[domain.SecurityEvent], error) {
	return s.events.ListByUser(ctx, userID, page)
}
