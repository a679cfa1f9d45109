package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sandeepkv93/todo-auth-core/internal/domain"
)

// CodeMessage is one verification code to deliver to a mailbox.
type CodeMessage struct {
	UserID  uint
	Email   string
	Purpose domain.VerificationPurpose
	Code    string
}

// CodeSender hands codes to the delivery channel. Delivery itself (email
// rendering and transport) happens outside this service.
type CodeSender interface {
	SendCode(ctx context.Context, msg CodeMessage) error
}

// LogCodeSender writes codes to the debug log. Local development only.
type LogCodeSender struct {
	logger *slog.Logger
}

func NewLogCodeSender(logger *slog.Logger) *LogCodeSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogCodeSender{logger: logger}
}

func (s *LogCodeSender) SendCode(ctx context.Context, msg CodeMessage) error {
	s.logger.DebugContext(ctx, "verification code issued",
		"user_id", msg.UserID,
		"email", msg.Email,
		"purpose", msg.Purpose,
		"code", msg.Code,
	)
	return nil
}

const defaultCodeStreamMaxLen = 10000

// RedisStreamCodeSender appends codes to a Redis stream consumed by the
// mail worker.
type RedisStreamCodeSender struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

func NewRedisStreamCodeSender(client redis.UniversalClient, prefix string) *RedisStreamCodeSender {
	if prefix == "" {
		prefix = "todo_auth"
	}
	return &RedisStreamCodeSender{
		client: client,
		stream: prefix + ":verification_codes",
		maxLen: defaultCodeStreamMaxLen,
	}
}

func (s *RedisStreamCodeSender) Stream() string { return s.stream }

func (s *RedisStreamCodeSender) SendCode(ctx context.Context, msg CodeMessage) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"user_id": strconv.FormatUint(uint64(msg.UserID), 10),
			"email":   msg.Email,
			"purpose": string(msg.Purpose),
			"code":    msg.Code,
		},
	}).Err()
}
