package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/http/response"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"
	"github.com/sandeepkv93/todo-auth-core/internal/service"
)

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
	ResetAt    time.Time
	Reason     string
}

// RateLimitPolicy combines a sliding sustained window with a token bucket
// that bounds bursts inside it.
type RateLimitPolicy struct {
	SustainedLimit    int
	SustainedWindow   time.Duration
	BurstCapacity     int
	BurstRefillPerSec float64
}

// PerMinute is the common policy: limit requests per minute, bursts of up
// to limit.
func PerMinute(limit int) RateLimitPolicy {
	return normalizePolicy(RateLimitPolicy{SustainedLimit: limit, SustainedWindow: time.Minute})
}

type Limiter interface {
	Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

type KeyFunc func(r *http.Request) string

type RateLimiter struct {
	limiter Limiter
	policy  RateLimitPolicy
	mode    FailureMode
	scope   string
	keyFunc KeyFunc
}

type RateLimiterOption func(*RateLimiter)

// WithScope namespaces counters so one backend can serve several limiters.
func WithScope(scope string) RateLimiterOption {
	return func(rl *RateLimiter) {
		if scope != "" {
			rl.scope = scope
		}
	}
}

func WithFailureMode(mode FailureMode) RateLimiterOption {
	return func(rl *RateLimiter) { rl.mode = mode }
}

func WithKeyFunc(fn KeyFunc) RateLimiterOption {
	return func(rl *RateLimiter) {
		if fn != nil {
			rl.keyFunc = fn
		}
	}
}

// NewRateLimiter builds a middleware factory over limiter. Defaults: scope
// "api", keyed by client IP, failing closed when the backend errors.
func NewRateLimiter(limiter Limiter, policy RateLimitPolicy, opts ...RateLimiterOption) *RateLimiter {
	if limiter == nil {
		limiter = NewLocalLimiter()
	}
	rl := &RateLimiter{
		limiter: limiter,
		policy:  normalizePolicy(policy),
		mode:    FailClosed,
		scope:   "api",
		keyFunc: clientIPKey,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := rl.keyFunc(r)
			if key == "" {
				key = clientIPKey(r)
			}
			keyType := rateLimitKeyType(key)

			decision, err := rl.limiter.Allow(ctx, rl.scope+":"+key, rl.policy)
			if err != nil {
				observability.RecordRateLimitDecision(ctx, rl.scope, "backend_error", string(rl.mode), keyType)
				if rl.mode == FailOpen {
					slog.WarnContext(ctx, "rate limiter backend unavailable, allowing request", "scope", rl.scope, "error", err)
					next.ServeHTTP(w, r)
					return
				}
				decision = Decision{RetryAfter: rl.policy.SustainedWindow, ResetAt: time.Now().Add(rl.policy.SustainedWindow), Reason: "backend"}
				rl.reject(w, r, decision)
				return
			}
			writeRateLimitHeaders(w.Header(), rl.policy.SustainedLimit, decision.Remaining, decision.ResetAt)
			if !decision.Allowed {
				observability.RecordRateLimitDecision(ctx, rl.scope, "deny", string(rl.mode), keyType)
				rl.reject(w, r, decision)
				return
			}
			observability.RecordRateLimitDecision(ctx, rl.scope, "allow", string(rl.mode), keyType)
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) reject(w http.ResponseWriter, r *http.Request, d Decision) {
	if d.Reason == "" {
		d.Reason = "window"
	}
	writeRateLimitHeaders(w.Header(), rl.policy.SustainedLimit, 0, d.ResetAt)
	response.SetRetryAfter(w, d.RetryAfter)
	observability.RecordRateLimitRetryAfter(r.Context(), rl.scope, d.Reason, d.RetryAfter)
	response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
}

// SubjectOrIPKeyFunc keys authenticated callers by user id and everyone
// else by client address.
func SubjectOrIPKeyFunc(verifier service.AccessTokenVerifier) KeyFunc {
	return func(r *http.Request) string {
		if verifier == nil {
			return clientIPKey(r)
		}
		if subject := requestSubject(r, verifier); subject != "" {
			return "sub:" + subject
		}
		return clientIPKey(r)
	}
}

func requestSubject(r *http.Request, verifier service.AccessTokenVerifier) string {
	raw := BearerToken(r)
	if raw == "" {
		return ""
	}
	claims, ok := verifier.VerifyAccess(raw)
	if !ok {
		return ""
	}
	return claims.Subject
}

func parseRequestIP(r *http.Request) net.IP {
	host := strings.TrimSpace(r.RemoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}

func clientIPKey(r *http.Request) string {
	if ip := parseRequestIP(r); ip != nil {
		return ip.String()
	}
	return r.RemoteAddr
}

func writeRateLimitHeaders(h http.Header, limit int, remaining int, resetAt time.Time) {
	if resetAt.IsZero() {
		resetAt = time.Now().Add(time.Second)
	}
	h.Set("X-RateLimit-Limit", strconv.Itoa(max(limit, 0)))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

func normalizePolicy(policy RateLimitPolicy) RateLimitPolicy {
	if policy.SustainedLimit <= 0 {
		policy.SustainedLimit = 1
	}
	if policy.SustainedWindow <= 0 {
		policy.SustainedWindow = time.Minute
	}
	if policy.BurstCapacity < policy.SustainedLimit {
		policy.BurstCapacity = policy.SustainedLimit
	}
	if policy.BurstRefillPerSec <= 0 || math.IsNaN(policy.BurstRefillPerSec) {
		policy.BurstRefillPerSec = float64(policy.SustainedLimit) / policy.SustainedWindow.Seconds()
	}
	return policy
}

func rateLimitKeyType(key string) string {
	if strings.HasPrefix(key, "sub:") {
		return "subject"
	}
	return "ip"
}
