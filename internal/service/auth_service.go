package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
	"github.com/sandeepkv93/todo-auth-core/internal/security"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Meta     RequestMeta
}

type RegisterResult struct {
	UserID               uint   `json:"userId"`
	Email                string `json:"email"`
	VerificationRequired bool   `json:"verificationRequired"`
}

type VerifyEmailInput struct {
	Email string
	Code  string
	Meta  RequestMeta
}

type LoginInput struct {
	Email    string
	Password string
	Meta     RequestMeta
}

type ChangePasswordInput struct {
	UserID          uint
	CurrentPassword string
	NewPassword     string
	Meta            RequestMeta
}

type LinkExternalInput struct {
	UserID    uint
	Provider  domain.CredentialProvider
	AccountID string
	Token     *oauth2.Token
	Meta      RequestMeta
}

type ResetPasswordInput struct {
	Email       string
	Code        string
	NewPassword string
	Meta        RequestMeta
}

// AuthResult is a token pair plus the profile fields clients show right
// after signing in.
type AuthResult struct {
	TokenPair
	Name         string `json:"name"`
	ProfileImage string `json:"profileImage"`
	UserID       uint   `json:"-"`
	SessionID    string `json:"-"`
}

// AuthService coordinates the stores for every auth flow. Multi-store
// mutations run in one transaction; code delivery and security events are
// written afterwards, in order.
type AuthService struct {
	tx           repository.TxManager
	users        repository.UserRepository
	creds        *CredentialService
	sessions     *SessionService
	tokens       *TokenService
	lockout      *LockoutService
	verification *VerificationService
	seclog       *SecurityLogService
	sender       CodeSender
	logger       *slog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

func NewAuthService(
	tx repository.TxManager,
	users repository.UserRepository,
	creds *CredentialService,
	sessions *SessionService,
	tokens *TokenService,
	lockout *LockoutService,
	verification *VerificationService,
	seclog *SecurityLogService,
	sender CodeSender,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		tx:           tx,
		users:        users,
		creds:        creds,
		sessions:     sessions,
		tokens:       tokens,
		lockout:      lockout,
		verification: verification,
		seclog:       seclog,
		sender:       sender,
		logger:       logger,
		tracer:       otel.Tracer("todo-auth-core/service"),
		now:          time.Now,
	}
}

// flow tracks one orchestrated request. Queued events are written after
// the outcome is known.
type flow struct {
	name   string
	span   trace.Span
	start  time.Time
	events []SecurityEventInput
}

func (s *AuthService) begin(ctx context.Context, name string) (context.Context, *flow) {
	ctx, span := s.tracer.Start(ctx, "auth."+name)
	return ctx, &flow{name: name, span: span, start: time.Now()}
}

func (f *flow) record(userID *uint, kind domain.SecurityEventKind, meta RequestMeta, metadata map[string]string) {
	f.events = append(f.events, SecurityEventInput{UserID: userID, Kind: kind, Meta: meta, Metadata: metadata})
}

func (s *AuthService) end(ctx context.Context, f *flow, err error) {
	s.seclog.RecordAll(ctx, f.events)
	outcome := "success"
	if err != nil {
		kind := KindOf(err)
		outcome = string(kind)
		f.span.RecordError(err)
		if kind == KindInternal {
			f.span.SetStatus(codes.Error, err.Error())
		}
	}
	f.span.SetAttributes(attribute.String("auth.outcome", outcome))
	observability.RecordAuthRequestDuration(ctx, f.name, outcome, time.Since(f.start))
	f.span.End()
}

func (s *AuthService) sendCode(ctx context.Context, msg CodeMessage) {
	if err := s.sender.SendCode(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "verification code delivery failed",
			"user_id", msg.UserID,
			"purpose", msg.Purpose,
			"error", err,
		)
	}
}

func uidPtr(id uint) *uint { return &id }

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res *RegisterResult, err error) {
	ctx, f := s.begin(ctx, "register")
	defer func() { s.end(ctx, f, err) }()

	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, validationError("email is required")
	}
	hash, err := s.creds.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var (
		user *domain.User
		code string
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user = &domain.User{Email: email, Name: in.Name, Status: domain.UserStatusActive}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrEmailTaken) {
				return ErrEmailAlreadyRegistered
			}
			return err
		}
		if err := s.creds.StorePasswordHash(ctx, user.ID, email, hash); err != nil {
			return err
		}
		code, err = s.verification.Issue(ctx, email, domain.PurposeRegister, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	f.record(uidPtr(user.ID), domain.EventUserRegistered, in.Meta, nil)
	s.sendCode(ctx, CodeMessage{UserID: user.ID, Email: email, Purpose: domain.PurposeRegister, Code: code})
	f.record(uidPtr(user.ID), domain.EventVerificationCodeSent, in.Meta, map[string]string{"purpose": string(domain.PurposeRegister)})
	return &RegisterResult{UserID: user.ID, Email: email, VerificationRequired: true}, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, in VerifyEmailInput) (res *AuthResult, err error) {
	ctx, f := s.begin(ctx, "verify_email")
	defer func() { s.end(ctx, f, err) }()

	email := normalizeEmail(in.Email)
	var outcome error
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		v, err := s.verification.Verify(ctx, email, domain.PurposeRegister, in.Code)
		if err != nil {
			if isOutcome(err) {
				outcome = err
				return nil
			}
			return err
		}
		user, err := s.users.FindByID(ctx, v.UserID)
		if err != nil {
			return err
		}
		if !user.EmailVerified {
			if err := s.users.MarkEmailVerified(ctx, user.ID, s.now().UTC()); err != nil {
				return err
			}
		}
		res, err = s.startSession(ctx, user, in.Meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		s.recordVerificationFailure(f, email, domain.PurposeRegister, in.Meta, outcome)
		return nil, outcome
	}

	f.record(uidPtr(res.UserID), domain.EventEmailVerified, in.Meta, map[string]string{"session_id": res.SessionID})
	return res, nil
}

func (s *AuthService) recordVerificationFailure(f *flow, email string, purpose domain.VerificationPurpose, meta RequestMeta, outcome error) {
	kind := domain.EventVerificationFailed
	if errors.Is(outcome, ErrVerificationMaxAttempts) {
		kind = domain.EventVerificationLocked
	}
	f.record(nil, kind, meta, map[string]string{
		"subject": email,
		"purpose": string(purpose),
		"reason":  verificationOutcome(outcome),
	})
}

// startSession creates a session and signs its first token pair. It must be
// called inside the flow's transaction.
func (s *AuthService) startSession(ctx context.Context, user *domain.User, meta RequestMeta) (*AuthResult, error) {
	session, err := s.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}
	pair, err := s.tokens.IssuePair(user.ID, session.ID, session.FamilyID, session.FamilyVersion)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		TokenPair:    pair,
		Name:         user.Name,
		ProfileImage: user.ProfileImage,
		UserID:       user.ID,
		SessionID:    session.ID,
	}, nil
}

// ResendVerification re-issues a code. Unknown or already verified
// addresses succeed silently so the endpoint cannot enumerate accounts.
func (s *AuthService) ResendVerification(ctx context.Context, email string, purpose domain.VerificationPurpose, meta RequestMeta) (err error) {
	ctx, f := s.begin(ctx, "resend_verification")
	defer func() { s.end(ctx, f, err) }()

	if !purpose.Valid() {
		return validationError("unknown verification purpose")
	}
	email = normalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if purpose == domain.PurposeRegister && user.EmailVerified {
		return nil
	}

	code, err := s.verification.Resend(ctx, email, purpose, user.ID)
	if err != nil {
		return err
	}
	s.sendCode(ctx, CodeMessage{UserID: user.ID, Email: email, Purpose: purpose, Code: code})
	f.record(uidPtr(user.ID), domain.EventVerificationCodeSent, meta, map[string]string{"purpose": string(purpose)})
	return nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (res *AuthResult, err error) {
	ctx, f := s.begin(ctx, "login")
	defer func() {
		observability.RecordAuthLogin(ctx, loginStatus(err))
		s.end(ctx, f, err)
	}()

	email := normalizeEmail(in.Email)
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.creds.DummyCompare(in.Password)
		f.record(nil, domain.EventLoginFailed, in.Meta, map[string]string{"reason": "unknown_email"})
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	f.span.SetAttributes(attribute.Int64("auth.user_id", int64(user.ID)))

	lock, err := s.lockout.CheckLock(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if lock.Locked {
		f.record(uidPtr(user.ID), domain.EventLoginBlockedLocked, in.Meta, nil)
		return nil, withRetryAfter(ErrAccountLocked, lock.RetryAfter(s.now()))
	}
	switch user.Status {
	case domain.UserStatusSuspended:
		f.record(uidPtr(user.ID), domain.EventLoginFailed, in.Meta, map[string]string{"reason": "suspended"})
		return nil, ErrAccountSuspended
	case domain.UserStatusLocked:
		f.record(uidPtr(user.ID), domain.EventLoginBlockedLocked, in.Meta, map[string]string{"reason": "account_status"})
		return nil, ErrAccountLocked
	}

	ok, err := s.creds.VerifyPassword(ctx, user.ID, in.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		lock, err := s.lockout.RecordFailure(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		f.record(uidPtr(user.ID), domain.EventLoginFailed, in.Meta, map[string]string{
			"reason":   "bad_password",
			"failures": strconv.Itoa(lock.Failures),
		})
		if lock.Locked {
			if lock.NewlyLocked {
				f.record(uidPtr(user.ID), domain.EventAccountLocked, in.Meta, map[string]string{
					"locked_until": lock.LockedUntil.UTC().Format(time.RFC3339),
				})
			}
			return nil, withRetryAfter(ErrAccountLocked, lock.RetryAfter(s.now()))
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.lockout.RecordSuccess(ctx, user.ID); err != nil {
		return nil, err
	}
	if !user.EmailVerified {
		f.record(uidPtr(user.ID), domain.EventLoginFailed, in.Meta, map[string]string{"reason": "email_not_verified"})
		return nil, ErrEmailNotVerified
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var serr error
		res, serr = s.startSession(ctx, user, in.Meta)
		return serr
	})
	if err != nil {
		return nil, err
	}
	f.record(uidPtr(user.ID), domain.EventLoginSucceeded, in.Meta, map[string]string{"session_id": res.SessionID})
	return res, nil
}

func loginStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAccountLocked):
		return "locked"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrEmailNotVerified):
		return "email_not_verified"
	case errors.Is(err, ErrAccountSuspended):
		return "suspended"
	default:
		return "error"
	}
}

// Refresh rotates a refresh token. The session row is locked while its
// family version is compared and advanced, so of two requests presenting the
// same version exactly one rotates and the other is treated as reuse. Reuse
// revokes the session and that revocation is committed before the error is
// returned.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string, meta RequestMeta) (res *AuthResult, err error) {
	ctx, f := s.begin(ctx, "refresh")
	defer func() {
		observability.RecordAuthRefresh(ctx, refreshStatus(err))
		s.end(ctx, f, err)
	}()

	claims, ok := s.tokens.VerifyRefresh(rawRefresh)
	if !ok {
		return nil, ErrRefreshTokenInvalid
	}
	userID := claims.UserID()
	f.span.SetAttributes(attribute.String("auth.session_id", claims.SessionID))

	var outcome error
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.sessions.TouchOnRefresh(ctx, userID, claims.SessionID)
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionRevoked) {
			outcome = ErrRefreshTokenInvalid
			return nil
		}
		if err != nil {
			return err
		}
		if claims.FamilyVersion != current {
			outcome = ErrTokenReuseDetected
			return s.sessions.RevokeForReuse(ctx, claims.SessionID)
		}
		next, err := s.sessions.AdvanceFamily(ctx, claims.SessionID, current)
		if errors.Is(err, ErrStaleFamilyVersion) {
			outcome = ErrTokenReuseDetected
			return s.sessions.RevokeForReuse(ctx, claims.SessionID)
		}
		if err != nil {
			return err
		}

		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.Status == domain.UserStatusSuspended {
			outcome = ErrAccountSuspended
			_, err := s.sessions.Revoke(ctx, userID, claims.SessionID, "account_suspended")
			return err
		}
		pair, err := s.tokens.Rotate(claims, next)
		if err != nil {
			return err
		}
		res = &AuthResult{
			TokenPair:    pair,
			Name:         user.Name,
			ProfileImage: user.ProfileImage,
			UserID:       user.ID,
			SessionID:    claims.SessionID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	switch {
	case errors.Is(outcome, ErrTokenReuseDetected):
		f.record(uidPtr(userID), domain.EventTokenReuseDetected, meta, map[string]string{
			"session_id":        claims.SessionID,
			"family_id":         claims.FamilyID,
			"presented_version": strconv.FormatInt(claims.FamilyVersion, 10),
		})
		s.logger.WarnContext(ctx, "refresh token reuse detected",
			"user_id", userID,
			"session_id", claims.SessionID,
		)
		return nil, outcome
	case outcome != nil:
		return nil, outcome
	}
	f.record(uidPtr(userID), domain.EventTokenRotated, meta, map[string]string{
		"session_id": claims.SessionID,
		"version":    strconv.FormatInt(claims.FamilyVersion+1, 10),
	})
	return res, nil
}

func refreshStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTokenReuseDetected):
		return "reuse_detected"
	case errors.Is(err, ErrRefreshTokenInvalid):
		return "invalid"
	default:
		return "error"
	}
}

// Logout revokes the session the access token belongs to. Logging out twice
// is not an error.
func (s *AuthService) Logout(ctx context.Context, claims *security.AccessClaims, meta RequestMeta) (err error) {
	ctx, f := s.begin(ctx, "logout")
	defer func() {
		observability.RecordAuthLogout(ctx, "session", statusOf(err))
		s.end(ctx, f, err)
	}()

	if claims == nil {
		return ErrUnauthorized
	}
	userID := claims.UserID()
	changed, err := s.sessions.Revoke(ctx, userID, claims.SessionID, RevokeReasonLogout)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	if changed {
		f.record(uidPtr(userID), domain.EventLogout, meta, map[string]string{"session_id": claims.SessionID})
	}
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uint, meta RequestMeta) (n int64, err error) {
	ctx, f := s.begin(ctx, "logout_all")
	defer func() {
		observability.RecordAuthLogout(ctx, "all", statusOf(err))
		s.end(ctx, f, err)
	}()

	n, err = s.sessions.RevokeAll(ctx, userID, RevokeReasonLogoutAll)
	if err != nil {
		return 0, err
	}
	f.record(uidPtr(userID), domain.EventLogoutAll, meta, map[string]string{"revoked": strconv.FormatInt(n, 10)})
	return n, nil
}

func (s *AuthService) ListSessions(ctx context.Context, userID uint, currentSessionID string) ([]SessionView, error) {
	return s.sessions.List(ctx, userID, currentSessionID)
}

func (s *AuthService) RevokeSession(ctx context.Context, userID uint, sessionID string, meta RequestMeta) (changed bool, err error) {
	ctx, f := s.begin(ctx, "revoke_session")
	defer func() { s.end(ctx, f, err) }()

	changed, err = s.sessions.Revoke(ctx, userID, sessionID, RevokeReasonUser)
	if err != nil {
		return false, err
	}
	if changed {
		f.record(uidPtr(userID), domain.EventSessionRevoked, meta, map[string]string{"session_id": sessionID})
	}
	return changed, nil
}

// ChangePassword replaces the password after checking the current one.
// Existing sessions stay valid; clients that want otherwise follow up with
// LogoutAll.
func (s *AuthService) ChangePassword(ctx context.Context, in ChangePasswordInput) (err error) {
	ctx, f := s.begin(ctx, "change_password")
	defer func() { s.end(ctx, f, err) }()

	user, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	ok, err := s.creds.VerifyPassword(ctx, user.ID, in.CurrentPassword)
	if err != nil {
		return err
	}
	if !ok {
		f.record(uidPtr(user.ID), domain.EventLoginFailed, in.Meta, map[string]string{"reason": "change_password_mismatch"})
		return ErrInvalidCredentials
	}
	hash, err := s.creds.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.creds.StorePasswordHash(ctx, user.ID, user.Email, hash); err != nil {
		return err
	}
	f.record(uidPtr(user.ID), domain.EventPasswordChanged, in.Meta, nil)
	return nil
}

// ForgotPassword issues a reset code. Unknown addresses and requests inside
// the resend cooldown succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, meta RequestMeta) (err error) {
	ctx, f := s.begin(ctx, "forgot_password")
	defer func() { s.end(ctx, f, err) }()

	email = normalizeEmail(email)
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	code, err := s.verification.Resend(ctx, email, domain.PurposeReset, user.ID)
	if errors.Is(err, ErrTooSoon) {
		return nil
	}
	if err != nil {
		return err
	}
	s.sendCode(ctx, CodeMessage{UserID: user.ID, Email: email, Purpose: domain.PurposeReset, Code: code})
	f.record(uidPtr(user.ID), domain.EventPasswordResetRequested, meta, nil)
	return nil
}

// ResetPassword sets a new password using a reset code. It clears the login
// failure counter and leaves sessions alone.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) (err error) {
	ctx, f := s.begin(ctx, "reset_password")
	defer func() { s.end(ctx, f, err) }()

	email := normalizeEmail(in.Email)
	hash, err := s.creds.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}

	var (
		outcome error
		userID  uint
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		v, err := s.verification.Verify(ctx, email, domain.PurposeReset, in.Code)
		if err != nil {
			if isOutcome(err) {
				outcome = err
				return nil
			}
			return err
		}
		user, err := s.users.FindByID(ctx, v.UserID)
		if err != nil {
			return err
		}
		userID = user.ID
		if err := s.creds.StorePasswordHash(ctx, user.ID, user.Email, hash); err != nil {
			return err
		}
		return s.lockout.RecordSuccess(ctx, user.ID)
	})
	if err != nil {
		return err
	}
	if outcome != nil {
		s.recordVerificationFailure(f, email, domain.PurposeReset, in.Meta, outcome)
		return outcome
	}
	f.record(uidPtr(userID), domain.EventPasswordResetCompleted, in.Meta, nil)
	return nil
}

// LinkExternalCredential attaches a provider account, already exchanged by
// the caller, to the signed-in user.
func (s *AuthService) LinkExternalCredential(ctx context.Context, in LinkExternalInput) (view *CredentialView, err error) {
	ctx, f := s.begin(ctx, "link_external_credential")
	defer func() { s.end(ctx, f, err) }()

	if _, err := s.users.FindByID(ctx, in.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	cred, err := s.creds.LinkExternal(ctx, in.UserID, in.Provider, in.AccountID, in.Token)
	if err != nil {
		return nil, err
	}
	f.record(uidPtr(in.UserID), domain.EventExternalCredentialAdded, in.Meta, map[string]string{"provider": string(in.Provider)})
	v := newCredentialView(*cred)
	return &v, nil
}

func (s *AuthService) ListCredentials(ctx context.Context, userID uint) ([]CredentialView, error) {
	return s.creds.List(ctx, userID)
}

func (s *AuthService) SecurityEvents(ctx context.Context, userID uint, page repository.PageRequest) (repository.PageResult[domain.SecurityEvent], error) {
	return s.seclog.ListForUser(ctx, userID, page)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
