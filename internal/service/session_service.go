package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/repository"
	"github.com/sandeepkv93/todo-auth-core/internal/security"
)

const (
	RevokeReasonLogout    = "logout"
	RevokeReasonLogoutAll = "logout_all"
	RevokeReasonUser      = "user_session_revoked"
	RevokeReasonReuse     = "reuse_detected"
)

// RequestMeta describes the client a request came from.
type RequestMeta struct {
	IP        string
	UserAgent string
	DeviceID  string
}

type SessionView struct {
	ID                string    `json:"id"`
	DeviceFingerprint string    `json:"deviceFingerprint"`
	UserAgent         string    `json:"userAgent"`
	IP                string    `json:"ip"`
	CreatedAt         time.Time `json:"createdAt"`
	LastActiveAt      time.Time `json:"lastActiveAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
	IsCurrent         bool      `json:"isCurrent"`
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	refreshTTL  time.Duration
	now         func() time.Time
}

func NewSessionService(sessionRepo repository.SessionRepository, refreshTTL time.Duration) *SessionService {
	return &SessionService{sessionRepo: sessionRepo, refreshTTL: refreshTTL, now: time.Now}
}

// Create starts a new session with a fresh token family at version 1.
func (s *SessionService) Create(ctx context.Context, userID uint, meta RequestMeta) (*domain.Session, error) {
	now := s.now().UTC()
	session := &domain.Session{
		ID:                uuid.NewString(),
		UserID:            userID,
		FamilyID:          uuid.NewString(),
		FamilyVersion:     1,
		DeviceFingerprint: security.DeviceFingerprint(meta.DeviceID, meta.UserAgent),
		UserAgent:         meta.UserAgent,
		IP:                meta.IP,
		LastActiveAt:      now,
		ExpiresAt:         now.Add(s.refreshTTL),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// TouchOnRefresh locks the session row for the rest of the caller's
// transaction and returns the family's current version.
func (s *SessionService) TouchOnRefresh(ctx context.Context, userID uint, sessionID string) (int64, error) {
	session, err := s.sessionRepo.LockByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return 0, ErrSessionNotFound
		}
		return 0, err
	}
	if session.UserID != userID {
		return 0, ErrSessionNotFound
	}
	if !session.Active(s.now()) {
		return 0, ErrSessionRevoked
	}
	return session.FamilyVersion, nil
}

// AdvanceFamily bumps the family version and slides the session expiry to a
// full refresh TTL from now, matching the lifetime of the rotated token.
func (s *SessionService) AdvanceFamily(ctx context.Context, sessionID string, expected int64) (int64, error) {
	now := s.now().UTC()
	return s.sessionRepo.AdvanceFamily(ctx, sessionID, expected, now, now.Add(s.refreshTTL))
}

// Revoke is idempotent: revoking an already revoked session reports
// changed=false without error.
func (s *SessionService) Revoke(ctx context.Context, userID uint, sessionID, reason string) (bool, error) {
	changed, err := s.sessionRepo.RevokeByIDForUser(ctx, userID, sessionID, reason)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return false, ErrSessionNotFound
		}
		return false, err
	}
	return changed, nil
}

func (s *SessionService) RevokeAll(ctx context.Context, userID uint, reason string) (int64, error) {
	return s.sessionRepo.RevokeByUserID(ctx, userID, reason)
}

// RevokeForReuse ends the whole family. Every token minted for it is dead
// once the session row is revoked.
func (s *SessionService) RevokeForReuse(ctx context.Context, sessionID string) error {
	return s.sessionRepo.MarkReuseDetected(ctx, sessionID)
}

func (s *SessionService) List(ctx context.Context, userID uint, currentSessionID string) ([]SessionView, error) {
	sessions, err := s.sessionRepo.ListActiveByUserID(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			ID:                session.ID,
			DeviceFingerprint: session.DeviceFingerprint,
			UserAgent:         session.UserAgent,
			IP:                session.IP,
			CreatedAt:         session.CreatedAt,
			LastActiveAt:      session.LastActiveAt,
			ExpiresAt:         session.ExpiresAt,
			IsCurrent:         session.ID == currentSessionID,
		})
	}
	return views, nil
}

// IsActive reports whether the session exists for userID and is neither
// revoked nor expired.
func (s *SessionService) IsActive(ctx context.Context, userID uint, sessionID string) (bool, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return session.UserID == userID && session.Active(s.now()), nil
}
