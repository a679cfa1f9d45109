package domain

import "time"

type SecurityEventKind string

const (
	EventUserRegistered          SecurityEventKind = "user_registered"
	EventEmailVerified           SecurityEventKind = "email_verified"
	EventVerificationCodeSent    SecurityEventKind = "verification_code_sent"
	EventVerificationFailed      SecurityEventKind = "verification_failed"
	EventVerificationLocked      SecurityEventKind = "verification_locked"
	EventLoginSucceeded          SecurityEventKind = "login_succeeded"
	EventLoginFailed             SecurityEventKind = "login_failed"
	EventAccountLocked           SecurityEventKind = "account_locked"
	EventLoginBlockedLocked      SecurityEventKind = "login_blocked_locked"
	EventTokenRotated            SecurityEventKind = "token_rotated"
	EventTokenReuseDetected      SecurityEventKind = "token_reuse_detected"
	EventLogout                  SecurityEventKind = "logout"
	EventLogoutAll               SecurityEventKind = "logout_all"
	EventSessionRevoked          SecurityEventKind = "session_revoked"
	EventPasswordChanged         SecurityEventKind = "password_changed"
	EventPasswordResetRequested  SecurityEventKind = "password_reset_requested"
	EventPasswordResetCompleted  SecurityEventKind = "password_reset_completed"
	EventExternalCredentialAdded SecurityEventKind = "external_credential_linked"
)

// SecurityEvent is an append-only audit row. Rows are removed only by the
// retention sweep.
type SecurityEvent struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    *uint             `gorm:"index" json:"user_id,omitempty"`
	Kind      SecurityEventKind `gorm:"size:48;index;not null" json:"kind"`
	IP        string            `gorm:"size:64" json:"ip"`
	UserAgent string            `gorm:"size:512" json:"user_agent"`
	Metadata  map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}
