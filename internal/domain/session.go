package domain

import "time"

type Session struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	UserID            uint       `gorm:"index;not null" json:"user_id"`
	FamilyID          string     `gorm:"size:36;uniqueIndex;not null" json:"-"`
	FamilyVersion     int64      `gorm:"not null;default:1" json:"-"`
	DeviceFingerprint string     `gorm:"size:128" json:"device_fingerprint"`
	UserAgent         string     `gorm:"size:512" json:"user_agent"`
	IP                string     `gorm:"size:64" json:"ip"`
	LastActiveAt      time.Time  `gorm:"index;not null" json:"last_active_at"`
	ExpiresAt         time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt         *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	RevokedReason     *string    `gorm:"size:64" json:"revoked_reason,omitempty"`
	ReuseDetectedAt   *time.Time `json:"reuse_detected_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}
