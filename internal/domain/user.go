package domain

import "time"

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusLocked    UserStatus = "locked"
	UserStatusSuspended UserStatus = "suspended"
)

type User struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Email            string     `gorm:"size:320;uniqueIndex;not null" json:"email"`
	Name             string     `gorm:"size:120" json:"name"`
	ProfileImage     string     `gorm:"size:1024" json:"profile_image"`
	Status           UserStatus `gorm:"size:16;not null;default:active" json:"status"`
	EmailVerified    bool       `gorm:"not null;default:false" json:"email_verified"`
	EmailVerifiedAt  *time.Time `json:"email_verified_at,omitempty"`
	TwoFactorEnabled bool       `gorm:"not null;default:false" json:"two_factor_enabled"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
