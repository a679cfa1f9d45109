package domain

import "time"

// LoginAttempt is the persisted consecutive-failure counter for one account.
type LoginAttempt struct {
	UserID        uint       `gorm:"primaryKey;autoIncrement:false"`
	FailureCount  int        `gorm:"not null;default:0"`
	LockedUntil   *time.Time `gorm:"index"`
	LastFailureAt *time.Time
	UpdatedAt     time.Time
}
