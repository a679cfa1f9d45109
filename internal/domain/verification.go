package domain

import "time"

type VerificationPurpose string

const (
	PurposeRegister VerificationPurpose = "register"
	PurposeReset    VerificationPurpose = "reset"
)

func (p VerificationPurpose) Valid() bool {
	return p == PurposeRegister || p == PurposeReset
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationConsumed VerificationStatus = "consumed"
	VerificationLocked   VerificationStatus = "locked"
)

// VerificationCode holds the single active one-time code for a
// (subject, purpose) pair. Issuing again overwrites the row.
type VerificationCode struct {
	ID         uint                `gorm:"primaryKey"`
	Subject    string              `gorm:"size:320;not null;uniqueIndex:idx_verification_subject_purpose"`
	Purpose    VerificationPurpose `gorm:"size:16;not null;uniqueIndex:idx_verification_subject_purpose"`
	UserID     uint                `gorm:"index;not null"`
	CodeHash   string              `gorm:"size:64;not null"`
	Status     VerificationStatus  `gorm:"size:16;not null"`
	Attempts   int                 `gorm:"not null;default:0"`
	ExpiresAt  time.Time           `gorm:"index;not null"`
	LastSentAt time.Time           `gorm:"not null"`
	ConsumedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
