package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// CredentialProvider tags which payload of a Credential is populated.
type CredentialProvider string

const (
	ProviderPassword CredentialProvider = "password"
	ProviderGoogle   CredentialProvider = "google"
	ProviderApple    CredentialProvider = "apple"
)

func (p CredentialProvider) IsExternal() bool {
	return p == ProviderGoogle || p == ProviderApple
}

// Credential is one login method for a user. Password credentials carry
// PasswordHash; external credentials carry ProviderAccountID and the
// provider's token set.
type Credential struct {
	ID                uint               `gorm:"primaryKey" json:"id"`
	UserID            uint               `gorm:"not null;uniqueIndex:idx_credentials_user_provider" json:"user_id"`
	Provider          CredentialProvider `gorm:"size:32;not null;uniqueIndex:idx_credentials_user_provider;uniqueIndex:idx_credentials_provider_account" json:"provider"`
	ProviderAccountID string             `gorm:"size:191;not null;uniqueIndex:idx_credentials_provider_account" json:"-"`
	PasswordHash      string             `gorm:"size:255" json:"-"`
	ExternalTokens    *oauth2.Token      `gorm:"serializer:json" json:"-"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}
