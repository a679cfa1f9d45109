package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ClaimsVersion is the schema version stamped into every token. Tokens with
// any other version are rejected.
const ClaimsVersion = 1

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrUnexpectedTokenType = errors.New("unexpected token type")
	ErrClaimsVersion       = errors.New("unsupported claims version")
	ErrMalformedClaims     = errors.New("malformed token claims")
)

type AccessClaims struct {
	Version   int    `json:"cv"`
	TokenType string `json:"typ"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	Version       int    `json:"cv"`
	TokenType     string `json:"typ"`
	SessionID     string `json:"sid"`
	FamilyID      string `json:"fam"`
	FamilyVersion int64  `json:"fv"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) UserID() uint  { return subjectID(c.Subject) }
func (c *RefreshClaims) UserID() uint { return subjectID(c.Subject) }

func subjectID(sub string) uint {
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

type JWTManager struct {
	issuer        string
	audience      string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewJWTManager(issuer, audience, accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		issuer:        issuer,
		audience:      audience,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for signing and validation.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	cp := *m
	cp.now = now
	return &cp
}

func (m *JWTManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *JWTManager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *JWTManager) registered(userID uint, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Audience:  []string{m.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
}

func (m *JWTManager) SignAccessToken(userID uint, sessionID string) (string, error) {
	claims := AccessClaims{
		Version:          ClaimsVersion,
		TokenType:        TokenTypeAccess,
		SessionID:        sessionID,
		RegisteredClaims: m.registered(userID, m.accessTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
}

func (m *JWTManager) SignRefreshToken(userID uint, sessionID, familyID string, familyVersion int64) (string, error) {
	claims := RefreshClaims{
		Version:          ClaimsVersion,
		TokenType:        TokenTypeRefresh,
		SessionID:        sessionID,
		FamilyID:         familyID,
		FamilyVersion:    familyVersion,
		RegisteredClaims: m.registered(userID, m.refreshTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
}

func (m *JWTManager) ParseAccessToken(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(raw, claims, m.accessSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedTokenType, claims.TokenType)
	}
	if claims.Version != ClaimsVersion {
		return nil, ErrClaimsVersion
	}
	if claims.SessionID == "" || claims.UserID() == 0 {
		return nil, ErrMalformedClaims
	}
	return claims, nil
}

func (m *JWTManager) ParseRefreshToken(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(raw, claims, m.refreshSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedTokenType, claims.TokenType)
	}
	if claims.Version != ClaimsVersion {
		return nil, ErrClaimsVersion
	}
	if claims.SessionID == "" || claims.FamilyID == "" || claims.FamilyVersion < 1 || claims.UserID() == 0 {
		return nil, ErrMalformedClaims
	}
	return claims, nil
}

func (m *JWTManager) parse(raw string, claims jwt.Claims, secret []byte) error {
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return err
	}
	if !tok.Valid {
		return errors.New("invalid token")
	}
	return nil
}
