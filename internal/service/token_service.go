package service

import (
	"errors"

	"github.com/sandeepkv93/todo-auth-core/internal/security"
)

var ErrRotationVersion = errors.New("rotation must advance the family by exactly one version")

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// TokenService signs and verifies token pairs. It holds no state: the
// current family version lives on the session row.
type TokenService struct {
	jwtMgr *security.JWTManager
}

func NewTokenService(jwtMgr *security.JWTManager) *TokenService {
	return &TokenService{jwtMgr: jwtMgr}
}

func (s *TokenService) IssuePair(userID uint, sessionID, familyID string, version int64) (TokenPair, error) {
	access, err := s.jwtMgr.SignAccessToken(userID, sessionID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.jwtMgr.SignRefreshToken(userID, sessionID, familyID, version)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwtMgr.AccessTTL().Seconds()),
	}, nil
}

func (s *TokenService) VerifyAccess(raw string) (*security.AccessClaims, bool) {
	claims, err := s.jwtMgr.ParseAccessToken(raw)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func (s *TokenService) VerifyRefresh(raw string) (*security.RefreshClaims, bool) {
	claims, err := s.jwtMgr.ParseRefreshToken(raw)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// Rotate issues the successor pair for claims. newVersion is the version the
// family was advanced to and must be exactly one past the presented one.
func (s *TokenService) Rotate(claims *security.RefreshClaims, newVersion int64) (TokenPair, error) {
	if claims == nil || newVersion != claims.FamilyVersion+1 {
		return TokenPair{}, ErrRotationVersion
	}
	return s.IssuePair(claims.UserID(), claims.SessionID, claims.FamilyID, newVersion)
}
