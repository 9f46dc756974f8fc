// Package auth issues and verifies the signed tokens that back sessions and
// hashes account passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"claimboard/internal/config"
	"claimboard/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers bad signatures, malformed tokens and bad subjects
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned once exp has passed
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the JWT payload. Email and Name are only set on access tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is what a login or refresh hands back to the client
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService signs access tokens and refresh tokens with separate secrets
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService creates a token service from auth configuration
func NewTokenService(cfg config.AuthConfig) *TokenService {
	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for signing and verification
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// AccessTTL is the access token lifetime, also used as cookie max-age
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL is the refresh token lifetime, also used as cookie max-age
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue creates a new access/refresh pair for the account
func (s *TokenService) Issue(account *models.Account) (TokenPair, error) {
	access, err := s.sign(s.accessSecret, s.accessTTL, account.ID, account.Email, account.Name)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.sign(s.refreshSecret, s.refreshTTL, account.ID, "", "")
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess returns the account id carried by a valid access token
func (s *TokenService) VerifyAccess(token string) (uuid.UUID, error) {
	return s.verify(token, s.accessSecret)
}

// VerifyRefresh returns the account id carried by a valid refresh token
func (s *TokenService) VerifyRefresh(token string) (uuid.UUID, error) {
	return s.verify(token, s.refreshSecret)
}

func (s *TokenService) sign(secret []byte, ttl time.Duration, subject uuid.UUID, email, name string) (string, error) {
	now := s.now()
	claims := Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *TokenService) verify(tokenString string, secret []byte) (uuid.UUID, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrTokenExpired
		}
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}
