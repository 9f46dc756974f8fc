package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"claimboard/internal/apperr"
	"claimboard/internal/auth"
	"claimboard/internal/logger"
	"claimboard/internal/models"
	"claimboard/internal/repository"

	"github.com/google/uuid"
)

// AuthService handles registration, login, token rotation and the lookups
// behind the auth gate
type AuthService struct {
	accounts AccountStore
	tokens   *auth.TokenService
}

// NewAuthService creates a new auth service
func NewAuthService(accounts AccountStore, tokens *auth.TokenService) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
	}
}

// LoginResult is a logged-in account with its fresh token pair
type LoginResult struct {
	Account *models.Account
	Tokens  auth.TokenPair
}

// Register creates an account after checking name and email are free
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.Account, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" || strings.TrimSpace(req.Password) == "" {
		return nil, apperr.Validation("All fields are required")
	}
	// the request validator counts runes, bcrypt counts bytes
	if len(req.Password) > auth.MaxPasswordBytes {
		return nil, apperr.Validation("Password is too long")
	}

	exists, err := s.accounts.AccountExists(ctx, name, email)
	if err != nil {
		return nil, apperr.Internal("something went wrong while registering the user", err)
	}
	if exists {
		return nil, apperr.Conflict("User with email or username already exists")
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal("something went wrong while registering the user", err)
	}

	account := &models.Account{
		Name:     name,
		Email:    email,
		Password: hashed,
		Avatar:   DefaultAvatarURL(name),
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("User with email or username already exists")
		}
		return nil, apperr.Internal("something went wrong while registering the user", err)
	}

	logger.Success("Registered account %s (%s)", account.ID, account.Email)
	return sanitize(account), nil
}

// Login verifies credentials and issues a new token pair
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*LoginResult, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperr.Validation("All fields are required")
	}

	account, err := s.accounts.FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Validation("User does not exist")
		}
		return nil, apperr.Internal("failed to load user", err)
	}

	ok, err := auth.CheckPassword(account.Password, req.Password)
	if err != nil {
		return nil, apperr.Internal("failed to verify credentials", err)
	}
	if !ok {
		return nil, apperr.Unauthorized("Invalid user credentials", nil)
	}

	tokens, err := s.issueAndStore(ctx, account)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Account: sanitize(account), Tokens: tokens}, nil
}

// Refresh rotates the refresh token. The presented token must match the
// one on file, so a replayed old token is rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperr.Unauthorized("Unauthorized request", nil)
	}

	accountID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid refresh token", err)
	}

	account, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized("Invalid refresh token", err)
		}
		return nil, apperr.Internal("failed to load user", err)
	}

	if account.RefreshToken == nil || *account.RefreshToken != refreshToken {
		return nil, apperr.Unauthorized("Refresh token is expired or used", nil)
	}

	tokens, err := s.tokens.Issue(account)
	if err != nil {
		return nil, apperr.Internal("something went wrong while generating refresh and access token", err)
	}

	// Only one of several concurrent refreshes with the same token can win the swap.
	if err := s.accounts.RotateRefreshToken(ctx, account.ID, refreshToken, tokens.RefreshToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized("Refresh token is expired or used", nil)
		}
		return nil, apperr.Internal("something went wrong while generating refresh and access token", err)
	}
	return &tokens, nil
}

// Logout forgets the stored refresh token
func (s *AuthService) Logout(ctx context.Context, accountID uuid.UUID) error {
	if err := s.accounts.SetRefreshToken(ctx, accountID, nil); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Unauthorized("Invalid access token", err)
		}
		return apperr.Internal("failed to log out", err)
	}
	return nil
}

// Authenticate resolves an access token to its account, password excluded
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.Account, error) {
	accountID, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid access token", err)
	}

	account, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthorized("Invalid access token", err)
		}
		return nil, apperr.Internal("failed to load user", err)
	}
	return sanitize(account), nil
}

// AccessTTL and RefreshTTL expose token lifetimes for cookie max-age
func (s *AuthService) AccessTTL() time.Duration  { return s.tokens.AccessTTL() }
func (s *AuthService) RefreshTTL() time.Duration { return s.tokens.RefreshTTL() }

func (s *AuthService) issueAndStore(ctx context.Context, account *models.Account) (auth.TokenPair, error) {
	tokens, err := s.tokens.Issue(account)
	if err != nil {
		return auth.TokenPair{}, apperr.Internal("something went wrong while generating refresh and access token", err)
	}

	if err := s.accounts.SetRefreshToken(ctx, account.ID, &tokens.RefreshToken); err != nil {
		return auth.TokenPair{}, apperr.Internal("something went wrong while generating refresh and access token", err)
	}
	return tokens, nil
}

// DefaultAvatarURL builds the generated avatar link for a new account
func DefaultAvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random&color=fff"
}

func sanitize(account *models.Account) *models.Account {
	out := *account
	out.Password = ""
	out.RefreshToken = nil
	return &out
}
