// Package service implements the authentication operations driven by the
// in-band protocol: password login and refresh-token exchange.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"chat-relay/server/internal/security"
	userdomain "chat-relay/server/internal/user/domain"
)

// Sentinel errors for the auth service; the protocol dispatcher maps them to
// failure replies. Unknown-user and wrong-password cases both map to
// ErrInvalidCredentials so the caller cannot tell which part was wrong.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// AuthResult holds the outcome of a successful Login or Refresh.
// RefreshToken is empty for Refresh: the exchange mints a new access token only.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	Username     string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	UpdateRefreshToken(ctx context.Context, userID, refreshTokenHash string) error
}

// AuthService verifies credentials and issues tokens. It holds no
// per-connection state; authentication status lives entirely in the tokens.
type AuthService struct {
	userRepo UserRepo
	hasher   *security.Hasher
	tokens   *security.TokenProvider
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(userRepo UserRepo, hasher *security.Hasher, tokens *security.TokenProvider) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
	}
}

// Login authenticates with username/password and returns a fresh access and
// refresh token pair. The new refresh token's hash is persisted on the user
// row, superseding any previously stored one.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	refreshToken, _, err := s.tokens.IssueRefresh(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateRefreshToken(ctx, user.ID, security.HashRefreshToken(refreshToken)); err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExp,
		UserID:       user.ID,
		Username:     user.Username,
	}, nil
}

// Refresh validates the presented refresh token (signature and expiry) and
// mints a new access token for the embedded identity. No new refresh token is
// issued, and the persisted hash is not re-checked: a still-unexpired refresh
// token keeps working even after a later login overwrote the stored one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	id, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(id.UserID, id.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken: accessToken,
		ExpiresAt:   accessExp,
		UserID:      id.UserID,
		Username:    id.Username,
	}, nil
}
