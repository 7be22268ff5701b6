package repository

import (
	"context"

	"chat-relay/server/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	// GetByUsername returns the user with the given username, or nil if not found.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// Create persists a new user. The user must have ID set.
	Create(ctx context.Context, u *domain.User) error
	// UpdateRefreshToken stores the hash of the user's current refresh token,
	// overwriting any previous one. One active refresh credential per user.
	UpdateRefreshToken(ctx context.Context, userID, refreshTokenHash string) error
}
