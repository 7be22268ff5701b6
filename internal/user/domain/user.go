package domain

import (
	"errors"
	"time"
)

// User is the credential-store row: one account with a bcrypt password hash
// and at most one active refresh-token hash (latest issuance overwrites).
type User struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	RefreshTokenHash string // empty until the first login issues a refresh token
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate validates the user for persistence. Returns an error describing the
// first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}
