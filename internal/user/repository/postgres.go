package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chat-relay/server/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByUsername returns the user with the given username, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	const q = `
		SELECT id, username, email, password_hash, refresh_token_hash, created_at, updated_at
		FROM users
		WHERE username = $1`
	var (
		u           domain.User
		refreshHash sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, username).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &refreshHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if refreshHash.Valid {
		u.RefreshTokenHash = refreshHash.String
	}
	return &u, nil
}

// Create persists the user to the database. The user must have ID set; it is
// not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	const q = `
		INSERT INTO users (id, username, email, password_hash, refresh_token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	refreshHash := sql.NullString{String: u.RefreshTokenHash, Valid: u.RefreshTokenHash != ""}
	_, err := r.db.ExecContext(ctx, q,
		u.ID, u.Username, u.Email, u.PasswordHash, refreshHash, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// UpdateRefreshToken overwrites the user's stored refresh-token hash. The
// previous refresh credential becomes unverifiable against the store once
// replaced.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, userID, refreshTokenHash string) error {
	const q = `
		UPDATE users
		SET refresh_token_hash = $2, updated_at = $3
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, userID,
		sql.NullString{String: refreshTokenHash, Valid: refreshTokenHash != ""},
		time.Now().UTC(),
	)
	return err
}
