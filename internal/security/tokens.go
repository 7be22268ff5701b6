// Package security holds the credential primitives: password hashing,
// JWT issuance/validation, and refresh-token hashing for storage.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, wrongly signed, or expired.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims holds the identity carried by both access and refresh tokens.
// Subject is the user id; Username is informational for clients.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Identity is the user identity extracted from a validated token.
type Identity struct {
	UserID   string
	Username string
}

// TokenProvider issues and validates HS256 access and refresh JWTs.
// Access and refresh tokens are signed with distinct secrets so one class
// can never be presented in place of the other.
type TokenProvider struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given secrets and lifetimes.
func NewTokenProvider(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssueAccess issues a short-lived access JWT for the given user.
// Returns the token string and its expiration time.
func (p *TokenProvider) IssueAccess(userID, username string) (token string, expiresAt time.Time, err error) {
	return p.issue(userID, username, p.accessSecret, p.accessTTL)
}

// IssueRefresh issues a long-lived refresh JWT for the given user.
// The caller persists its hash so a later issuance supersedes it.
func (p *TokenProvider) IssueRefresh(userID, username string) (token string, expiresAt time.Time, err error) {
	return p.issue(userID, username, p.refreshSecret, p.refreshTTL)
}

func (p *TokenProvider) issue(userID, username string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	// A random jti keeps tokens minted within the same second distinct.
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: username,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAccess parses and validates an access token (signature and expiry).
// Returns the embedded identity or ErrInvalidToken.
func (p *TokenProvider) ValidateAccess(tokenString string) (*Identity, error) {
	return p.validate(tokenString, p.accessSecret)
}

// ValidateRefresh parses and validates a refresh token (signature and expiry).
// Returns the embedded identity or ErrInvalidToken. The persisted copy is not
// consulted here; see the auth service for the store-side overwrite policy.
func (p *TokenProvider) ValidateRefresh(tokenString string) (*Identity, error) {
	return p.validate(tokenString, p.refreshSecret)
}

func (p *TokenProvider) validate(tokenString string, secret []byte) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: claims.Subject, Username: claims.Username}, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
