// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// ListenAddr is the address the HTTP/WebSocket server listens on (e.g. :8080).
	ListenAddr string `mapstructure:"LISTEN_ADDR"`
	// DBHost is the Postgres host (host or host:port).
	DBHost string `mapstructure:"DB_HOST"`
	// DBUser is the Postgres user.
	DBUser string `mapstructure:"DB_USER"`
	// DBPassword is the Postgres password.
	DBPassword string `mapstructure:"DB_PASSWORD"`
	// DBDatabase is the Postgres database name.
	DBDatabase string `mapstructure:"DB_DATABASE"`
	// JWTAccessSecret signs access tokens (HS256). Required.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret signs refresh tokens (HS256). Required; keep distinct from the access secret.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m"). Required.
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h"). Required.
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// ReportInterval is how often the client-count report fires (default "15s").
	ReportInterval string `mapstructure:"REPORT_INTERVAL"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint for telemetry (e.g. localhost:4317).
	// Empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if any
// required field is missing; the server must not start with partial credential config.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("DB_HOST", "")
	v.SetDefault("DB_USER", "")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_DATABASE", "")
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "")
	v.SetDefault("JWT_REFRESH_TTL", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REPORT_INTERVAL", "15s")
	v.SetDefault("OTLP_ENDPOINT", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	required := []struct {
		name  string
		value string
	}{
		{"DB_HOST", cfg.DBHost},
		{"DB_USER", cfg.DBUser},
		{"DB_PASSWORD", cfg.DBPassword},
		{"DB_DATABASE", cfg.DBDatabase},
		{"JWT_ACCESS_SECRET", cfg.JWTAccessSecret},
		{"JWT_REFRESH_SECRET", cfg.JWTRefreshSecret},
		{"JWT_ACCESS_TTL", cfg.JWTAccessTTL},
		{"JWT_REFRESH_TTL", cfg.JWTRefreshTTL},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("config: %s must be set", r.name)
		}
	}

	if cfg.ListenAddr == "" {
		return nil, errors.New("config: LISTEN_ADDR must be set")
	}

	if _, err := time.ParseDuration(cfg.JWTAccessTTL); err != nil {
		return nil, fmt.Errorf("config: JWT_ACCESS_TTL is not a valid duration: %w", err)
	}
	if _, err := time.ParseDuration(cfg.JWTRefreshTTL); err != nil {
		return nil, fmt.Errorf("config: JWT_REFRESH_TTL is not a valid duration: %w", err)
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// DatabaseURL assembles a Postgres DSN from the DB_* parts.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		url.QueryEscape(c.DBUser),
		url.QueryEscape(c.DBPassword),
		c.DBHost,
		url.PathEscape(c.DBDatabase),
	)
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Load guarantees it parses; 15m as a fallback.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Load guarantees it parses; 168h as a fallback.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// ReportEvery parses ReportInterval as a time.Duration. Returns 15s if unset or invalid.
func (c *Config) ReportEvery() time.Duration {
	d, err := time.ParseDuration(c.ReportInterval)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}
