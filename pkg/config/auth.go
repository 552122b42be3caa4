package config

import (
	"fmt"
	"time"
)

// AuthConfig configures authentication and the user/role store.
type AuthConfig struct {
	// JWTSecret signs issued tokens (HS256). Supports ${ENV} expansion.
	// Required in production; a development fallback is applied when empty.
	JWTSecret string `yaml:"jwt_secret,omitempty"`

	// TokenExpiry is how long issued tokens stay valid.
	// Default: 1h
	TokenExpiry Duration `yaml:"token_expiry,omitempty"`

	// Database is the SQLite file holding users, roles and upload records.
	// Default: ./data/documind.db
	Database string `yaml:"database,omitempty"`

	// AdminUsername is the bootstrap admin account, created when missing.
	// Default: admin
	AdminUsername string `yaml:"admin_username,omitempty"`

	// AdminPassword is the bootstrap admin password. Supports ${ENV} expansion.
	// Default: admin123 (change it)
	AdminPassword string `yaml:"admin_password,omitempty"`

	// MinPasswordLength is the minimum accepted password length.
	// Default: 6
	MinPasswordLength int `yaml:"min_password_length,omitempty"`
}

// SetDefaults applies default values to AuthConfig.
func (c *AuthConfig) SetDefaults() {
	if c.JWTSecret == "" {
		c.JWTSecret = "dev-secret-change-in-production"
	}
	if c.TokenExpiry == 0 {
		c.TokenExpiry = Duration(time.Hour)
	}
	if c.Database == "" {
		c.Database = "./data/documind.db"
	}
	if c.AdminUsername == "" {
		c.AdminUsername = "admin"
	}
	if c.AdminPassword == "" {
		c.AdminPassword = "admin123"
	}
	if c.MinPasswordLength == 0 {
		c.MinPasswordLength = 6
	}
}

// Validate checks the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.TokenExpiry < 0 {
		return fmt.Errorf("token_expiry must be non-negative")
	}
	if c.MinPasswordLength < 1 {
		return fmt.Errorf("min_password_length must be at least 1")
	}
	return nil
}
