// Package auth issues and validates the service's JWT tokens.
//
// Tokens are HS256-signed with the configured secret and carry the user's
// role and permission list so handlers can authorize without a database
// round trip.
package auth

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/documind/documind/pkg/config"
)

// Claims is what a validated token carries.
type Claims struct {
	// Username is the token subject.
	Username string `json:"sub"`

	// UserID is the account's database id.
	UserID int64 `json:"user_id"`

	// Role names the user's role for RBAC decisions.
	Role string `json:"role"`

	// Permissions is the role's capability list, "*" for Admin.
	Permissions []string `json:"permissions"`
}

// Service signs and validates tokens.
type Service struct {
	secret []byte
	expiry time.Duration
}

// NewService builds the token service from config.
func NewService(cfg *config.AuthConfig) *Service {
	if cfg == nil {
		cfg = &config.AuthConfig{}
		cfg.SetDefaults()
	}
	return &Service{
		secret: []byte(cfg.JWTSecret),
		expiry: cfg.TokenExpiry.Duration(),
	}
}

// IssueToken signs a token for the authenticated user.
func (s *Service) IssueToken(claims Claims) (string, error) {
	now := time.Now()

	token, err := jwt.NewBuilder().
		Subject(claims.Username).
		IssuedAt(now).
		Expiration(now.Add(s.expiry)).
		Claim("user_id", claims.UserID).
		Claim("role", claims.Role).
		Claim("permissions", claims.Permissions).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// ValidateToken verifies the signature and expiry and extracts claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims := &Claims{Username: token.Subject()}

	if v, ok := token.Get("user_id"); ok {
		if id, ok := v.(float64); ok {
			claims.UserID = int64(id)
		}
	}
	if v, ok := token.Get("role"); ok {
		if role, ok := v.(string); ok {
			claims.Role = role
		}
	}
	if v, ok := token.Get("permissions"); ok {
		if list, ok := v.([]interface{}); ok {
			for _, item := range list {
				if perm, ok := item.(string); ok {
					claims.Permissions = append(claims.Permissions, perm)
				}
			}
		}
	}

	return claims, nil
}
