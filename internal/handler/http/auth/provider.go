// Package auth provides the admin authentication surface: a single
// environment-configured credential, JWT token issuance, and the bearer
// middleware protecting the admin routes.
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"
)

// minPasswordLength is the minimum accepted admin password length.
const minPasswordLength = 12

// minSecretLength is the minimum accepted JWT signing secret length.
const minSecretLength = 32

// weakPasswords are prefixes rejected outright, regardless of length.
var weakPasswords = []string{"admin", "password", "123456", "changeme", "edgepulse"}

// Config holds the admin credential and signing secret, typically read from
// ADMIN_USER, ADMIN_PASSWORD, and JWT_SECRET.
type Config struct {
	AdminUser     string
	AdminPassword string
	JWTSecret     string
}

// Validate rejects missing or weak configuration. It runs at startup so a
// weak secret fails the boot instead of silently weakening the admin surface.
func (c Config) Validate() error {
	if c.AdminUser == "" {
		return fmt.Errorf("admin user is required")
	}
	if c.AdminPassword == "" {
		return fmt.Errorf("admin password is required")
	}
	if len(c.AdminPassword) < minPasswordLength {
		return fmt.Errorf("admin password must be at least %d characters", minPasswordLength)
	}
	for _, weak := range weakPasswords {
		if strings.HasPrefix(strings.ToLower(c.AdminPassword), weak) {
			return fmt.Errorf("admin password is too weak")
		}
	}
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT secret must be at least %d characters", minSecretLength)
	}
	return nil
}

// Provider validates the single admin credential.
type Provider struct {
	cfg Config
}

// NewProvider creates a credential provider, rejecting weak configuration.
func NewProvider(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("auth: invalid config: %w", err)
	}
	return &Provider{cfg: cfg}, nil
}

// ValidateCredentials checks the supplied credentials against the configured
// admin user. Comparisons are constant-time to prevent timing attacks.
func (p *Provider) ValidateCredentials(username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("credentials must not be empty")
	}

	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(p.cfg.AdminUser)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(p.cfg.AdminPassword)) == 1

	if !userMatch || !passMatch {
		return fmt.Errorf("invalid credentials")
	}
	return nil
}

// Secret returns the JWT signing secret.
func (p *Provider) Secret() []byte {
	return []byte(p.cfg.JWTSecret)
}
