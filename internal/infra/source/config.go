package source

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds the settings for one source adapter instance.
type Config struct {
	// Name is the instance name used in logs, metrics, and the breaker and
	// queue operation names derived from it. Must be unique per deployment.
	Name string

	// Kind selects the adapter implementation.
	Kind Kind

	// BaseURL is the provider's base endpoint. Required for every kind
	// except noop.
	BaseURL string

	// Timeout bounds a single upstream request.
	// Default: 10s
	Timeout time.Duration

	// MaxBodySize bounds the response body read, in bytes.
	// Default: 10485760 (10MB)
	MaxBodySize int64

	// MaxRedirects bounds redirect chains. Each redirect target is
	// re-validated against the SSRF rules.
	// Default: 5
	MaxRedirects int

	// DenyPrivateIPs rejects URLs resolving to private, loopback, or
	// link-local addresses. Disable only in tests against local servers.
	// Default: true
	DenyPrivateIPs bool

	// UserAgent is sent on every upstream request.
	// Default: "EdgePulseBot/1.0"
	UserAgent string
}

// ApplyDefaults fills zero values with production defaults.
//
// DenyPrivateIPs cannot be defaulted here because false is a meaningful
// setting; use DefaultConfig for a fully populated starting point.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = 10 * 1024 * 1024
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = 5
	}
	if c.UserAgent == "" {
		c.UserAgent = "EdgePulseBot/1.0"
	}
}

// DefaultConfig returns a production-ready configuration for the given
// name and kind. BaseURL still has to be set by the caller.
func DefaultConfig(name string, kind Kind) Config {
	c := Config{
		Name:           name,
		Kind:           kind,
		DenyPrivateIPs: true,
	}
	c.ApplyDefaults()
	return c
}

// Validate checks the configuration for construction-time errors.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("source name must not be empty")
	}

	switch c.Kind {
	case KindAPI, KindEmbed, KindRSS:
		if c.BaseURL == "" {
			return fmt.Errorf("source %s: base URL is required for kind %s", c.Name, c.Kind)
		}
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("source %s: invalid base URL: %w", c.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source %s: base URL scheme %q not allowed (only http/https)", c.Name, u.Scheme)
		}
	case KindNoop:
		// No endpoint needed.
	default:
		return fmt.Errorf("source %s: unknown kind %q", c.Name, c.Kind)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("source %s: timeout must be positive, got %v", c.Name, c.Timeout)
	}
	if c.MaxBodySize < 1024 || c.MaxBodySize > 100*1024*1024 {
		return fmt.Errorf("source %s: max body size must be between 1KB and 100MB, got %d", c.Name, c.MaxBodySize)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("source %s: max redirects must be between 0 and 10, got %d", c.Name, c.MaxRedirects)
	}

	return nil
}
