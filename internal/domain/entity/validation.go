package entity

import (
	"fmt"
	"net/url"
)

// maxURLLength bounds caller-supplied URLs; anything longer is junk input.
const maxURLLength = 2048

// ValidateURL checks that a caller-supplied post URL is syntactically
// acceptable: http or https scheme, a host, and a sane length. Network-level
// safety checks (private-address denial) happen where requests are made, not
// here.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}
	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}
	if parsed.Host == "" {
		return &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}
	return nil
}
