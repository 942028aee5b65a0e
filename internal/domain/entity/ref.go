package entity

import (
	"fmt"
	"regexp"
)

// PostRef identifies a post for acquisition. ID is always set; Username is
// present when the reference was parsed from a canonical post URL and lets
// timeline-based sources locate the post without an extra lookup.
type PostRef struct {
	ID       string
	Username string
}

// String returns a stable representation used in logs and cache keys.
func (r PostRef) String() string {
	if r.Username == "" {
		return r.ID
	}
	return r.Username + "/" + r.ID
}

var (
	// statusIDPattern extracts the numeric status ID from a post URL path.
	statusIDPattern = regexp.MustCompile(`/status/(\d+)`)

	// usernamePattern extracts the author handle from a canonical post URL.
	usernamePattern = regexp.MustCompile(`(?:x\.com|twitter\.com)/([^/]+)/status/`)

	postIDPattern   = regexp.MustCompile(`^\d{1,25}$`)
	userNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)
)

// ParsePostURL extracts a PostRef from a post URL. The status ID is required;
// the username is best-effort and left empty when the URL is not in the
// canonical <host>/<user>/status/<id> form.
func ParsePostURL(rawURL string) (PostRef, error) {
	if err := ValidateURL(rawURL); err != nil {
		return PostRef{}, err
	}

	m := statusIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return PostRef{}, fmt.Errorf("%w: no status ID in URL", ErrInvalidInput)
	}
	ref := PostRef{ID: m[1]}

	if um := usernamePattern.FindStringSubmatch(rawURL); um != nil {
		if err := ValidateUsername(um[1]); err == nil {
			ref.Username = um[1]
		}
	}

	return ref, nil
}

// ValidatePostID checks that the ID is a plausible numeric status ID.
func ValidatePostID(id string) error {
	if id == "" {
		return &ValidationError{Field: "id", Message: "post ID is required"}
	}
	if !postIDPattern.MatchString(id) {
		return &ValidationError{Field: "id", Message: "post ID must be numeric"}
	}
	return nil
}

// ValidateUsername checks that the handle uses the upstream's allowed charset.
func ValidateUsername(username string) error {
	if username == "" {
		return &ValidationError{Field: "username", Message: "username is required"}
	}
	if !userNamePattern.MatchString(username) {
		return &ValidationError{Field: "username", Message: "username must be 1-15 word characters"}
	}
	return nil
}
