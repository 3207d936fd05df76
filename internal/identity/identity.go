// Package identity holds the commenter identity remembered per comments
// server: the author name and email sent with submissions, plus a visitor
// token that distinguishes this installation without any account system.
package identity

import (
	"crypto/rand"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Identity is the locally stored commenter identity for one server origin.
type Identity struct {
	// Origin is the normalized scheme://host[:port] of the comments server.
	Origin string `json:"origin"`

	// Author is the display name sent with submissions.
	Author string `json:"author"`

	// Email is optional; servers use it for gravatars and notifications.
	Email *string `json:"email,omitempty"`

	// VisitorToken is a ULID minted the first time an identity is saved
	// for an origin. It never changes afterwards.
	VisitorToken string `json:"visitor_token"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// NormalizeOrigin reduces a server URL to its canonical origin form:
// lowercase scheme and host, no path, no trailing slash.
func NormalizeOrigin(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("server URL %q must include scheme and host", serverURL)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// NewVisitorToken generates a new ULID visitor token.
func NewVisitorToken() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
