package iam

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// DefaultSessionTTL is used when a caller does not request a specific
// lifetime for a new session (spec §4.3).
const DefaultSessionTTL = time.Hour

// sessionTokenBytes is 256 bits, twice the spec's stated 128-bit minimum.
const sessionTokenBytes = 32

// NewSessionToken returns a fresh, cryptographically random bearer token.
// It never touches the store and must be called outside any lock held by
// the caller.
func NewSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Expired reports whether the session's TTL has elapsed as of now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
