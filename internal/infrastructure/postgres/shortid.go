package postgres

import (
	"crypto/rand"
	"encoding/base64"
)

// newPartyID returns a 10-character URL-safe external identifier, built on
// crypto/rand + encoding/base64 rather than a short-ID library.
func newPartyID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:10], nil
}
