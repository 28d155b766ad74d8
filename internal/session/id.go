package session

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const idPrefix = "session_"

// NewID returns "session_" followed by 32 lowercase hex characters from
// 16 random bytes.
func NewID() string {
	b := make([]byte, 16)
	// crypto/rand.Read does not fail on supported platforms
	_, _ = rand.Read(b)
	return idPrefix + hex.EncodeToString(b)
}

// ValidID reports whether id has the NewID format.
func ValidID(id string) bool {
	rest, ok := strings.CutPrefix(id, idPrefix)
	if !ok || len(rest) != 32 {
		return false
	}
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
