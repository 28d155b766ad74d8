package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalid is returned for values that are malformed or carry a bad signature.
var ErrInvalid = errors.New("token: invalid signed value")

// Signer signs short string values, such as cookie contents, with HMAC-SHA256.
type Signer struct {
	secretKey []byte
}

// NewSigner uses secret as the HMAC key. An empty secret generates a random
// 32 byte key, so values only verify within this process.
func NewSigner(secret string) *Signer {
	if secret != "" {
		return &Signer{secretKey: []byte(secret)}
	}
	return &Signer{secretKey: GenerateSecretKey()}
}

// GenerateSecretKey returns 32 cryptographically random bytes.
func GenerateSecretKey() []byte {
	key := make([]byte, 32)
	// crypto/rand.Read does not fail on supported platforms
	_, _ = rand.Read(key)
	return key
}

// Sign returns value + "." + base64url(HMAC(value)).
func (s *Signer) Sign(value string) string {
	return value + "." + s.signature(value)
}

// Verify checks a value produced by Sign and returns the original value.
func (s *Signer) Verify(signed string) (string, error) {
	// 1. Split at the last dot; the value itself may contain dots
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 || i == len(signed)-1 {
		return "", ErrInvalid
	}
	value, sig := signed[:i], signed[i+1:]

	// 2. Decode the presented signature
	actual, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrInvalid
	}

	// 3. Constant-time compare against the expected one
	if !hmac.Equal(s.mac(value), actual) {
		return "", ErrInvalid
	}
	return value, nil
}

func (s *Signer) signature(value string) string {
	return base64.RawURLEncoding.EncodeToString(s.mac(value))
}

func (s *Signer) mac(value string) []byte {
	m := hmac.New(sha256.New, s.secretKey)
	m.Write([]byte(value))
	return m.Sum(nil)
}
