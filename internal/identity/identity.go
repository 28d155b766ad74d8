// Package identity verifies bearer tokens of the identity provider. The
// provider itself is external; only the HS256 signature, expiry and
// optional issuer are checked here.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const UserIDKey = "userID"

var (
	ErrDisabled  = errors.New("identity: no verification secret configured")
	ErrNoSubject = errors.New("identity: token has no subject")
)

type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier returns a Verifier for tokens signed with secret. An empty
// secret disables authentication: every token is rejected.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify returns the user id (the sub claim) of a valid token.
func (v *Verifier) Verify(token string) (string, error) {
	if !v.Enabled() {
		return "", ErrDisabled
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return "", fmt.Errorf("identity: %w", err)
	}
	if claims.Subject == "" {
		return "", ErrNoSubject
	}
	return claims.Subject, nil
}

// Sign issues a token for userID. The service only verifies tokens; Sign
// backs the CLI and tests.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", ErrDisabled
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Middleware sets the user id of a valid "Authorization: Bearer" token on
// the context. Requests without a usable token continue anonymously.
func Middleware(v *Verifier, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok && v.Enabled() {
			userID, err := v.Verify(strings.TrimSpace(tok))
			if err != nil {
				log.Debug("ignoring invalid bearer token", "error", err)
			} else {
				c.Set(UserIDKey, userID)
			}
		}
		c.Next()
	}
}

// UserFrom returns the authenticated user id, or "".
func UserFrom(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
