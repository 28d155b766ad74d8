package session

import (
	"net/http"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/KU-Global-Startup-Frontier/BEEN/pkg/token"
	"github.com/gin-gonic/gin"
)

const (
	CookieName   = "been-session"
	SessionIDKey = "sessionID"
)

// CookieOptions controls the session cookie.
type CookieOptions struct {
	MaxAge time.Duration
	Secure bool
}

// Middleware makes sure every request carries a live session. The session id
// travels in a signed cookie; a missing or tampered cookie, or a session that
// cannot be restored, gets a new session and a new cookie.
func Middleware(m *Manager, signer *token.Signer, opts CookieOptions, log *logger.Logger) gin.HandlerFunc {
	maxAge := int(opts.MaxAge / time.Second)
	setCookie := func(c *gin.Context, sessionID string) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, signer.Sign(sessionID), maxAge, "/", "", opts.Secure, true)
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		raw, err := c.Cookie(CookieName)
		var sessionID string
		if err == nil {
			sessionID, err = signer.Verify(raw)
			if err != nil {
				log.Warn("rejected session cookie", "error", err)
			}
		}

		if err != nil {
			sessionID = m.Create(ctx)
			setCookie(c, sessionID)
		} else if resumed := m.Resume(ctx, sessionID); resumed != sessionID {
			sessionID = resumed
			setCookie(c, sessionID)
		}

		c.Set(SessionIDKey, sessionID)
		c.Next()
	}
}

// IDFrom returns the session id set by Middleware, or "".
func IDFrom(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}

// AttachUser links the request's session to the user returned by userFn,
// if any. It must run after Middleware.
func AttachUser(m *Manager, userFn func(*gin.Context) string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := userFn(c); userID != "" {
			if err := m.AttachUser(c.Request.Context(), IDFrom(c), userID); err != nil {
				log.Warn("attaching user to session failed", "user_id", userID, "error", err)
			}
		}
		c.Next()
	}
}
