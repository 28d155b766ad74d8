package api

import (
	"strings"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/identity"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/rating"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/session"
	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request, with the level following the status.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if id := session.IDFrom(c); id != "" {
			fields = append(fields, "session_id", id)
		}
		if id := identity.UserFrom(c); id != "" {
			fields = append(fields, "user_id", id)
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Debug("HTTP request", fields...)
		}
	}
}

// writeKey limits writes per user once signed in, per session before.
func writeKey(c *gin.Context) string {
	if id := identity.UserFrom(c); id != "" {
		return rating.ForUser(id).Key()
	}
	if id := session.IDFrom(c); id != "" {
		return rating.ForSession(id).Key()
	}
	return ""
}
