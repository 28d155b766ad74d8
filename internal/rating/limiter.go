package rating

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/database"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/response"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// writeKeyPrefix prefixes the sorted set of recent writes per identity.
const writeKeyPrefix = "rating_writes:"

// Limiter caps rating writes per identity over a sliding window kept in a
// Redis sorted set. While Redis is down every write is allowed: ratings
// must keep working offline.
type Limiter struct {
	rdb    *redis.Client
	status *database.Status
	window time.Duration
	max    int64
	log    *logger.Logger
	now    func() time.Time
}

func NewLimiter(rdb *redis.Client, status *database.Status, window time.Duration, max int64, log *logger.Logger) *Limiter {
	if log == nil {
		log = logger.Nop()
	}
	return &Limiter{rdb: rdb, status: status, window: window, max: max, log: log, now: time.Now}
}

// generateMemberID returns a 16 byte id: 8 bytes of nanosecond timestamp
// followed by 8 random bytes, base64url encoded.
func generateMemberID(t time.Time) (string, error) {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], uint64(t.UnixNano()))
	if _, err := rand.Read(b[8:16]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Allow records one write for key and reports whether it fits in the window.
// A rejected write is removed again so it does not count against later ones.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("rate limit key is empty")
	}
	if l == nil || l.rdb == nil || l.max <= 0 || !l.status.IsRedisHealthy() {
		return true, nil
	}

	now := l.now()
	redisKey := writeKeyPrefix + key
	// 1. Window boundary and this write's member
	minTimestamp := float64(now.Add(-l.window).UnixMicro())
	memberID, err := generateMemberID(now)
	if err != nil {
		return false, fmt.Errorf("generate member id: %w", err)
	}

	// 2. Trim, add, refresh TTL and count atomically
	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("(%f", minTimestamp))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMicro()), Member: memberID})
	pipe.Expire(ctx, redisKey, l.window+time.Minute)
	countCmd := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit transaction: %w", err)
	}

	// 3. Over the limit: take the write back out
	if countCmd.Val() > l.max {
		if err := l.rdb.ZRem(ctx, redisKey, memberID).Err(); err != nil {
			l.log.Warn("rate limit compensation failed", "key", key, "error", err)
		}
		return false, nil
	}
	return true, nil
}

// Middleware rejects requests whose key exceeded the write limit. keyFn
// returning "" skips the check. Redis errors let the request through.
func (l *Limiter) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}
		ok, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			l.log.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !ok {
			response.RespondError(c, apperr.RateLimited("too many rating writes, slow down"))
			return
		}
		c.Next()
	}
}
