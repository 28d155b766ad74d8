package database

import (
	"context"
	"fmt"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/config"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

// OpenRedis creates a client and pings it once. A failed ping is returned
// together with the client: the rating flow keeps working offline and the
// health checker flips the status when Redis comes back.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return rdb, fmt.Errorf("ping redis %s: %w", cfg.Address, err)
	}
	return rdb, nil
}
