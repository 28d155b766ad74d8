package testutil

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/database"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB opens a fresh in-memory SQLite database and runs migrate on it.
func DB(tb testing.TB, migrate ...func(*gorm.DB) error) *gorm.DB {
	tb.Helper()
	db, err := database.OpenMemoryDB()
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	for _, m := range migrate {
		if err := m(db); err != nil {
			tb.Fatalf("migrate test db: %v", err)
		}
	}
	tb.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Redis connects to TEST_REDIS_ADDR and flushes the selected database
// (TEST_REDIS_DB, default 15) before and after the test. Tests are skipped
// when the address is unset.
func Redis(tb testing.TB) *redis.Client {
	tb.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		tb.Skip("set TEST_REDIS_ADDR to run redis integration tests")
	}
	dbIndex := 15
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			tb.Fatalf("invalid TEST_REDIS_DB %q: %v", v, err)
		}
		dbIndex = n
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: dbIndex})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		tb.Fatalf("ping test redis: %v", err)
	}
	if err := rdb.FlushDB(ctx).Err(); err != nil {
		tb.Fatalf("flush test redis: %v", err)
	}
	tb.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = rdb.Close()
	})
	return rdb
}
