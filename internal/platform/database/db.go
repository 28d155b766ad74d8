package database

import (
	"fmt"
	"log"
	"os"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/config"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDB opens the SQL store selected by cfg.Driver.
func OpenDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	// gorm keeps its own logger, silent unless something is slow
	newLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: 0,
			LogLevel:      gormlogger.Silent,
			Colorful:      true,
		},
	)

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// OpenMemoryDB opens a private in-memory SQLite database shared by all
// connections of the returned pool. Used by tests.
func OpenMemoryDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}
