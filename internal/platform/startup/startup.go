package startup

import (
	"context"
	"fmt"
	"strings"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/activity"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/analysis"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/identity"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/config"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/database"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/health"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/metadata"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/rating"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/sampler"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/session"
	"github.com/KU-Global-Startup-Frontier/BEEN/pkg/lifecycle"
	"github.com/KU-Global-Startup-Frontier/BEEN/pkg/token"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// App holds every long-lived component of the service.
type App struct {
	Config *config.Config
	Log    *logger.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	Status *database.Status

	Pool         *activity.Pool
	Ratings      *rating.Repository
	Limiter      *rating.Limiter
	Sessions     *session.Manager
	Sampler      *sampler.Service
	Analysis     *analysis.Service
	AnalysisRepo *analysis.Repository
	Verifier     *identity.Verifier
	Signer       *token.Signer
	Health       *health.Checker
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	for _, m := range []func(*gorm.DB) error{metadata.Migrate, activity.Migrate, rating.Migrate, analysis.Migrate} {
		if err := m(db); err != nil {
			return err
		}
	}
	return nil
}

// OpenStores connects to SQL and Redis and migrates the schema. A Redis
// outage is logged, not returned.
func OpenStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*gorm.DB, *redis.Client, *database.Status, error) {
	db, err := database.OpenDB(cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}

	status := database.NewStatus(log)
	rdb, err := database.OpenRedis(ctx, cfg.Database.Redis)
	if err != nil {
		log.Warn("redis unreachable, continuing without it", "error", err)
		status.Update(false, "")
	}
	return db, rdb, status, nil
}

// InitializeApplication builds the App and warms its caches.
func InitializeApplication(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	log.Info("initializing application")

	// 1. Stores
	db, rdb, status, err := OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	// 2. Domain components
	app, err := NewApp(cfg, log, db, rdb, status)
	if err != nil {
		return nil, err
	}

	// 3. Redis run id, then the activity pool
	app.Health.Initialize(ctx)
	if err := app.RebuildCache(ctx); err != nil {
		return nil, err
	}
	if at, err := metadata.GetLastSeedAt(ctx, db); err == nil && !at.IsZero() {
		log.Info("activities last seeded", "at", at)
	}

	log.Info("application initialized")
	return app, nil
}

// NewApp wires the components over already opened stores. rdb may be nil.
func NewApp(cfg *config.Config, log *logger.Logger, db *gorm.DB, rdb *redis.Client, status *database.Status) (*App, error) {
	app := &App{Config: cfg, Log: log, DB: db, Redis: rdb, Status: status}
	if err := app.build(); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) build() error {
	q := a.Config.Quiz

	a.Pool = activity.NewPool(activity.NewRepository(a.DB), a.Redis, a.Status, a.Log)
	a.Ratings = rating.NewRepository(a.DB)
	a.Limiter = rating.NewLimiter(a.Redis, a.Status, q.RateLimitWindow, q.RateLimitMaxWrite, a.Log)

	slot, err := a.newSlot()
	if err != nil {
		return err
	}
	a.Sessions = session.NewManager(slot, a.Ratings, session.Options{
		Threshold:      q.AnalyzeThreshold,
		IdleTTL:        q.SessionIdleTTL,
		PersistTimeout: q.PersistTimeout,
	}, a.Log)

	a.Sampler = sampler.NewService(sampler.New(nil, q.DefaultPageLimit, q.MaxPageLimit), a.Pool, a.Log)

	tables, err := analysis.LoadTables(a.Config.Analysis.TablesPath)
	if err != nil {
		return err
	}
	a.AnalysisRepo = analysis.NewRepository(a.DB, a.Redis, a.Status)
	analyzer := analysis.NewAnalyzer(tables, analysis.WithMinInputs(q.AnalyzeThreshold))
	a.Analysis = analysis.NewService(analyzer, a.AnalysisRepo, a.Ratings, a.Pool, a.Config.Analysis.CacheTTL, a.Log)

	a.Verifier = identity.NewVerifier(a.Config.Identity.JWTSecret, a.Config.Identity.Issuer)
	if !a.Verifier.Enabled() {
		a.Log.Warn("identity.jwtSecret is empty, bearer tokens are ignored")
	}
	a.Signer = token.NewSigner(a.Config.Server.CookieSecret)
	if a.Config.Server.CookieSecret == "" {
		a.Log.Warn("server.cookieSecret is empty, session cookies will not survive a restart")
	}

	a.Health = health.NewChecker(a.Redis, a.Status, a.RebuildCache, a.Log)
	return nil
}

// newSlot picks the snapshot slot named by database.slot.
func (a *App) newSlot() (session.Slot, error) {
	redisSlot := func() session.Slot {
		return session.NewRedisSlot(a.Redis, a.Status, a.Config.Quiz.SessionSlotTTL)
	}
	switch strings.ToLower(a.Config.Database.Slot) {
	case "redis":
		return redisSlot(), nil
	case "sql":
		return session.NewSQLSlot(a.DB), nil
	case "memory":
		return session.NewMemorySlot(), nil
	case "", "tiered":
		return session.NewTieredSlot(redisSlot(), session.NewSQLSlot(a.DB), a.Log), nil
	default:
		return nil, fmt.Errorf("unknown database.slot %q", a.Config.Database.Slot)
	}
}

// RebuildCache reloads the activity pool and republishes it to Redis.
func (a *App) RebuildCache(ctx context.Context) error {
	return a.Pool.Warmup(ctx)
}

// StartBackground registers the background services with mgr.
func (a *App) StartBackground(mgr *lifecycle.Manager) error {
	q := a.Config.Quiz
	services := []struct {
		name string
		fn   func(h *lifecycle.Handle)
	}{
		{"redis-health", func(h *lifecycle.Handle) { a.Health.Run(h, health.DefaultInterval) }},
		{"activity-pool", func(h *lifecycle.Handle) { a.Pool.RunRefresher(h, q.PoolRefresh) }},
		{"session-janitor", func(h *lifecycle.Handle) { a.Sessions.RunJanitor(h, q.SessionIdleTTL/2) }},
	}
	for _, s := range services {
		if err := mgr.Go(s.name, s.fn); err != nil {
			return err
		}
	}
	return nil
}

// FlushSessions waits for pending session writes; it is a shutdown hook.
func (a *App) FlushSessions(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.Sessions.Flush()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush sessions: %w", ctx.Err())
	}
}

// Close releases the connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	a.Log.Sync()
}
