package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/database"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/KU-Global-Startup-Frontier/BEEN/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
)

const (
	// PoolKey holds the JSON encoded activity list shared by every instance.
	PoolKey = "activity:pool"
	// PoolTTL bounds how long a stale pool can outlive a reseed.
	PoolTTL = 24 * time.Hour
)

// Pool serves the activity list from memory, then Redis, then SQL.
type Pool struct {
	repo   *Repository
	rdb    *redis.Client
	status *database.Status
	log    *logger.Logger

	mu       sync.RWMutex
	isLoaded bool
	items    []Activity
}

// NewPool builds a Pool. rdb may be nil, in which case only SQL is used.
func NewPool(repo *Repository, rdb *redis.Client, status *database.Status, log *logger.Logger) *Pool {
	if log == nil {
		log = logger.Nop()
	}
	return &Pool{repo: repo, rdb: rdb, status: status, log: log}
}

// All returns a copy of the pool, loading it on first use.
func (p *Pool) All(ctx context.Context) ([]Activity, error) {
	for {
		p.mu.RLock()
		if p.isLoaded {
			out := slices.Clone(p.items)
			p.mu.RUnlock()
			return out, nil
		}
		p.mu.RUnlock()

		err := func() error {
			p.mu.Lock()
			defer p.mu.Unlock()
			// another goroutine may have loaded while we waited for the lock
			if p.isLoaded {
				return nil
			}
			items, err := p.load(ctx)
			if err != nil {
				return err
			}
			p.items = items
			p.isLoaded = true
			return nil
		}()
		if err != nil {
			return nil, err
		}
	}
}

// Refresh reloads the pool from SQL and republishes it to Redis.
func (p *Pool) Refresh(ctx context.Context) error {
	items, err := p.repo.All(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.items = items
	p.isLoaded = true
	p.mu.Unlock()

	p.publish(ctx, items)
	return nil
}

// Warmup is Refresh for startup: an empty table is reported but not fatal.
func (p *Pool) Warmup(ctx context.Context) error {
	if err := p.Refresh(ctx); err != nil {
		return fmt.Errorf("warm up activity pool: %w", err)
	}
	p.mu.RLock()
	n := len(p.items)
	p.mu.RUnlock()
	if n == 0 {
		p.log.Warn("activity pool is empty, run the seed command")
	} else {
		p.log.Info("activity pool warmed up", "activities", n)
	}
	return nil
}

// RunRefresher reloads the pool every interval until shutdown.
func (p *Pool) RunRefresher(h *lifecycle.Handle, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	p.log.Info("activity pool refresher started", "service", h.Name(), "interval", interval.String())
	for {
		if err := h.Sleep(interval); err != nil {
			p.log.Info("activity pool refresher stopping", "service", h.Name())
			return
		}
		if err := p.Refresh(h.Ctx()); err != nil {
			if !errors.Is(err, context.Canceled) {
				p.log.Warn("activity pool refresh failed", "error", err)
			}
		}
	}
}

func (p *Pool) load(ctx context.Context) ([]Activity, error) {
	// 1. Shared copy in Redis
	if items, ok := p.fromRedis(ctx); ok {
		return items, nil
	}
	// 2. Source of truth
	items, err := p.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, items)
	return items, nil
}

func (p *Pool) fromRedis(ctx context.Context) ([]Activity, bool) {
	if p.rdb == nil || !p.status.IsRedisHealthy() {
		return nil, false
	}
	data, err := p.rdb.Get(ctx, PoolKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			p.log.Warn("read activity pool from redis", "error", err)
		}
		return nil, false
	}
	var items []Activity
	if err := json.Unmarshal(data, &items); err != nil {
		p.log.Warn("discarding malformed activity pool cache", "error", err)
		return nil, false
	}
	return items, true
}

func (p *Pool) publish(ctx context.Context, items []Activity) {
	if p.rdb == nil || !p.status.IsRedisHealthy() || len(items) == 0 {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		p.log.Error("encode activity pool", "error", err)
		return
	}
	if err := p.rdb.Set(ctx, PoolKey, data, PoolTTL).Err(); err != nil {
		p.log.Warn("publish activity pool to redis", "error", err)
	}
}
