package health

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/database"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/KU-Global-Startup-Frontier/BEEN/pkg/lifecycle"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultInterval = 5 * time.Second
	probeTimeout    = 2 * time.Second
)

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// RebuildFunc repopulates the Redis caches after Redis lost them.
type RebuildFunc func(ctx context.Context) error

// Checker probes Redis and keeps database.Status current. When Redis comes
// back, or restarts with a new run_id, the caches are rebuilt first and
// Redis is only marked healthy if it did not restart again meanwhile.
type Checker struct {
	rdb     *redis.Client
	status  *database.Status
	rebuild RebuildFunc
	log     *logger.Logger
	tracker tracker
}

func NewChecker(rdb *redis.Client, status *database.Status, rebuild RebuildFunc, log *logger.Logger) *Checker {
	if log == nil {
		log = logger.Nop()
	}
	return &Checker{rdb: rdb, status: status, rebuild: rebuild, log: log}
}

// RunID reads the run_id of the Redis server.
func (c *Checker) RunID(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	info, err := c.rdb.Info(ctx, "server").Result()
	if err != nil {
		return "", err
	}
	m := runIDPattern.FindStringSubmatch(info)
	if len(m) < 2 {
		return "", fmt.Errorf("run_id not found in redis INFO")
	}
	return m[1], nil
}

// Initialize records the starting run_id. Redis being down at startup is
// not fatal; the service runs degraded until a probe succeeds.
func (c *Checker) Initialize(ctx context.Context) {
	runID, err := c.RunID(ctx)
	if err != nil {
		c.log.Warn("redis unavailable at startup, running degraded", "error", err)
		c.tracker.assess(false, "")
		c.status.Update(false, "")
		return
	}
	c.tracker.assess(true, runID)
	c.status.Update(true, runID)
	c.log.Info("redis run id recorded", "run_id", runID)
}

// Check runs one probe and, if needed, one rebuild.
func (c *Checker) Check(ctx context.Context) {
	runID, err := c.RunID(ctx)
	if err != nil {
		c.tracker.assess(false, "")
		c.status.Update(false, "")
		return
	}
	if !c.tracker.assess(true, runID) {
		c.status.Update(true, runID)
		return
	}

	// 1. Rebuild while readers still skip Redis
	c.log.Info("rebuilding redis caches", "run_id", runID)
	c.status.Update(false, "")
	var rebuildErr error
	if c.rebuild != nil {
		rebuildErr = c.rebuild(ctx)
	}
	if rebuildErr != nil {
		c.log.Error("cache rebuild failed", "error", rebuildErr)
	}

	// 2. Only a rebuild against the same Redis run counts
	after, err := c.RunID(ctx)
	if err != nil {
		c.tracker.assess(false, "")
		return
	}
	if c.tracker.rebuilt(rebuildErr == nil, after) {
		c.status.Update(true, after)
		c.log.Info("cache rebuild complete")
	} else if rebuildErr == nil {
		c.log.Warn("redis restarted during cache rebuild", "run_id_before", runID, "run_id_after", after)
	}
}

// State returns the current cache health.
func (c *Checker) State() State {
	return c.tracker.get()
}

// Run probes Redis every interval until shutdown.
func (c *Checker) Run(h *lifecycle.Handle, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	c.log.Info("redis health checker started", "interval", interval)
	for {
		if err := h.Sleep(interval); err != nil {
			return
		}
		c.Check(h.Ctx())
	}
}

// Handler serves GET /healthz. A degraded cache still answers 200 because
// the rating flow keeps working without Redis.
func (c *Checker) Handler(g *gin.Context) {
	g.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"redis":  c.State().String(),
	})
}
