package database

import (
	"sync"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
)

// Status tracks whether Redis is currently usable. Readers on the request
// path consult it to skip Redis instead of waiting on a dead connection.
type Status struct {
	mu             sync.RWMutex
	isRedisHealthy bool
	lastKnownRunID string
	log            *logger.Logger
}

// NewStatus starts healthy; the first health check corrects it.
func NewStatus(log *logger.Logger) *Status {
	if log == nil {
		log = logger.Nop()
	}
	return &Status{isRedisHealthy: true, log: log}
}

// IsRedisHealthy reports the last known Redis state. A nil Status counts as healthy.
func (s *Status) IsRedisHealthy() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRedisHealthy
}

// Update records a probe result and returns true when the state flipped
// from unhealthy to healthy.
func (s *Status) Update(isHealthy bool, runID string) (recovered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRedisHealthy != isHealthy {
		recovered = isHealthy
		s.isRedisHealthy = isHealthy
		if isHealthy {
			s.log.Info("redis status changed", "healthy", true, "run_id", runID)
		} else {
			s.log.Warn("redis status changed", "healthy", false)
		}
	}
	if isHealthy {
		// a new run_id means Redis restarted and lost its caches
		if s.lastKnownRunID != "" && s.lastKnownRunID != runID {
			recovered = true
		}
		s.lastKnownRunID = runID
	}
	return recovered
}

// LastKnownRunID returns the Redis run_id seen by the last healthy probe.
func (s *Status) LastKnownRunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastKnownRunID
}
