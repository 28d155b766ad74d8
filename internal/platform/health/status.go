package health

import (
	"sync"
)

// State is the health of the Redis-backed caches.
type State int

const (
	StateHealthy State = iota
	StateDegraded
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// tracker holds the current State; transitions are decided by assess.
type tracker struct {
	mu             sync.RWMutex
	state          State
	lastKnownRunID string
}

func (t *tracker) get() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// assess folds a probe result into the state and reports whether the
// caches must be rebuilt before Redis can be used again.
func (t *tracker) assess(connected bool, runID string) (needsRebuild bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	restarted := t.lastKnownRunID != "" && t.lastKnownRunID != runID
	switch {
	case !connected:
		t.state = StateDegraded
	case t.state == StateRebuilding:
		// the previous rebuild did not finish
		needsRebuild = true
	case restarted || t.state == StateDegraded:
		t.state = StateRebuilding
		needsRebuild = true
	}
	if connected {
		t.lastKnownRunID = runID
	}
	return needsRebuild
}

// rebuilt ends a rebuild. It stays in StateRebuilding when the rebuild
// failed or Redis restarted again meanwhile.
func (t *tracker) rebuilt(success bool, runIDAfter string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateRebuilding {
		return false
	}
	if !success || runIDAfter != t.lastKnownRunID {
		t.lastKnownRunID = runIDAfter
		return false
	}
	t.state = StateHealthy
	return true
}
