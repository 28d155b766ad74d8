package sampler

import (
	"math/rand/v2"
	"sync"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/activity"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
)

const (
	DefaultLimit = 100

	MessageEmptyPool   = "no activities available"
	MessageAllAnswered = "every activity has been answered"
	MessageUnavailable = "activity source unavailable"
)

// Page is one slice of a shuffled, filtered pool.
type Page struct {
	Activities []activity.Activity `json:"activities"`
	// Total is the filtered pool size before slicing.
	Total int `json:"total"`
	// HasMore is true when the page is full. A page that exactly
	// exhausts the pool also reports true.
	HasMore bool `json:"hasMore"`
	// Message explains an empty page that is not an error.
	Message string `json:"message,omitempty"`
}

// Sampler shuffles and paginates activity pools. It is safe for
// concurrent use.
type Sampler struct {
	mu           sync.Mutex
	rng          *rand.Rand
	defaultLimit int
	maxLimit     int
}

// New returns a Sampler drawing from rng. A nil rng uses a randomly seeded
// PCG source. maxLimit <= 0 disables the cap.
func New(rng *rand.Rand, defaultLimit, maxLimit int) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Sampler{rng: rng, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Sample filters exclude out of pool, shuffles the rest and returns the
// page [offset, offset+limit). pool is not modified.
//
// A negative offset is a validation error. limit <= 0 picks the default
// limit; limits above the maximum are capped.
func (s *Sampler) Sample(pool []activity.Activity, exclude map[string]struct{}, offset, limit int) (Page, error) {
	if offset < 0 {
		return Page{}, apperr.Validation("offset must not be negative, got %d", offset)
	}
	limit = s.normalizeLimit(limit)

	// 1. Filter
	candidates := make([]activity.Activity, 0, len(pool))
	for _, a := range pool {
		if _, skip := exclude[a.ID]; skip {
			continue
		}
		candidates = append(candidates, a)
	}

	page := Page{Activities: []activity.Activity{}, Total: len(candidates)}
	switch {
	case len(pool) == 0:
		page.Message = MessageEmptyPool
		return page, nil
	case len(candidates) == 0:
		page.Message = MessageAllAnswered
		return page, nil
	}

	// 2. Shuffle
	s.mu.Lock()
	Shuffle(s.rng, candidates)
	s.mu.Unlock()

	// 3. Slice
	if offset >= len(candidates) {
		return page, nil
	}
	end := offset + min(limit, len(candidates)-offset)
	page.Activities = candidates[offset:end]
	page.HasMore = len(page.Activities) == limit
	return page, nil
}

func (s *Sampler) normalizeLimit(limit int) int {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if s.maxLimit > 0 && limit > s.maxLimit {
		limit = s.maxLimit
	}
	return limit
}

// Shuffle permutes items uniformly in place: for i from the last index
// down to 1, swap items[i] with items[j], j uniform in [0, i].
func Shuffle[T any](rng *rand.Rand, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
