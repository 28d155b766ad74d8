package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/activity"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/rating"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const DefaultCacheTTL = time.Minute

// RecordSource reads durable ratings.
type RecordSource interface {
	ListByIdentity(ctx context.Context, id rating.Identity) ([]rating.Entry, error)
}

// ActivitySource reads the activity pool, used to resolve categories.
type ActivitySource interface {
	All(ctx context.Context) ([]activity.Activity, error)
}

// Request selects whose ratings to analyze. The owner's durable records
// are read when Local is nil or Overlay is set. With Overlay, Local scores
// replace the record of the same activity.
type Request struct {
	Owner   rating.Identity
	Local   map[string]int
	Overlay bool
}

func (r Request) readsRecords() bool {
	return r.Local == nil || r.Overlay
}

type Service struct {
	analyzer   *Analyzer
	repo       *Repository
	records    RecordSource
	activities ActivitySource
	cacheTTL   time.Duration
	log        *logger.Logger
}

func NewService(analyzer *Analyzer, repo *Repository, records RecordSource, activities ActivitySource, cacheTTL time.Duration, log *logger.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		analyzer:   analyzer,
		repo:       repo,
		records:    records,
		activities: activities,
		cacheTTL:   cacheTTL,
		log:        log,
	}
}

// Analyze resolves inputs for req, runs the analyzer and stores the result.
// Storing is best effort: a failed write is logged and the result returned.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	if err := req.Owner.Validate(); err != nil {
		return nil, err
	}

	// 1. Fetch activities, universes and (if needed) records concurrently
	var (
		pool      []activity.Activity
		universes []Universe
		entries   []rating.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pool, err = s.activities.All(gctx)
		if err != nil {
			return apperr.Unavailable("activity source", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		universes, err = s.repo.ListUniverses(gctx)
		if err != nil {
			// the profile is still useful without a universe
			s.log.Warn("universe list unavailable", "error", err)
			universes = nil
		}
		return nil
	})
	if req.readsRecords() {
		g.Go(func() error {
			var err error
			entries, err = s.records.ListByIdentity(gctx, req.Owner)
			if err != nil {
				if apperr.KindOf(err) != "" {
					return err
				}
				return apperr.Unavailable("rating store", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 2. Join answers with categories
	inputs := buildInputs(pool, req.Local, entries, req.readsRecords())

	// 3. Analyze
	result, err := s.analyzer.Analyze(inputs, universes)
	if err != nil {
		return nil, err
	}
	result.ID = uuid.NewString()

	// 4. Persist and cache
	if err := s.repo.Save(ctx, req.Owner, result); err != nil {
		s.log.Warn("storing analysis result failed", "error", err, "analysis_id", result.ID)
	}
	go func(r *Result) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic while caching analysis result", "panic", fmt.Sprint(rec))
			}
		}()
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.repo.SetCache(cacheCtx, r, s.cacheTTL); err != nil {
			s.log.Debug("caching analysis result failed", "error", err)
		}
	}(result)

	return result, nil
}

// Get returns a stored result by id.
func (s *Service) Get(ctx context.Context, id string) (*Result, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("analysis %s not found", id)
	}
	return s.repo.Get(ctx, id)
}

// buildInputs joins answers with activity categories. Record answers keep
// the order they were written in, with local scores laid over them; local
// answers without a record follow in pool order. Answers for unknown
// activities are dropped.
func buildInputs(pool []activity.Activity, local map[string]int, entries []rating.Entry, withRecords bool) []Input {
	categories := make(map[string]string, len(pool))
	for _, a := range pool {
		categories[a.ID] = a.Category
	}

	inputs := make([]Input, 0, len(entries)+len(local))
	seen := make(map[string]struct{}, len(entries))
	if withRecords {
		for _, e := range entries {
			category, ok := categories[e.ActivityID]
			if !ok {
				continue
			}
			score := e.Score
			if s, ok := local[e.ActivityID]; ok {
				score = s
			}
			seen[e.ActivityID] = struct{}{}
			inputs = append(inputs, Input{ActivityID: e.ActivityID, Category: category, Score: score})
		}
	}
	for _, a := range pool {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		if score, ok := local[a.ID]; ok {
			inputs = append(inputs, Input{ActivityID: a.ID, Category: a.Category, Score: score})
		}
	}
	return inputs
}
