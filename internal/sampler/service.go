package sampler

import (
	"context"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/activity"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
)

// Source is the bulk activity read the sampler pages over.
type Source interface {
	All(ctx context.Context) ([]activity.Activity, error)
}

// Service pages over a Source. A failing source degrades to an empty page.
type Service struct {
	sampler *Sampler
	source  Source
	log     *logger.Logger
}

func NewService(sampler *Sampler, source Source, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{sampler: sampler, source: source, log: log}
}

// Page returns a shuffled page of activities not in exclude.
// Only caller mistakes are returned as errors.
func (s *Service) Page(ctx context.Context, exclude map[string]struct{}, offset, limit int) (Page, error) {
	pool, err := s.source.All(ctx)
	if err != nil {
		s.log.Warn("activity source failed, serving empty page", "error", err)
		if offset < 0 {
			return s.sampler.Sample(nil, exclude, offset, limit)
		}
		return Page{Activities: []activity.Activity{}, Message: MessageUnavailable}, nil
	}
	return s.sampler.Sample(pool, exclude, offset, limit)
}
