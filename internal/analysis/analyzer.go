package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
)

const (
	// MinInputs mirrors the session threshold for unlocking analysis.
	MinInputs = 20

	TopCategories      = 3
	MaxKeywords        = 10
	MaxRecommendations = 5

	// KeywordScore is the lowest score whose category contributes keywords.
	KeywordScore = 4
)

// Input is one finalized answer joined with its activity's category.
type Input struct {
	ActivityID string
	Category   string
	Score      int
}

// CategoryScore is a category's average rescaled to 0..100.
type CategoryScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Result is an interest profile.
type Result struct {
	ID              string          `json:"id,omitempty"`
	Categories      []CategoryScore `json:"categories"`
	Keywords        []string        `json:"keywords"`
	Strengths       []Strength      `json:"strengths"`
	Recommendations []string        `json:"recommendations"`
	RatingCount     int             `json:"ratingCount"`
	AnalyzedAt      time.Time       `json:"analyzedAt"`
	Universe        *Universe       `json:"universe,omitempty"`
}

// Analyzer turns answers into a Result. The zero value is not usable; build
// one with NewAnalyzer.
type Analyzer struct {
	tables    *Tables
	matcher   UniverseMatcher
	minInputs int
	now       func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMinInputs overrides MinInputs.
func WithMinInputs(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.minInputs = n
		}
	}
}

// WithMatcher replaces the FirstMatcher universe policy.
func WithMatcher(m UniverseMatcher) Option {
	return func(a *Analyzer) {
		if m != nil {
			a.matcher = m
		}
	}
}

// WithClock sets the time source stamped into AnalyzedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAnalyzer(tables *Tables, opts ...Option) *Analyzer {
	if tables == nil {
		tables = &Tables{}
	}
	a := &Analyzer{
		tables:    tables,
		matcher:   FirstMatcher{},
		minInputs: MinInputs,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze builds a profile from inputs. Inputs scored below 1 are not
// counted; fewer than the minimum remaining is an InsufficientData error.
// universes may be empty, in which case Result.Universe stays nil.
func (a *Analyzer) Analyze(inputs []Input, universes []Universe) (*Result, error) {
	// 1. Keep finalized answers only
	scored := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		if in.Score >= 1 {
			scored = append(scored, in)
		}
	}
	if len(scored) < a.minInputs {
		return nil, apperr.InsufficientData(len(scored), a.minInputs)
	}

	// 2. Per-category averages in first-seen order, then rank
	categories := rankCategories(scored)

	top := categories
	if len(top) > TopCategories {
		top = top[:TopCategories]
	}

	// 3. Qualitative synthesis from the top categories
	result := &Result{
		Categories:      categories,
		Keywords:        a.collectKeywords(scored),
		Strengths:       make([]Strength, 0, len(top)),
		Recommendations: a.collectRecommendations(top),
		RatingCount:     len(scored),
		AnalyzedAt:      a.now().UTC(),
	}
	for _, c := range top {
		result.Strengths = append(result.Strengths, a.tables.StrengthFor(c.Name))
	}

	// 4. Universe selection
	if u, ok := a.matcher.Match(categories, universes); ok {
		result.Universe = &u
	}
	return result, nil
}

// rankCategories averages scores per category and sorts them descending.
// Ties keep the order in which categories were first seen.
func rankCategories(inputs []Input) []CategoryScore {
	type acc struct {
		total, count int
	}
	order := make([]string, 0)
	sums := make(map[string]*acc)
	for _, in := range inputs {
		s, ok := sums[in.Category]
		if !ok {
			s = &acc{}
			sums[in.Category] = s
			order = append(order, in.Category)
		}
		s.total += in.Score
		s.count++
	}

	out := make([]CategoryScore, 0, len(order))
	for _, name := range order {
		s := sums[name]
		avg := float64(s.total) / float64(s.count)
		out = append(out, CategoryScore{Name: name, Score: int(math.Round(avg * 20))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (a *Analyzer) collectKeywords(inputs []Input) []string {
	seen := make(map[string]struct{})
	keywords := make([]string, 0, MaxKeywords)
	for _, in := range inputs {
		if in.Score < KeywordScore {
			continue
		}
		for _, kw := range a.tables.KeywordsFor(in.Category) {
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			keywords = append(keywords, kw)
			if len(keywords) == MaxKeywords {
				return keywords
			}
		}
	}
	return keywords
}

func (a *Analyzer) collectRecommendations(top []CategoryScore) []string {
	out := make([]string, 0, MaxRecommendations)
	for _, c := range top {
		for _, rec := range a.tables.RecommendationsFor(c.Name) {
			if len(out) == MaxRecommendations {
				return out
			}
			out = append(out, rec)
		}
	}
	return out
}
