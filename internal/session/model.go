package session

import (
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/rating"
)

// Score bounds. NotTriedScore marks an activity the person never tried or
// declined; 1..5 is the interest scale.
const (
	NotTriedScore = rating.NotTriedScore
	MinScore      = rating.MinScore
	MaxScore      = rating.MaxScore

	// DefaultAnalyzeThreshold is the smallest number of answered activities
	// the analyzer generalizes from.
	DefaultAnalyzeThreshold = 20
)

// Status is the alternate classification of an activity. It is mutually
// exclusive with a rating for the same activity.
type Status string

const (
	StatusNotTried  Status = "not_tried"
	StatusWantToTry Status = "want_to_try"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusNotTried || s == StatusWantToTry
}

// Rating is one answered activity.
type Rating struct {
	ActivityID string `json:"activityId"`
	Score      int    `json:"score"`
}

// ActivityStatus is one status-flagged activity.
type ActivityStatus struct {
	ActivityID string `json:"activityId"`
	Status     Status `json:"status"`
}

// Change describes what a Store mutation did.
type Change struct {
	// Changed is false for no-op calls.
	Changed bool
	// RatingWritten is set when a rating was inserted or overwritten.
	RatingWritten bool
	// RatingCleared is set when an existing rating was removed.
	RatingCleared bool
}

func validateActivityID(activityID string) error {
	if activityID == "" {
		return apperr.Validation("activity id is required")
	}
	return nil
}

func validateScore(score int) error {
	if !rating.ValidScore(score) {
		return apperr.Validation("score must be -1 or between %d and %d, got %d", MinScore, MaxScore, score)
	}
	return nil
}
