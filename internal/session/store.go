package session

import (
	"sort"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/analysis"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
)

// Store is the rating/status state of one session.
//
// Invariants, after every call:
//   - ratedCount == len(ratings) + len(statuses)
//   - no activity id is a key of both maps
//
// A Store is not safe for concurrent use; the Manager serializes access.
type Store struct {
	sessionID string
	userID    string

	ratings    map[string]int
	statuses   map[string]Status
	ratedCount int
	threshold  int

	analysisResult *analysis.Result
	analyzing      bool

	// version increases on every change and orders snapshot writes.
	version uint64
}

// NewStore returns an empty Store. threshold <= 0 selects the default.
func NewStore(sessionID string, threshold int) *Store {
	if threshold <= 0 {
		threshold = DefaultAnalyzeThreshold
	}
	return &Store{
		sessionID: sessionID,
		ratings:   make(map[string]int),
		statuses:  make(map[string]Status),
		threshold: threshold,
	}
}

func (s *Store) SessionID() string { return s.sessionID }
func (s *Store) UserID() string    { return s.userID }
func (s *Store) RatedCount() int   { return s.ratedCount }
func (s *Store) Threshold() int    { return s.threshold }
func (s *Store) Version() uint64   { return s.version }
func (s *Store) Analyzing() bool   { return s.analyzing }

// AnalysisResult returns the last analysis attached to this session, if any.
func (s *Store) AnalysisResult() *analysis.Result { return s.analysisResult }

// SetUserID attaches the authenticated user. It reports whether the id changed.
func (s *Store) SetUserID(userID string) bool {
	if s.userID == userID {
		return false
	}
	s.userID = userID
	s.touch()
	return true
}

// SetRating records score for activityID.
//
// A first answer inserts the rating, drops any status for the id and bumps
// the count. Changing an existing answer overwrites the score but leaves the
// count alone. Repeating the same score is a no-op.
func (s *Store) SetRating(activityID string, score int) (Change, error) {
	if err := validateActivityID(activityID); err != nil {
		return Change{}, err
	}
	if err := validateScore(score); err != nil {
		return Change{}, err
	}

	current, exists := s.ratings[activityID]
	switch {
	case !exists:
		s.ratings[activityID] = score
		delete(s.statuses, activityID)
		s.recount()
	case current != score:
		s.ratings[activityID] = score
	default:
		return Change{}, nil
	}
	s.touch()
	return Change{Changed: true, RatingWritten: true}, nil
}

// RemoveRating deletes the rating for activityID if there is one.
func (s *Store) RemoveRating(activityID string) Change {
	if _, ok := s.ratings[activityID]; !ok {
		return Change{}
	}
	delete(s.ratings, activityID)
	s.recount()
	s.touch()
	return Change{Changed: true, RatingCleared: true}
}

// SetStatus flags activityID with status. A nil status clears the flag.
// Setting a status removes any rating for the same activity.
func (s *Store) SetStatus(activityID string, status *Status) (Change, error) {
	if err := validateActivityID(activityID); err != nil {
		return Change{}, err
	}

	if status == nil {
		if _, ok := s.statuses[activityID]; !ok {
			return Change{}, nil
		}
		delete(s.statuses, activityID)
		s.recount()
		s.touch()
		return Change{Changed: true}, nil
	}

	if !status.Valid() {
		return Change{}, apperr.Validation("unknown status %q", string(*status))
	}

	_, hadRating := s.ratings[activityID]
	if current, ok := s.statuses[activityID]; ok && current == *status && !hadRating {
		return Change{}, nil
	}
	s.statuses[activityID] = *status
	delete(s.ratings, activityID)
	s.recount()
	s.touch()
	return Change{Changed: true, RatingCleared: hadRating}, nil
}

// CanAnalyze reports whether enough activities were answered.
func (s *Store) CanAnalyze() bool {
	return s.ratedCount >= s.threshold
}

// Reset clears every answer, the analysis result and the analyzing flag.
// The session and user ids are kept.
func (s *Store) Reset() Change {
	if len(s.ratings) == 0 && len(s.statuses) == 0 && s.analysisResult == nil && !s.analyzing {
		return Change{}
	}
	s.ratings = make(map[string]int)
	s.statuses = make(map[string]Status)
	s.ratedCount = 0
	s.analysisResult = nil
	s.analyzing = false
	s.touch()
	return Change{Changed: true}
}

// SetAnalyzing marks an analysis as in progress.
func (s *Store) SetAnalyzing(analyzing bool) {
	s.analyzing = analyzing
}

// SetAnalysisResult attaches a finished analysis and clears the in-progress flag.
func (s *Store) SetAnalysisResult(result *analysis.Result) {
	s.analysisResult = result
	s.analyzing = false
}

// Rating returns the score for activityID.
func (s *Store) Rating(activityID string) (int, bool) {
	score, ok := s.ratings[activityID]
	return score, ok
}

// Status returns the status for activityID.
func (s *Store) Status(activityID string) (Status, bool) {
	status, ok := s.statuses[activityID]
	return status, ok
}

// Ratings returns the ratings ordered by activity id.
func (s *Store) Ratings() []Rating {
	out := make([]Rating, 0, len(s.ratings))
	for id, score := range s.ratings {
		out = append(out, Rating{ActivityID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityID < out[j].ActivityID })
	return out
}

// Statuses returns the statuses ordered by activity id.
func (s *Store) Statuses() []ActivityStatus {
	out := make([]ActivityStatus, 0, len(s.statuses))
	for id, status := range s.statuses {
		out = append(out, ActivityStatus{ActivityID: id, Status: status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityID < out[j].ActivityID })
	return out
}

// RatingScores returns a copy of the rating map.
func (s *Store) RatingScores() map[string]int {
	out := make(map[string]int, len(s.ratings))
	for id, score := range s.ratings {
		out[id] = score
	}
	return out
}

// AnsweredIDs returns every rated or status-flagged activity id.
func (s *Store) AnsweredIDs() map[string]struct{} {
	out := make(map[string]struct{}, s.ratedCount)
	for id := range s.ratings {
		out[id] = struct{}{}
	}
	for id := range s.statuses {
		out[id] = struct{}{}
	}
	return out
}

func (s *Store) recount() {
	s.ratedCount = len(s.ratings) + len(s.statuses)
}

func (s *Store) touch() {
	s.version++
}
