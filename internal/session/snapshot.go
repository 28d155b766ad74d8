package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
)

// SlotName is the durable slot every snapshot lives under, one key per session.
const SlotName = "been-storage"

// SlotKey returns the slot key of sessionID.
func SlotKey(sessionID string) string {
	return SlotName + ":" + sessionID
}

// Snapshot is the durable form of a Store.
type Snapshot struct {
	SessionID  string
	UserID     string
	Ratings    []Rating
	Statuses   []ActivityStatus
	RatedCount int
	Version    uint64
}

// Snapshot captures the Store. Lists are ordered by activity id.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		SessionID:  s.sessionID,
		UserID:     s.userID,
		Ratings:    s.Ratings(),
		Statuses:   s.Statuses(),
		RatedCount: s.ratedCount,
		Version:    s.version,
	}
}

// RestoreStore rebuilds a Store from snap under sessionID. Entries with an
// empty id, an invalid score or status, or an id seen before are dropped;
// a rating wins over a status for the same id. The count is recomputed.
// It returns the Store and the number of dropped entries.
func RestoreStore(sessionID string, snap Snapshot, threshold int) (*Store, int) {
	s := NewStore(sessionID, threshold)
	s.userID = snap.UserID
	s.version = snap.Version

	dropped := 0
	for _, r := range snap.Ratings {
		if _, dup := s.ratings[r.ActivityID]; dup || validateActivityID(r.ActivityID) != nil || validateScore(r.Score) != nil {
			dropped++
			continue
		}
		s.ratings[r.ActivityID] = r.Score
	}
	for _, st := range snap.Statuses {
		_, rated := s.ratings[st.ActivityID]
		_, dup := s.statuses[st.ActivityID]
		if rated || dup || st.ActivityID == "" || !st.Status.Valid() {
			dropped++
			continue
		}
		s.statuses[st.ActivityID] = st.Status
	}
	s.recount()
	return s, dropped
}

type wireSnapshot struct {
	SessionID  string  `json:"sessionId"`
	UserID     string  `json:"userId,omitempty"`
	Ratings    [][]any `json:"ratings"`
	Statuses   [][]any `json:"statuses"`
	RatedCount int     `json:"ratedCount"`
	Version    uint64  `json:"version"`
}

// EncodeSnapshot writes snap as JSON with ratings and statuses as
// [activityId, value] pairs.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	w := wireSnapshot{
		SessionID:  snap.SessionID,
		UserID:     snap.UserID,
		Ratings:    make([][]any, 0, len(snap.Ratings)),
		Statuses:   make([][]any, 0, len(snap.Statuses)),
		RatedCount: snap.RatedCount,
		Version:    snap.Version,
	}
	for _, r := range snap.Ratings {
		w.Ratings = append(w.Ratings, []any{r.ActivityID, r.Score})
	}
	for _, st := range snap.Statuses {
		w.Statuses = append(w.Statuses, []any{st.ActivityID, string(st.Status)})
	}
	return json.Marshal(w)
}

var errNotObject = errors.New("snapshot is not a JSON object")

// DecodeSnapshot parses data leniently. Only data that is not a JSON object
// is an error (kind malformed_snapshot); missing or mistyped fields read as
// empty and unreadable pairs are skipped. Validation of the pairs is left to
// RestoreStore.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Snapshot{}, apperr.Malformed(fmt.Errorf("decode snapshot: %w", err))
	}
	if fields == nil {
		return Snapshot{}, apperr.Malformed(errNotObject)
	}

	var snap Snapshot
	decodeField(fields["sessionId"], &snap.SessionID)
	decodeField(fields["userId"], &snap.UserID)
	decodeField(fields["ratedCount"], &snap.RatedCount)
	decodeField(fields["version"], &snap.Version)

	for _, pair := range decodePairs(fields["ratings"]) {
		var id string
		var score float64
		if decodeField(pair[0], &id) && decodeField(pair[1], &score) && score == math.Trunc(score) {
			snap.Ratings = append(snap.Ratings, Rating{ActivityID: id, Score: int(score)})
		}
	}
	for _, pair := range decodePairs(fields["statuses"]) {
		var id, status string
		if decodeField(pair[0], &id) && decodeField(pair[1], &status) {
			snap.Statuses = append(snap.Statuses, ActivityStatus{ActivityID: id, Status: Status(status)})
		}
	}
	return snap, nil
}

// decodeField unmarshals raw into dst and reports success. Absent fields fail.
func decodeField(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// decodePairs returns the two-element arrays of a JSON array, skipping the rest.
func decodePairs(raw json.RawMessage) [][2]json.RawMessage {
	var items []json.RawMessage
	if !decodeField(raw, &items) {
		return nil
	}
	out := make([][2]json.RawMessage, 0, len(items))
	for _, item := range items {
		var pair []json.RawMessage
		if !decodeField(item, &pair) || len(pair) != 2 {
			continue
		}
		out = append(out, [2]json.RawMessage{pair[0], pair[1]})
	}
	return out
}
