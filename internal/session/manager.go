package session

import (
	"context"
	"sync"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/analysis"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/rating"
	"github.com/KU-Global-Startup-Frontier/BEEN/pkg/lifecycle"
)

// RecordWriter mirrors answers into the durable rating records.
type RecordWriter interface {
	Upsert(ctx context.Context, id rating.Identity, activityID string, score int) error
	Delete(ctx context.Context, id rating.Identity, activityID string) error
	MergeSession(ctx context.Context, sessionID, userID string) (int64, error)
}

// Options tunes a Manager. Zero values pick defaults.
type Options struct {
	Threshold      int
	IdleTTL        time.Duration
	PersistTimeout time.Duration
}

const (
	defaultIdleTTL        = 30 * time.Minute
	defaultPersistTimeout = 2 * time.Second
)

// State is the externally visible view of a session.
type State struct {
	SessionID  string            `json:"sessionId"`
	UserID     string            `json:"userId,omitempty"`
	Ratings    map[string]int    `json:"ratings"`
	Statuses   map[string]Status `json:"statuses"`
	RatedCount int               `json:"ratedCount"`
	Threshold  int               `json:"threshold"`
	CanAnalyze bool              `json:"canAnalyze"`
	Analyzing  bool              `json:"analyzing"`
	Analysis   *analysis.Result  `json:"analysis,omitempty"`
}

func stateOf(s *Store) State {
	st := State{
		SessionID:  s.sessionID,
		UserID:     s.userID,
		Ratings:    s.RatingScores(),
		Statuses:   make(map[string]Status, len(s.statuses)),
		RatedCount: s.RatedCount(),
		Threshold:  s.Threshold(),
		CanAnalyze: s.CanAnalyze(),
		Analyzing:  s.analyzing,
		Analysis:   s.analysisResult,
	}
	for id, status := range s.statuses {
		st.Statuses[id] = status
	}
	return st
}

type entry struct {
	// mu guards store. Every mutation runs to completion under it.
	mu    sync.Mutex
	store *Store

	// lastUsed and pending are guarded by Manager.mu.
	lastUsed time.Time
	pending  int

	// persistMu serializes durable writes of this session.
	persistMu    sync.Mutex
	saved        bool
	savedVersion uint64
	// recordVersions holds the Store version of the last record write per
	// owner and activity.
	recordVersions map[string]uint64
	// mergedUser received this session's records.
	mergedUser string
}

// persistJob says what to write after a change besides the snapshot.
type persistJob struct {
	// activityID names the rating record to bring in line with the Store.
	activityID string
	// merge copies the session's records to its user.
	merge bool

	// Captured when the change is made.
	owner   rating.Identity
	score   int
	rated   bool
	version uint64
}

func ownerOf(s *Store) rating.Identity {
	if uid := s.UserID(); uid != "" {
		return rating.ForUser(uid)
	}
	return rating.ForSession(s.SessionID())
}

// Manager owns one Store per session. Stores are restored from the slot on
// first use, mutated one call at a time and written back in the background.
// Durable writes never block or roll back a mutation.
type Manager struct {
	adapter *Adapter
	records RecordWriter
	opts    Options
	log     *logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	entries  map[string]*entry
	inFlight sync.WaitGroup
}

// NewManager builds a Manager over slot. records may be nil.
func NewManager(slot Slot, records RecordWriter, opts Options, log *logger.Logger) *Manager {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultAnalyzeThreshold
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		adapter: NewAdapter(slot, opts.Threshold, log),
		records: records,
		opts:    opts,
		log:     log,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Create starts an empty session under a new id.
func (m *Manager) Create(ctx context.Context) string {
	store := NewStore(NewID(), m.opts.Threshold)
	e := m.insert(store)
	m.schedule(e, persistJob{})
	return store.sessionID
}

// Resume returns the id the caller should keep using: sessionID itself when
// the session is live or restorable, otherwise the id of a new empty session.
func (m *Manager) Resume(ctx context.Context, sessionID string) string {
	if e := m.lookup(sessionID); e != nil {
		return sessionID
	}
	store, restored := m.adapter.Restore(ctx, sessionID)
	e := m.insert(store)
	if !restored {
		m.log.Info("started a new session in place of an unknown one", "session_id", store.sessionID)
		m.schedule(e, persistJob{})
	}
	return e.store.sessionID
}

// State returns the current view of the session.
func (m *Manager) State(ctx context.Context, sessionID string) (State, error) {
	return m.update(ctx, sessionID, func(*Store) (Change, persistJob, error) {
		return Change{}, persistJob{}, nil
	})
}

// AnsweredIDs returns the rated or status-flagged activity ids.
func (m *Manager) AnsweredIDs(ctx context.Context, sessionID string) (map[string]struct{}, error) {
	e, err := m.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return e.store.AnsweredIDs(), nil
}

func (m *Manager) SetRating(ctx context.Context, sessionID, activityID string, score int) (State, error) {
	return m.update(ctx, sessionID, func(s *Store) (Change, persistJob, error) {
		c, err := s.SetRating(activityID, score)
		return c, persistJob{activityID: activityID}, err
	})
}

func (m *Manager) RemoveRating(ctx context.Context, sessionID, activityID string) (State, error) {
	return m.update(ctx, sessionID, func(s *Store) (Change, persistJob, error) {
		return s.RemoveRating(activityID), persistJob{activityID: activityID}, nil
	})
}

func (m *Manager) SetStatus(ctx context.Context, sessionID, activityID string, status *Status) (State, error) {
	return m.update(ctx, sessionID, func(s *Store) (Change, persistJob, error) {
		c, err := s.SetStatus(activityID, status)
		job := persistJob{}
		if c.RatingCleared {
			job.activityID = activityID
		}
		return c, job, err
	})
}

// Reset clears the session's answers. Durable rating records are kept.
func (m *Manager) Reset(ctx context.Context, sessionID string) (State, error) {
	return m.update(ctx, sessionID, func(s *Store) (Change, persistJob, error) {
		return s.Reset(), persistJob{}, nil
	})
}

// AttachUser links the session to an authenticated user. The first time a
// user is attached, the session's rating records are copied to the user.
// A different user signing in on the same session starts from empty
// answers; the previous user's records are left alone.
func (m *Manager) AttachUser(ctx context.Context, sessionID, userID string) error {
	if userID == "" {
		return apperr.Validation("user id is required")
	}
	_, err := m.update(ctx, sessionID, func(s *Store) (Change, persistJob, error) {
		previous := s.UserID()
		if !s.SetUserID(userID) {
			return Change{}, persistJob{}, nil
		}
		if previous != "" {
			s.Reset()
			m.log.Info("session switched users, answers cleared", "session_id", sessionID, "user_id", userID)
			return Change{Changed: true}, persistJob{}, nil
		}
		return Change{Changed: true}, persistJob{merge: true}, nil
	})
	return err
}

// BeginAnalysis flags the session as analyzing and returns what to analyze:
// the local answers, laid over the user's records once a user is attached.
// Record writes may still be in flight, so the Store stays authoritative.
func (m *Manager) BeginAnalysis(ctx context.Context, sessionID string) (analysis.Request, error) {
	e, err := m.lock(ctx, sessionID)
	if err != nil {
		return analysis.Request{}, err
	}
	defer e.mu.Unlock()

	e.store.SetAnalyzing(true)
	if uid := e.store.userID; uid != "" {
		return analysis.Request{
			Owner:   rating.ForUser(uid),
			Local:   e.store.RatingScores(),
			Overlay: true,
		}, nil
	}
	return analysis.Request{
		Owner: rating.ForSession(e.store.sessionID),
		Local: e.store.RatingScores(),
	}, nil
}

// FinishAnalysis stores result on the session; nil just clears the flag.
func (m *Manager) FinishAnalysis(ctx context.Context, sessionID string, result *analysis.Result) {
	e, err := m.lock(ctx, sessionID)
	if err != nil {
		return
	}
	defer e.mu.Unlock()
	if result == nil {
		e.store.SetAnalyzing(false)
		return
	}
	e.store.SetAnalysisResult(result)
}

// Sweep evicts sessions idle for longer than the idle TTL that have no
// writes in flight. Sessions locked by a caller are skipped. It returns the
// number evicted.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.opts.IdleTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, e := range m.entries {
		if e.pending != 0 || !e.lastUsed.Before(cutoff) {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		delete(m.entries, id)
		e.mu.Unlock()
		evicted++
	}
	return evicted
}

// RunJanitor sweeps idle sessions every interval until shutdown.
func (m *Manager) RunJanitor(h *lifecycle.Handle, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if err := h.Sleep(interval); err != nil {
			return
		}
		if n := m.Sweep(); n > 0 {
			m.log.Debug("evicted idle sessions", "service", h.Name(), "count", n)
		}
	}
}

// Flush waits for background writes scheduled so far.
func (m *Manager) Flush() {
	m.inFlight.Wait()
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// update runs fn on the session's Store under its lock and schedules the
// durable writes when fn changed something.
func (m *Manager) update(ctx context.Context, sessionID string, fn func(*Store) (Change, persistJob, error)) (State, error) {
	e, err := m.lock(ctx, sessionID)
	if err != nil {
		return State{}, err
	}

	change, job, err := fn(e.store)
	state := stateOf(e.store)
	job.owner = ownerOf(e.store)
	job.version = e.store.Version()
	if job.activityID != "" {
		job.score, job.rated = e.store.Rating(job.activityID)
	}
	// scheduling under e.mu counts the write before Sweep can see the entry
	if err == nil && change.Changed {
		m.schedule(e, job)
	}
	e.mu.Unlock()

	if err != nil {
		return State{}, err
	}
	return state, nil
}

// lock returns the live entry of sessionID with its mu held. An entry
// evicted between lookup and locking is dropped and the session acquired
// again.
func (m *Manager) lock(ctx context.Context, sessionID string) (*entry, error) {
	for {
		e, err := m.acquire(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		if m.live(sessionID, e) {
			return e, nil
		}
		e.mu.Unlock()
	}
}

func (m *Manager) live(sessionID string, e *entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[sessionID] == e
}

// acquire returns the live entry of sessionID, restoring it if needed. A
// session missing from the slot is recreated empty under the same id.
func (m *Manager) acquire(ctx context.Context, sessionID string) (*entry, error) {
	if e := m.lookup(sessionID); e != nil {
		return e, nil
	}
	if !ValidID(sessionID) {
		return nil, apperr.Validation("invalid session id")
	}
	store, restored := m.adapter.Restore(ctx, sessionID)
	if !restored {
		store = NewStore(sessionID, m.opts.Threshold)
	}
	return m.insert(store), nil
}

func (m *Manager) lookup(sessionID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[sessionID]
	if ok {
		e.lastUsed = m.now()
	}
	return e
}

// insert adds store unless its session is already live, and returns the live entry.
func (m *Manager) insert(store *Store) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[store.sessionID]; ok {
		e.lastUsed = m.now()
		return e
	}
	e := &entry{store: store, lastUsed: m.now(), recordVersions: make(map[string]uint64)}
	m.entries[store.sessionID] = e
	return e
}

func (m *Manager) schedule(e *entry, job persistJob) {
	m.mu.Lock()
	e.pending++
	m.mu.Unlock()
	m.inFlight.Add(1)

	go func() {
		defer func() {
			m.mu.Lock()
			e.pending--
			m.mu.Unlock()
			m.inFlight.Done()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.PersistTimeout)
		defer cancel()
		m.persist(ctx, e, job)
	}()
}

// persist writes the session's current snapshot and the record change of
// job. Jobs of one session run one at a time. The snapshot is read when the
// job runs, so the last write carries the latest state; record writes carry
// the values captured with the change and skip anything older than what
// already landed.
func (m *Manager) persist(ctx context.Context, e *entry, job persistJob) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	// 1. Read the current state
	e.mu.Lock()
	snap := e.store.Snapshot()
	e.mu.Unlock()

	log := m.log.With("session_id", snap.SessionID)

	// 2. Snapshot, unless this version is already stored
	if !e.saved || snap.Version > e.savedVersion {
		if err := m.adapter.Save(ctx, snap); err != nil {
			log.Warn("saving session snapshot failed", "version", snap.Version, "error", err)
		} else {
			e.saved = true
			e.savedVersion = snap.Version
		}
	}

	if m.records == nil {
		return
	}

	// 3. Rating record, carried over to the merged user when the session
	// write lands after the merge
	if job.activityID != "" {
		if err := m.writeRecord(ctx, e, job.owner, job); err != nil {
			log.Warn("syncing rating record failed", "activity_id", job.activityID, "error", err)
		} else if job.owner.UserID == "" && e.mergedUser != "" {
			if err := m.writeRecord(ctx, e, rating.ForUser(e.mergedUser), job); err != nil {
				log.Warn("syncing merged rating record failed", "activity_id", job.activityID, "error", err)
			}
		}
	}

	// 4. Session to user merge
	if job.merge && job.owner.UserID != "" {
		n, err := m.records.MergeSession(ctx, snap.SessionID, job.owner.UserID)
		if err != nil {
			log.Warn("merging session ratings into user failed", "user_id", job.owner.UserID, "error", err)
			return
		}
		if e.mergedUser == "" {
			e.mergedUser = job.owner.UserID
		}
		log.Info("merged session ratings into user", "user_id", job.owner.UserID, "copied", n)
	}
}

// writeRecord brings owner's record of job.activityID in line with job.
// Jobs older than the last write for the same record are skipped. Callers
// hold e.persistMu.
func (m *Manager) writeRecord(ctx context.Context, e *entry, owner rating.Identity, job persistJob) error {
	key := owner.Key() + "/" + job.activityID
	if job.version < e.recordVersions[key] {
		return nil
	}
	var err error
	if job.rated {
		err = m.records.Upsert(ctx, owner, job.activityID, job.score)
	} else {
		err = m.records.Delete(ctx, owner, job.activityID)
	}
	if err != nil {
		return err
	}
	e.recordVersions[key] = job.version
	return nil
}
