package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/activity"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/analysis"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/database"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/testutil"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/rating"
)

// fakeRecords keeps records in memory, keyed by Identity.Key().
type fakeRecords struct {
	mu     sync.Mutex
	scores map[string]map[string]int
	merges []string
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{scores: map[string]map[string]int{}}
}

func (f *fakeRecords) Upsert(_ context.Context, id rating.Identity, activityID string, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scores[id.Key()] == nil {
		f.scores[id.Key()] = map[string]int{}
	}
	f.scores[id.Key()][activityID] = score
	return nil
}

func (f *fakeRecords) Delete(_ context.Context, id rating.Identity, activityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scores[id.Key()], activityID)
	return nil
}

func (f *fakeRecords) MergeSession(_ context.Context, sessionID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merges = append(f.merges, sessionID+"->"+userID)
	user := rating.ForUser(userID).Key()
	if f.scores[user] == nil {
		f.scores[user] = map[string]int{}
	}
	var n int64
	for activityID, score := range f.scores[rating.ForSession(sessionID).Key()] {
		if _, ok := f.scores[user][activityID]; !ok {
			f.scores[user][activityID] = score
			n++
		}
	}
	return n, nil
}

func (f *fakeRecords) get(id rating.Identity) map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int{}
	for k, v := range f.scores[id.Key()] {
		out[k] = v
	}
	return out
}

func newTestManager(t *testing.T) (*Manager, *MemorySlot, *fakeRecords) {
	t.Helper()
	slot := NewMemorySlot()
	records := newFakeRecords()
	m := NewManager(slot, records, Options{}, testutil.Logger(t))
	return m, slot, records
}

func TestManagerPersistsChanges(t *testing.T) {
	ctx := context.Background()
	m, slot, records := newTestManager(t)

	id := m.Create(ctx)
	if _, err := m.SetRating(ctx, id, "a", 4); err != nil {
		t.Fatalf("SetRating: %v", err)
	}
	if _, err := m.SetRating(ctx, id, "b", 2); err != nil {
		t.Fatalf("SetRating: %v", err)
	}
	if _, err := m.SetStatus(ctx, id, "b", statusPtr(StatusNotTried)); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	m.Flush()

	data, err := slot.Load(ctx, SlotKey(id))
	if err != nil {
		t.Fatalf("slot: %v", err)
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Ratings) != 1 || len(snap.Statuses) != 1 || snap.Version != 3 {
		t.Fatalf("snapshot=%+v", snap)
	}

	got := records.get(rating.ForSession(id))
	if len(got) != 1 || got["a"] != 4 {
		t.Fatalf("records=%v", got)
	}
}

func TestManagerRestoresEvictedSession(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	base := time.Now()
	m.now = func() time.Time { return base }

	id := m.Create(ctx)
	if _, err := m.SetRating(ctx, id, "a", 5); err != nil {
		t.Fatal(err)
	}
	m.Flush()

	m.now = func() time.Time { return base.Add(time.Hour) }
	if n := m.Sweep(); n != 1 || m.Len() != 0 {
		t.Fatalf("evicted=%d len=%d", n, m.Len())
	}

	if got := m.Resume(ctx, id); got != id {
		t.Fatalf("Resume=%q want %q", got, id)
	}
	state, err := m.State(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if state.Ratings["a"] != 5 || state.RatedCount != 1 {
		t.Fatalf("state=%+v", state)
	}
}

func TestManagerSweepSkipsLockedSession(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	base := time.Now()
	m.now = func() time.Time { return base }
	id := m.Create(ctx)
	m.Flush()

	e, err := m.lock(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	m.now = func() time.Time { return base.Add(time.Hour) }
	if n := m.Sweep(); n != 0 {
		t.Fatalf("evicted %d sessions while one was locked", n)
	}
	e.mu.Unlock()
	if n := m.Sweep(); n != 1 {
		t.Fatalf("evicted=%d want 1", n)
	}

	// a stale entry is never handed out again
	e2, err := m.lock(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	defer e2.mu.Unlock()
	if e2 == e {
		t.Fatal("lock returned the evicted entry")
	}
}

func TestManagerWritesSurviveEviction(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot()
	m := NewManager(slot, newFakeRecords(), Options{IdleTTL: time.Nanosecond}, testutil.Logger(t))
	id := m.Create(ctx)

	stop := make(chan struct{})
	swept := make(chan struct{})
	go func() {
		defer close(swept)
		for {
			select {
			case <-stop:
				return
			default:
				m.Sweep()
			}
		}
	}()

	const writers, perWriter = 4, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := m.SetRating(ctx, id, fmt.Sprintf("w%d-%02d", w, i), 1+i%5); err != nil {
					t.Errorf("SetRating: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()
	close(stop)
	<-swept
	m.Flush()

	state, err := m.State(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if state.RatedCount != writers*perWriter {
		t.Fatalf("ratedCount=%d want %d", state.RatedCount, writers*perWriter)
	}
}

func TestManagerResumeUnknownSession(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	unknown := NewID()
	got := m.Resume(ctx, unknown)
	if got == unknown || !ValidID(got) {
		t.Fatalf("Resume(unknown)=%q", got)
	}
	if got2 := m.Resume(ctx, got); got2 != got {
		t.Fatalf("Resume(new)=%q want %q", got2, got)
	}
}

func TestManagerRejectsInvalidID(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.State(context.Background(), "nope"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err=%v", err)
	}
}

func TestManagerConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	m, slot, _ := newTestManager(t)
	id := m.Create(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			activity := string(rune('a' + i))
			if _, err := m.SetRating(ctx, id, activity, 1+i%5); err != nil {
				t.Errorf("SetRating: %v", err)
			}
		}(i)
	}
	wg.Wait()
	m.Flush()

	state, _ := m.State(ctx, id)
	if state.RatedCount != 20 || !state.CanAnalyze {
		t.Fatalf("count=%d canAnalyze=%v", state.RatedCount, state.CanAnalyze)
	}
	data, _ := slot.Load(ctx, SlotKey(id))
	snap, _ := DecodeSnapshot(data)
	if len(snap.Ratings) != 20 {
		t.Fatalf("persisted %d ratings, want the latest 20", len(snap.Ratings))
	}
}

func TestManagerAttachUserMergesRecords(t *testing.T) {
	ctx := context.Background()
	m, _, records := newTestManager(t)
	id := m.Create(ctx)

	if _, err := m.SetRating(ctx, id, "a", 3); err != nil {
		t.Fatal(err)
	}
	if err := m.AttachUser(ctx, id, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := m.AttachUser(ctx, id, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SetRating(ctx, id, "b", 4); err != nil {
		t.Fatal(err)
	}
	m.Flush()

	if len(records.merges) != 1 {
		t.Fatalf("merges=%v", records.merges)
	}
	user := records.get(rating.ForUser("u1"))
	if user["a"] != 3 || user["b"] != 4 {
		t.Fatalf("user records=%v", user)
	}
	if err := m.AttachUser(ctx, id, ""); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("empty user err=%v", err)
	}
}

func TestManagerAttachDifferentUserClearsAnswers(t *testing.T) {
	ctx := context.Background()
	m, _, records := newTestManager(t)
	id := m.Create(ctx)

	if err := m.AttachUser(ctx, id, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SetRating(ctx, id, "a", 5); err != nil {
		t.Fatal(err)
	}
	if err := m.AttachUser(ctx, id, "u2"); err != nil {
		t.Fatal(err)
	}
	m.Flush()

	state, err := m.State(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if state.UserID != "u2" || state.RatedCount != 0 || len(state.Ratings) != 0 {
		t.Fatalf("state=%+v", state)
	}
	if len(records.merges) != 1 {
		t.Fatalf("merges=%v want only the first user", records.merges)
	}
	if got := records.get(rating.ForUser("u1")); got["a"] != 5 {
		t.Fatalf("first user's records=%v", got)
	}
	if got := records.get(rating.ForUser("u2")); len(got) != 0 {
		t.Fatalf("second user's records=%v", got)
	}
}

func TestManagerCarriesLateSessionWritesToMergedUser(t *testing.T) {
	ctx := context.Background()
	m, _, records := newTestManager(t)
	id := m.Create(ctx)
	m.Flush()
	e := m.lookup(id)
	sess, user := rating.ForSession(id), rating.ForUser("u1")

	// the merge runs before the session writes that preceded it
	m.persist(ctx, e, persistJob{merge: true, owner: user, version: 4})
	m.persist(ctx, e, persistJob{activityID: "a", owner: sess, score: 3, rated: true, version: 2})
	m.persist(ctx, e, persistJob{activityID: "b", owner: user, score: 5, rated: true, version: 5})
	m.persist(ctx, e, persistJob{activityID: "b", owner: sess, score: 1, rated: true, version: 3})

	got := records.get(user)
	if got["a"] != 3 || got["b"] != 5 || len(got) != 2 {
		t.Fatalf("user records=%v", got)
	}
	if s := records.get(sess); s["a"] != 3 || s["b"] != 1 {
		t.Fatalf("session records=%v", s)
	}
}

func TestManagerAnalysisBinding(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	id := m.Create(ctx)
	if _, err := m.SetRating(ctx, id, "a", 3); err != nil {
		t.Fatal(err)
	}

	req, err := m.BeginAnalysis(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if req.Owner != rating.ForSession(id) || req.Local["a"] != 3 {
		t.Fatalf("request=%+v", req)
	}
	if state, _ := m.State(ctx, id); !state.Analyzing {
		t.Fatal("analyzing flag not set")
	}

	m.FinishAnalysis(ctx, id, nil)
	if state, _ := m.State(ctx, id); state.Analyzing || state.Analysis != nil {
		t.Fatalf("state after failed analysis=%+v", state)
	}

	m.FinishAnalysis(ctx, id, &analysis.Result{ID: "r1"})
	if state, _ := m.State(ctx, id); state.Analysis == nil || state.Analysis.ID != "r1" {
		t.Fatalf("state=%+v", state)
	}

	if err := m.AttachUser(ctx, id, "u1"); err != nil {
		t.Fatal(err)
	}
	req, _ = m.BeginAnalysis(ctx, id)
	if req.Owner != rating.ForUser("u1") || !req.Overlay || req.Local["a"] != 3 {
		t.Fatalf("user request=%+v", req)
	}
	m.Flush()
}

// gatedRecords holds every record write until the gate is closed.
type gatedRecords struct {
	*fakeRecords
	gate chan struct{}
}

func (g *gatedRecords) Upsert(ctx context.Context, id rating.Identity, activityID string, score int) error {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.fakeRecords.Upsert(ctx, id, activityID, score)
}

func (g *gatedRecords) ListByIdentity(_ context.Context, id rating.Identity) ([]rating.Entry, error) {
	var out []rating.Entry
	for activityID, score := range g.get(id) {
		out = append(out, rating.Entry{ActivityID: activityID, Score: score})
	}
	return out, nil
}

type poolSource []activity.Activity

func (p poolSource) All(context.Context) ([]activity.Activity, error) { return p, nil }

func TestUserAnalysisSeesAnswersNotYetWritten(t *testing.T) {
	ctx := context.Background()
	records := &gatedRecords{fakeRecords: newFakeRecords(), gate: make(chan struct{})}
	m := NewManager(NewMemorySlot(), records, Options{}, testutil.Logger(t))
	t.Cleanup(func() {
		close(records.gate)
		m.Flush()
	})

	var pool poolSource
	for i := 0; i < 20; i++ {
		pool = append(pool, activity.Activity{ID: fmt.Sprintf("act-%02d", i), Category: "creative"})
	}
	// one answer from another device is only in the records
	pool = append(pool, activity.Activity{ID: "act-old", Category: "tech"})
	records.scores[rating.ForUser("u1").Key()] = map[string]int{"act-old": 2, "act-00": 1}

	id := m.Create(ctx)
	if err := m.AttachUser(ctx, id, "u1"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		if _, err := m.SetRating(ctx, id, fmt.Sprintf("act-%02d", i), 5); err != nil {
			t.Fatal(err)
		}
	}
	if got := records.get(rating.ForUser("u1")); got["act-00"] != 1 {
		t.Fatalf("record writes were not held back: %v", got)
	}

	req, err := m.BeginAnalysis(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	tables, err := analysis.DefaultTables()
	if err != nil {
		t.Fatal(err)
	}
	repo := analysis.NewRepository(testutil.DB(t, analysis.Migrate), nil, database.NewStatus(nil))
	svc := analysis.NewService(analysis.NewAnalyzer(tables), repo, records, pool, 0, testutil.Logger(t))

	res, err := svc.Analyze(ctx, req)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.RatingCount != 21 {
		t.Fatalf("ratingCount=%d want 21", res.RatingCount)
	}
	scores := map[string]int{}
	for _, c := range res.Categories {
		scores[c.Name] = c.Score
	}
	if scores["creative"] != 100 || scores["tech"] != 40 {
		t.Fatalf("categories=%v", res.Categories)
	}
}

var _ analysis.SessionBinder = (*Manager)(nil)
