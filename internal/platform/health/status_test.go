package health

import "testing"

func TestTrackerTransitions(t *testing.T) {
	var tr tracker

	steps := []struct {
		name        string
		connected   bool
		runID       string
		wantRebuild bool
		wantState   State
	}{
		{"first probe", true, "a", false, StateHealthy},
		{"steady", true, "a", false, StateHealthy},
		{"lost", false, "", false, StateDegraded},
		{"back, same run", true, "a", true, StateRebuilding},
	}
	for _, s := range steps {
		if got := tr.assess(s.connected, s.runID); got != s.wantRebuild {
			t.Fatalf("%s: needsRebuild=%v want %v", s.name, got, s.wantRebuild)
		}
		if tr.get() != s.wantState {
			t.Fatalf("%s: state=%v want %v", s.name, tr.get(), s.wantState)
		}
	}

	// Redis restarted during the rebuild: stays rebuilding
	if tr.rebuilt(true, "b") {
		t.Fatal("rebuild across a restart was accepted")
	}
	if tr.get() != StateRebuilding {
		t.Fatalf("state=%v", tr.get())
	}
	if !tr.assess(true, "b") {
		t.Fatal("unfinished rebuild was not retried")
	}
	if !tr.rebuilt(true, "b") || tr.get() != StateHealthy {
		t.Fatalf("state=%v after a clean rebuild", tr.get())
	}

	// a restart while healthy triggers a rebuild
	if !tr.assess(true, "c") || tr.get() != StateRebuilding {
		t.Fatalf("restart not detected, state=%v", tr.get())
	}
	if tr.rebuilt(false, "c") || tr.get() != StateRebuilding {
		t.Fatal("failed rebuild left the rebuilding state")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{StateHealthy: "healthy", StateDegraded: "degraded", StateRebuilding: "rebuilding", State(9): "unknown"} {
		if s.String() != want {
			t.Fatalf("%d.String()=%q want %q", s, s.String(), want)
		}
	}
}
