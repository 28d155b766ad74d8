package activity

import (
	"context"
	"testing"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/database"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/testutil"
)

func seedActivities() []Activity {
	return []Activity{
		{ID: "b", Name: "Bouldering", Category: "sports", OrderIndex: 2},
		{ID: "a", Name: "Sketching", Category: "creative", OrderIndex: 1},
		{ID: "c", Name: "Chess", Category: "hobby", OrderIndex: 2},
	}
}

func TestRepositoryUpsertAndAll(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testutil.DB(t, Migrate))

	if err := repo.Upsert(ctx, seedActivities()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// second upsert updates in place
	if err := repo.Upsert(ctx, []Activity{{ID: "a", Name: "Drawing", Category: "arts", OrderIndex: 1}}); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}

	got, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	wantIDs := []string{"a", "b", "c"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d activities, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
	if got[0].Name != "Drawing" || got[0].Category != "arts" {
		t.Fatalf("activity a not updated: %+v", got[0])
	}
}

func TestPoolFallsBackToSQLWithoutRedis(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testutil.DB(t, Migrate))
	if err := repo.Upsert(ctx, seedActivities()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	pool := NewPool(repo, nil, database.NewStatus(nil), nil)
	first, err := pool.All(ctx)
	if err != nil || len(first) != 3 {
		t.Fatalf("All=%v err=%v", first, err)
	}
	// callers get their own copy
	first[0].ID = "mutated"
	second, _ := pool.All(ctx)
	if second[0].ID != "a" {
		t.Fatalf("pool was mutated through a returned slice: %+v", second[0])
	}

	if err := repo.Upsert(ctx, []Activity{{ID: "d", Name: "Debate", Category: "social", OrderIndex: 9}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got, _ := pool.All(ctx); len(got) != 3 {
		t.Fatalf("pool reloaded before Refresh: %d", len(got))
	}
	if err := pool.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got, _ := pool.All(ctx); len(got) != 4 {
		t.Fatalf("pool after Refresh has %d activities", len(got))
	}
}

func TestPoolSharesThroughRedis(t *testing.T) {
	rdb := testutil.Redis(t)
	ctx := context.Background()
	repo := NewRepository(testutil.DB(t, Migrate))
	if err := repo.Upsert(ctx, seedActivities()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	status := database.NewStatus(nil)
	if err := NewPool(repo, rdb, status, nil).Warmup(ctx); err != nil {
		t.Fatalf("Warmup: %v", err)
	}

	// an instance with an empty table still sees the published pool
	other := NewPool(NewRepository(testutil.DB(t, Migrate)), rdb, status, nil)
	got, err := other.All(ctx)
	if err != nil || len(got) != 3 {
		t.Fatalf("All=%v err=%v", got, err)
	}
}
