package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/activity"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
)

func makePool(n int) []activity.Activity {
	pool := make([]activity.Activity, n)
	for i := range pool {
		pool[i] = activity.Activity{ID: fmt.Sprintf("act-%02d", i), Name: fmt.Sprintf("Activity %d", i), Category: "hobby"}
	}
	return pool
}

func excludeFirst(pool []activity.Activity, k int) map[string]struct{} {
	ex := make(map[string]struct{}, k)
	for _, a := range pool[:k] {
		ex[a.ID] = struct{}{}
	}
	return ex
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestSampleSizes(t *testing.T) {
	tests := []struct {
		n, k, offset, limit int
		wantTotal, wantLen  int
		wantHasMore         bool
	}{
		{n: 10, k: 0, offset: 0, limit: 4, wantTotal: 10, wantLen: 4, wantHasMore: true},
		{n: 10, k: 3, offset: 0, limit: 4, wantTotal: 7, wantLen: 4, wantHasMore: true},
		{n: 10, k: 3, offset: 4, limit: 4, wantTotal: 7, wantLen: 3, wantHasMore: false},
		{n: 10, k: 3, offset: 3, limit: 4, wantTotal: 7, wantLen: 4, wantHasMore: true}, // exactly exhausts the pool
		{n: 10, k: 3, offset: 7, limit: 4, wantTotal: 7, wantLen: 0, wantHasMore: false},
		{n: 10, k: 3, offset: 50, limit: 4, wantTotal: 7, wantLen: 0, wantHasMore: false},
		{n: 10, k: 10, offset: 0, limit: 4, wantTotal: 0, wantLen: 0, wantHasMore: false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n%d_k%d_off%d_lim%d", tt.n, tt.k, tt.offset, tt.limit), func(t *testing.T) {
			for seed := uint64(1); seed <= 5; seed++ {
				pool := makePool(tt.n)
				exclude := excludeFirst(pool, tt.k)
				page, err := New(seeded(seed), 0, 0).Sample(pool, exclude, tt.offset, tt.limit)
				if err != nil {
					t.Fatalf("Sample: %v", err)
				}
				if page.Total != tt.wantTotal {
					t.Fatalf("total=%d want %d", page.Total, tt.wantTotal)
				}
				if len(page.Activities) != tt.wantLen {
					t.Fatalf("len=%d want %d", len(page.Activities), tt.wantLen)
				}
				if page.HasMore != tt.wantHasMore {
					t.Fatalf("hasMore=%v want %v", page.HasMore, tt.wantHasMore)
				}
				seen := map[string]bool{}
				for _, a := range page.Activities {
					if _, excluded := exclude[a.ID]; excluded {
						t.Fatalf("excluded id %s returned", a.ID)
					}
					if seen[a.ID] {
						t.Fatalf("duplicate id %s", a.ID)
					}
					seen[a.ID] = true
				}
			}
		})
	}
}

func TestSamplePagesPartitionOneShuffle(t *testing.T) {
	// With the same seed every call reproduces the same permutation, so
	// consecutive pages cover the filtered pool exactly once.
	pool := makePool(9)
	seen := map[string]int{}
	for offset := 0; offset < 9; offset += 4 {
		page, err := New(seeded(42), 0, 0).Sample(pool, nil, offset, 4)
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		for _, a := range page.Activities {
			seen[a.ID]++
		}
	}
	if len(seen) != 9 {
		t.Fatalf("pages covered %d ids, want 9", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("%s seen %d times", id, n)
		}
	}
}

func TestSampleEmptyPool(t *testing.T) {
	page, err := New(seeded(1), 0, 0).Sample(nil, nil, 0, 10)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if page.Total != 0 || page.HasMore || len(page.Activities) != 0 {
		t.Fatalf("page=%+v", page)
	}
	if page.Message != MessageEmptyPool {
		t.Fatalf("message=%q", page.Message)
	}
	if page.Activities == nil {
		t.Fatal("activities must encode as [] not null")
	}
}

func TestSampleAllAnswered(t *testing.T) {
	pool := makePool(3)
	page, _ := New(seeded(1), 0, 0).Sample(pool, excludeFirst(pool, 3), 0, 10)
	if page.Message != MessageAllAnswered || page.Total != 0 {
		t.Fatalf("page=%+v", page)
	}
}

func TestSampleRejectsNegativeOffset(t *testing.T) {
	_, err := New(seeded(1), 0, 0).Sample(makePool(3), nil, -1, 10)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err=%v want validation error", err)
	}
}

func TestSampleLimitDefaultsAndCap(t *testing.T) {
	pool := makePool(30)

	page, _ := New(seeded(1), 0, 0).Sample(pool, nil, 0, 0)
	if len(page.Activities) != 30 || page.HasMore {
		t.Fatalf("default limit %d: len=%d hasMore=%v", DefaultLimit, len(page.Activities), page.HasMore)
	}

	page, _ = New(seeded(1), 5, 0).Sample(pool, nil, 0, -3)
	if len(page.Activities) != 5 {
		t.Fatalf("configured default: len=%d want 5", len(page.Activities))
	}

	page, _ = New(seeded(1), 5, 8).Sample(pool, nil, 0, 1000)
	if len(page.Activities) != 8 || !page.HasMore {
		t.Fatalf("capped: len=%d hasMore=%v", len(page.Activities), page.HasMore)
	}

	// no cap: offset+limit must not overflow
	page, err := New(seeded(1), 0, 0).Sample(pool[:3], nil, 1, math.MaxInt)
	if err != nil {
		t.Fatalf("uncapped: %v", err)
	}
	if len(page.Activities) != 2 || page.HasMore {
		t.Fatalf("uncapped: len=%d hasMore=%v", len(page.Activities), page.HasMore)
	}
}

func TestSampleDoesNotModifyPool(t *testing.T) {
	pool := makePool(20)
	before := make([]string, len(pool))
	for i, a := range pool {
		before[i] = a.ID
	}
	if _, err := New(seeded(7), 0, 0).Sample(pool, nil, 0, 20); err != nil {
		t.Fatalf("Sample: %v", err)
	}
	for i, a := range pool {
		if a.ID != before[i] {
			t.Fatalf("pool reordered at %d", i)
		}
	}
}

func TestSampleDeterministicForSeed(t *testing.T) {
	pool := makePool(15)
	a, _ := New(seeded(99), 0, 0).Sample(pool, nil, 0, 15)
	b, _ := New(seeded(99), 0, 0).Sample(pool, nil, 0, 15)
	for i := range a.Activities {
		if a.Activities[i].ID != b.Activities[i].ID {
			t.Fatalf("same seed gave different order at %d", i)
		}
	}
}

func TestShuffleIsUniform(t *testing.T) {
	const (
		n      = 5
		trials = 50000
	)
	rng := seeded(2024)
	counts := [n][n]int{} // counts[item][position]
	items := make([]int, n)
	for trial := 0; trial < trials; trial++ {
		for i := range items {
			items[i] = i
		}
		Shuffle(rng, items)
		for pos, item := range items {
			counts[item][pos]++
		}
	}

	expected := float64(trials) / n
	// six standard deviations of a binomial(trials, 1/n) count
	tolerance := 6 * 89.5
	for item := 0; item < n; item++ {
		for pos := 0; pos < n; pos++ {
			if diff := float64(counts[item][pos]) - expected; diff > tolerance || diff < -tolerance {
				t.Fatalf("item %d at position %d: %d times, expected about %.0f", item, pos, counts[item][pos], expected)
			}
		}
	}
}

type fakeSource struct {
	pool []activity.Activity
	err  error
}

func (f fakeSource) All(context.Context) ([]activity.Activity, error) { return f.pool, f.err }

func TestServiceDegradesOnSourceFailure(t *testing.T) {
	svc := NewService(New(seeded(1), 0, 0), fakeSource{err: errors.New("connection refused")}, nil)

	page, err := svc.Page(context.Background(), nil, 0, 10)
	if err != nil {
		t.Fatalf("Page returned error: %v", err)
	}
	if page.Message != MessageUnavailable || page.HasMore || len(page.Activities) != 0 {
		t.Fatalf("page=%+v", page)
	}
	if page.Message == MessageEmptyPool {
		t.Fatal("failure message must differ from the empty pool message")
	}

	if _, err := svc.Page(context.Background(), nil, -1, 10); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("negative offset err=%v", err)
	}
}

func TestServicePagesSourcePool(t *testing.T) {
	pool := makePool(6)
	svc := NewService(New(seeded(3), 0, 0), fakeSource{pool: pool}, nil)
	page, err := svc.Page(context.Background(), excludeFirst(pool, 2), 0, 10)
	if err != nil || page.Total != 4 || len(page.Activities) != 4 {
		t.Fatalf("page=%+v err=%v", page, err)
	}
}
