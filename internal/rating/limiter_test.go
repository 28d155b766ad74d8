package rating

import (
	"context"
	"testing"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/database"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/testutil"
)

func TestLimiterSlidingWindow(t *testing.T) {
	rdb := testutil.Redis(t)
	ctx := context.Background()

	l := NewLimiter(rdb, database.NewStatus(nil), time.Minute, 3, testutil.Logger(t))
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "session_x")
		if err != nil || !ok {
			t.Fatalf("write %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := l.Allow(ctx, "session_x"); ok {
		t.Fatal("4th write inside the window was allowed")
	}
	// the rejected write must not have been counted
	if n := rdb.ZCard(ctx, writeKeyPrefix+"session_x").Val(); n != 3 {
		t.Fatalf("zcard=%d want 3", n)
	}
	// other keys are independent
	if ok, _ := l.Allow(ctx, "session_y"); !ok {
		t.Fatal("separate key was limited")
	}

	l.now = func() time.Time { return base.Add(61 * time.Second) }
	if ok, err := l.Allow(ctx, "session_x"); err != nil || !ok {
		t.Fatalf("write after window: ok=%v err=%v", ok, err)
	}
}

func TestLimiterAllowsWhenRedisUnhealthy(t *testing.T) {
	status := database.NewStatus(nil)
	status.Update(false, "")
	l := NewLimiter(nil, status, time.Minute, 1, nil)

	for i := 0; i < 5; i++ {
		ok, err := l.Allow(context.Background(), "k")
		if err != nil || !ok {
			t.Fatalf("write %d rejected: ok=%v err=%v", i, ok, err)
		}
	}
	if _, err := l.Allow(context.Background(), ""); err == nil {
		t.Fatal("empty key accepted")
	}
}
