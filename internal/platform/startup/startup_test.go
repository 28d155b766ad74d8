package startup

import (
	"testing"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/activity"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/analysis"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/config"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/database"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/metadata"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/testutil"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/rating"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/session"
)

func TestMigrateCreatesTables(t *testing.T) {
	db := testutil.DB(t, Migrate)
	for _, model := range []any{
		&metadata.Metadata{},
		&activity.Record{},
		&rating.Record{},
		&analysis.UniverseRecord{},
		&analysis.AnalysisRecord{},
	} {
		if !db.Migrator().HasTable(model) {
			t.Fatalf("table for %T missing", model)
		}
	}
}

func TestNewSlot(t *testing.T) {
	db := testutil.DB(t, Migrate)
	tests := []struct {
		slot    string
		check   func(session.Slot) bool
		wantErr bool
	}{
		{"", func(s session.Slot) bool { _, ok := s.(*session.TieredSlot); return ok }, false},
		{"tiered", func(s session.Slot) bool { _, ok := s.(*session.TieredSlot); return ok }, false},
		{"Redis", func(s session.Slot) bool { _, ok := s.(*session.RedisSlot); return ok }, false},
		{"sql", func(s session.Slot) bool { _, ok := s.(*session.SQLSlot); return ok }, false},
		{"memory", func(s session.Slot) bool { _, ok := s.(*session.MemorySlot); return ok }, false},
		{"disk", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.slot, func(t *testing.T) {
			cfg := &config.Config{Database: config.DatabaseConfig{Slot: tt.slot}}
			a := &App{Config: cfg, Log: testutil.Logger(t), DB: db, Status: database.NewStatus(nil)}
			slot, err := a.newSlot()
			if (err != nil) != tt.wantErr {
				t.Fatalf("newSlot(%q) err=%v wantErr=%v", tt.slot, err, tt.wantErr)
			}
			if err == nil && !tt.check(slot) {
				t.Fatalf("newSlot(%q) returned %T", tt.slot, slot)
			}
		})
	}
}

func TestNewAppRejectsUnknownSlot(t *testing.T) {
	cfg, err := config.LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.Database.Slot = "disk"
	db := testutil.DB(t, Migrate)
	if _, err := NewApp(cfg, testutil.Logger(t), db, nil, database.NewStatus(nil)); err == nil {
		t.Fatal("NewApp accepted an unknown slot")
	}
}
