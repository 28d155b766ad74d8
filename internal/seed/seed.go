// Package seed loads the activity pool and the universes from a YAML file
// into the database.
package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/activity"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/analysis"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/metadata"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// File is the layout of a seed file.
type File struct {
	Activities []activity.Activity `yaml:"activities"`
	Universes  []analysis.Universe `yaml:"universes"`
}

// universeNamespace derives stable ids for universes seeded without one,
// so seeding the same file twice updates rows instead of adding new ones.
var universeNamespace = uuid.MustParse("5b0e3c1a-8f43-4f7e-9f7b-2d0c6c7f5e21")

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes seed YAML, fills missing order indexes and universe ids,
// and rejects duplicate or incomplete activities.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	seen := make(map[string]bool, len(f.Activities))
	for i := range f.Activities {
		a := &f.Activities[i]
		if a.ID == "" || a.Name == "" || a.Category == "" {
			return nil, fmt.Errorf("activity #%d: id, name and category are required", i+1)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("duplicate activity id %q", a.ID)
		}
		seen[a.ID] = true
		if a.OrderIndex == 0 {
			a.OrderIndex = i + 1
		}
	}

	for i := range f.Universes {
		u := &f.Universes[i]
		if u.Name == "" {
			return nil, fmt.Errorf("universe #%d: name is required", i+1)
		}
		if u.ID == "" {
			u.ID = uuid.NewSHA1(universeNamespace, []byte(u.Name)).String()
		}
	}
	return &f, nil
}

// Result summarizes an Apply run.
type Result struct {
	Activities int
	Universes  int
	At         time.Time
}

// Apply upserts the file's activities and universes and records the seed
// time in the metadata table.
func Apply(ctx context.Context, db *gorm.DB, f *File, now time.Time) (Result, error) {
	// 1. Activities
	if err := activity.NewRepository(db).Upsert(ctx, f.Activities); err != nil {
		return Result{}, fmt.Errorf("seed activities: %w", err)
	}

	// 2. Universes; the result cache is not touched
	if err := analysis.NewRepository(db, nil, nil).UpsertUniverses(ctx, f.Universes); err != nil {
		return Result{}, fmt.Errorf("seed universes: %w", err)
	}

	// 3. Bookkeeping
	if err := metadata.RecordSeed(ctx, db, now, len(f.Activities)); err != nil {
		return Result{}, fmt.Errorf("record seed: %w", err)
	}
	return Result{Activities: len(f.Activities), Universes: len(f.Universes), At: now}, nil
}
