package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/database"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/rating"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// CacheKey is a Redis hash of recent results.
	// Field: result id. Value: JSON encoded Result.
	CacheKey = "analysis:cache"
)

// Repository stores universes and produced results.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	status *database.Status
}

// NewRepository builds a Repository. rdb may be nil to disable caching.
func NewRepository(db *gorm.DB, rdb *redis.Client, status *database.Status) *Repository {
	return &Repository{db: db, rdb: rdb, status: status}
}

// ListUniverses returns every universe in display order.
func (r *Repository) ListUniverses(ctx context.Context) ([]Universe, error) {
	var rows []UniverseRecord
	if err := r.db.WithContext(ctx).Order("sort_order asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load universes: %w", err)
	}
	out := make([]Universe, 0, len(rows))
	for _, row := range rows {
		u := Universe{ID: row.ID, Name: row.Name, Grade: row.Grade, Description: row.Description}
		if len(row.Types) > 0 {
			if err := json.Unmarshal(row.Types, &u.Types); err != nil {
				return nil, fmt.Errorf("decode types of universe %s: %w", row.ID, err)
			}
		}
		out = append(out, u)
	}
	return out, nil
}

// UpsertUniverses writes universes keeping their slice order as display order.
func (r *Repository) UpsertUniverses(ctx context.Context, universes []Universe) error {
	if len(universes) == 0 {
		return nil
	}
	rows := make([]UniverseRecord, 0, len(universes))
	for i, u := range universes {
		types, err := json.Marshal(u.Types)
		if err != nil {
			return fmt.Errorf("encode types of universe %s: %w", u.ID, err)
		}
		rows = append(rows, UniverseRecord{
			ID:          u.ID,
			Name:        u.Name,
			Grade:       u.Grade,
			Description: u.Description,
			Types:       datatypes.JSON(types),
			SortOrder:   i,
		})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "grade", "description", "types", "sort_order", "updated_at"}),
	}).Create(&rows).Error
}

// Save persists result under result.ID for the given owner.
func (r *Repository) Save(ctx context.Context, owner rating.Identity, result *Result) error {
	if result.ID == "" {
		return errors.New("analysis result has no id")
	}
	summary, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode analysis result: %w", err)
	}
	rec := AnalysisRecord{
		ID:        result.ID,
		Summary:   datatypes.JSON(summary),
		CreatedAt: result.AnalyzedAt,
	}
	if owner.UserID != "" {
		rec.UserID = &owner.UserID
	} else if owner.SessionID != "" {
		rec.SessionID = &owner.SessionID
	}
	if result.Universe != nil {
		rec.UniverseID = &result.Universe.ID
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save analysis result: %w", err)
	}
	return nil
}

// Get returns a stored result, checking the cache first.
func (r *Repository) Get(ctx context.Context, id string) (*Result, error) {
	if cached, err := r.GetCache(ctx, id); err == nil && cached != nil {
		return cached, nil
	}

	var rec AnalysisRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("analysis %s not found", id)
		}
		return nil, apperr.Unavailable("analysis store", err)
	}
	var result Result
	if err := json.Unmarshal(rec.Summary, &result); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", id, err)
	}
	return &result, nil
}

// GetCache returns a cached result, or nil on a miss or while Redis is down.
func (r *Repository) GetCache(ctx context.Context, id string) (*Result, error) {
	if r.rdb == nil || !r.status.IsRedisHealthy() {
		return nil, nil
	}
	data, err := r.rdb.HGet(ctx, CacheKey, id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetCache stores result in the cache hash with a per-field TTL.
func (r *Repository) SetCache(ctx context.Context, result *Result, expire time.Duration) error {
	if r.rdb == nil || !r.status.IsRedisHealthy() {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, CacheKey, result.ID, data)
	pipe.HExpire(ctx, CacheKey, expire, result.ID)
	_, err = pipe.Exec(ctx)
	return err
}
