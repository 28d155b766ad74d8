package activity

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads and writes the activities table.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// All returns every activity ordered by OrderIndex, then id.
func (r *Repository) All(ctx context.Context) ([]Activity, error) {
	var rows []Record
	if err := r.db.WithContext(ctx).
		Order("order_index asc, activity_id asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	out := make([]Activity, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toActivity())
	}
	return out, nil
}

// Upsert inserts activities or updates them by id.
func (r *Repository) Upsert(ctx context.Context, activities []Activity) error {
	if len(activities) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]Record, 0, len(activities))
	for _, a := range activities {
		rows = append(rows, fromActivity(a, now))
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "activity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "description", "icon_url", "order_index", "updated_at", "deleted_at"}),
	}).CreateInBatches(rows, 200).Error
	if err != nil {
		return fmt.Errorf("upsert activities: %w", err)
	}
	return nil
}
