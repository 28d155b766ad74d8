package rating

import (
	"context"
	"fmt"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the durable rating record source.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert writes score for (identity, activityID), replacing an earlier score.
func (r *Repository) Upsert(ctx context.Context, id Identity, activityID string, score int) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if activityID == "" {
		return apperr.Validation("activityId is required")
	}
	if !ValidScore(score) {
		return apperr.Validation("score must be -1 or between %d and %d, got %d", MinScore, MaxScore, score)
	}

	rec := Record{ActivityID: activityID, Score: score}
	rec.SessionID, rec.UserID = columnsFor(id)

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   conflictColumns(id),
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return apperr.Unavailable("rating store", fmt.Errorf("upsert rating %s: %w", activityID, err))
	}
	return nil
}

// ListByIdentity returns every rating owned by id in the order first written.
func (r *Repository) ListByIdentity(ctx context.Context, id Identity) ([]Entry, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var rows []Record
	if err := scope(r.db.WithContext(ctx), id).
		Order("created_at asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, apperr.Unavailable("rating store", fmt.Errorf("list ratings: %w", err))
	}

	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, Entry{ActivityID: row.ActivityID, Score: row.Score})
	}
	return out, nil
}

// Delete removes the rating for (identity, activityID). Missing rows are fine.
func (r *Repository) Delete(ctx context.Context, id Identity, activityID string) error {
	if err := id.Validate(); err != nil {
		return err
	}
	err := scope(r.db.WithContext(ctx), id).
		Where("activity_id = ?", activityID).
		Delete(&Record{}).Error
	if err != nil {
		return apperr.Unavailable("rating store", fmt.Errorf("delete rating %s: %w", activityID, err))
	}
	return nil
}

// MergeSession copies the ratings of sessionID to userID. Activities the
// user already rated keep the user's score. The session rows stay.
// It returns the number of rows copied.
func (r *Repository) MergeSession(ctx context.Context, sessionID, userID string) (int64, error) {
	if sessionID == "" || userID == "" {
		return 0, apperr.Validation("both sessionId and userId are required to merge")
	}

	var copied int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Read the session's rows
		var rows []Record
		if err := scope(tx, ForSession(sessionID)).Order("id asc").Find(&rows).Error; err != nil {
			return fmt.Errorf("read session ratings: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		// 2. Re-key them to the user
		now := time.Now()
		uid := userID
		copies := make([]Record, 0, len(rows))
		for _, row := range rows {
			copies = append(copies, Record{
				ActivityID: row.ActivityID,
				Score:      row.Score,
				UserID:     &uid,
				CreatedAt:  row.CreatedAt,
				UpdatedAt:  now,
			})
		}

		// 3. Insert, skipping activities the user already has
		res := tx.Clauses(clause.OnConflict{
			Columns:   conflictColumns(ForUser(userID)),
			DoNothing: true,
		}).CreateInBatches(copies, 200)
		if res.Error != nil {
			return fmt.Errorf("copy ratings to user: %w", res.Error)
		}
		copied = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, apperr.Unavailable("rating store", err)
	}
	return copied, nil
}

func columnsFor(id Identity) (sessionID, userID *string) {
	if id.UserID != "" {
		u := id.UserID
		return nil, &u
	}
	s := id.SessionID
	return &s, nil
}

func conflictColumns(id Identity) []clause.Column {
	if id.UserID != "" {
		return []clause.Column{{Name: "user_id"}, {Name: "activity_id"}}
	}
	return []clause.Column{{Name: "session_id"}, {Name: "activity_id"}}
}

func scope(db *gorm.DB, id Identity) *gorm.DB {
	if id.UserID != "" {
		return db.Where("user_id = ?", id.UserID)
	}
	return db.Where("session_id = ?", id.SessionID)
}
