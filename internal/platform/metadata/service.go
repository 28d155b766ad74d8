package metadata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Generic Accessors ---

// GetValue retrieves the value for key. ok is false when the key is absent.
func GetValue(ctx context.Context, db *gorm.DB, key string) (value string, ok bool, err error) {
	var meta Metadata
	err = db.WithContext(ctx).Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return meta.Value, true, nil
}

// SetValue creates or updates the value for key.
func SetValue(ctx context.Context, db *gorm.DB, key, value string) error {
	// OnConflict turns the insert into an atomic upsert on the unique key.
	meta := Metadata{
		Key:   key,
		Value: value,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&meta).Error
}

// DeleteValue removes key. Deleting a missing key is not an error.
func DeleteValue(ctx context.Context, db *gorm.DB, key string) error {
	return db.WithContext(ctx).Unscoped().Where("key = ?", key).Delete(&Metadata{}).Error
}

// --- Specific Helpers for Type Conversion ---

// GetLastSeedAt returns the time of the last activity seed, zero if never seeded.
func GetLastSeedAt(ctx context.Context, db *gorm.DB) (time.Time, error) {
	valueStr, ok, err := GetValue(ctx, db, LastSeedAtKey)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, valueStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse metadata %q: %w", LastSeedAtKey, err)
	}
	return t, nil
}

// RecordSeed stores the seed time and the number of activities written.
func RecordSeed(ctx context.Context, db *gorm.DB, at time.Time, count int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := SetValue(ctx, tx, LastSeedAtKey, at.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
		return SetValue(ctx, tx, SeededActivitiesKey, strconv.Itoa(count))
	})
}

// GetSeededActivities returns the activity count written by the last seed.
func GetSeededActivities(ctx context.Context, db *gorm.DB) (int, error) {
	valueStr, ok, err := GetValue(ctx, db, SeededActivitiesKey)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("parse metadata %q: %w", SeededActivitiesKey, err)
	}
	return n, nil
}
