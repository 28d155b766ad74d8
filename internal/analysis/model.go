package analysis

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UniverseRecord is the storage row of a Universe. Types are kept as JSON
// so the number of facets is not fixed by the schema.
type UniverseRecord struct {
	ID          string         `gorm:"primaryKey;type:varchar(64)"`
	Name        string         `gorm:"not null"`
	Grade       string         `gorm:"type:varchar(32)"`
	Description string         `gorm:"type:text"`
	Types       datatypes.JSON `gorm:"type:json"`
	SortOrder   int            `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (UniverseRecord) TableName() string { return "universes" }

// AnalysisRecord stores one produced Result. Exactly one of SessionID and
// UserID is set.
type AnalysisRecord struct {
	ID         string  `gorm:"primaryKey;type:varchar(36)"`
	SessionID  *string `gorm:"index;type:varchar(64)"`
	UserID     *string `gorm:"index;type:varchar(128)"`
	UniverseID *string `gorm:"type:varchar(64)"`
	// Summary is the JSON encoded Result.
	Summary   datatypes.JSON `gorm:"type:json;not null"`
	CreatedAt time.Time      `gorm:"index"`
}

func (AnalysisRecord) TableName() string { return "analysis_results" }

// Migrate creates or updates the analysis tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&UniverseRecord{}, &AnalysisRecord{})
}
