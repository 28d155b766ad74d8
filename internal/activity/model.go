package activity

import (
	"time"

	"gorm.io/gorm"
)

// Activity is one item a person rates. Immutable once loaded.
type Activity struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	IconURL     string `json:"iconUrl,omitempty" yaml:"iconUrl,omitempty"`
	OrderIndex  int    `json:"orderIndex" yaml:"orderIndex"`
}

// Record is the storage row for an Activity.
type Record struct {
	gorm.Model

	// ActivityID is the public id used everywhere outside this table.
	ActivityID  string `gorm:"uniqueIndex;type:varchar(64);not null"`
	Name        string `gorm:"not null"`
	Category    string `gorm:"index;type:varchar(64);not null"`
	Description string `gorm:"type:text"`
	IconURL     string
	OrderIndex  int `gorm:"index"`
}

func (Record) TableName() string { return "activities" }

func (r Record) toActivity() Activity {
	return Activity{
		ID:          r.ActivityID,
		Name:        r.Name,
		Category:    r.Category,
		Description: r.Description,
		IconURL:     r.IconURL,
		OrderIndex:  r.OrderIndex,
	}
}

func fromActivity(a Activity, now time.Time) Record {
	rec := Record{
		ActivityID:  a.ID,
		Name:        a.Name,
		Category:    a.Category,
		Description: a.Description,
		IconURL:     a.IconURL,
		OrderIndex:  a.OrderIndex,
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return rec
}

// Migrate creates or updates the activities table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}
