package rating

import (
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"gorm.io/gorm"
)

// Score rules shared by every writer of ratings.
const (
	NotTriedScore = -1
	MinScore      = 1
	MaxScore      = 5
)

// ValidScore reports whether score is -1 or within 1..5.
func ValidScore(score int) bool {
	return score == NotTriedScore || (score >= MinScore && score <= MaxScore)
}

// Entry is one stored answer, free of storage naming.
type Entry struct {
	ActivityID string
	Score      int
}

// Identity names the owner of a set of ratings. Exactly one of SessionID
// and UserID is set.
type Identity struct {
	SessionID string
	UserID    string
}

func ForSession(sessionID string) Identity { return Identity{SessionID: sessionID} }
func ForUser(userID string) Identity       { return Identity{UserID: userID} }

// Validate rejects identities with both or neither id set.
func (i Identity) Validate() error {
	switch {
	case i.SessionID == "" && i.UserID == "":
		return apperr.Validation("either sessionId or userId is required")
	case i.SessionID != "" && i.UserID != "":
		return apperr.Validation("sessionId and userId are mutually exclusive")
	}
	return nil
}

// Key is a stable string form used for cache and limiter keys.
func (i Identity) Key() string {
	if i.UserID != "" {
		return "user:" + i.UserID
	}
	return "session:" + i.SessionID
}

// Record is the storage row for a rating. The composite unique indexes
// keep one row per (identity, activity); NULLs never collide.
type Record struct {
	ID         uint    `gorm:"primaryKey"`
	ActivityID string  `gorm:"type:varchar(64);not null;uniqueIndex:idx_ratings_session_activity,priority:2;uniqueIndex:idx_ratings_user_activity,priority:2"`
	Score      int     `gorm:"not null"`
	SessionID  *string `gorm:"type:varchar(64);uniqueIndex:idx_ratings_session_activity,priority:1"`
	UserID     *string `gorm:"type:varchar(128);uniqueIndex:idx_ratings_user_activity,priority:1"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Record) TableName() string { return "ratings" }

// Migrate creates or updates the ratings table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}
