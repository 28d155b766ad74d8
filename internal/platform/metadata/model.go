package metadata

import "gorm.io/gorm"

// Metadata is a key/value row. It holds service bookkeeping and, when the
// SQL slot is enabled, serialized session snapshots.
type Metadata struct {
	gorm.Model

	// Key is unique, e.g. "last_seed_at" or "slot:been-storage:session_ab12...".
	Key string `gorm:"uniqueIndex;not null;type:varchar(255)"`

	Value string `gorm:"type:text"`
}
