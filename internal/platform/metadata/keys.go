package metadata

// Keys of the 'metadata' table.
const (
	// LastSeedAtKey stores the RFC3339 time of the last successful activity seed.
	LastSeedAtKey = "last_seed_at"

	// SeededActivitiesKey stores how many activities the last seed wrote.
	SeededActivitiesKey = "seeded_activities"

	// SlotKeyPrefix prefixes session snapshot slots kept in this table.
	SlotKeyPrefix = "slot:"
)
