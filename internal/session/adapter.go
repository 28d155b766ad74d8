package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/apperr"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
)

// Adapter moves Stores in and out of a Slot.
type Adapter struct {
	slot      Slot
	threshold int
	log       *logger.Logger
}

func NewAdapter(slot Slot, threshold int, log *logger.Logger) *Adapter {
	if log == nil {
		log = logger.Nop()
	}
	return &Adapter{slot: slot, threshold: threshold, log: log}
}

// Save writes snap to its session's slot key.
func (a *Adapter) Save(ctx context.Context, snap Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := a.slot.Save(ctx, SlotKey(snap.SessionID), data); err != nil {
		return apperr.Unavailable("session slot", err)
	}
	return nil
}

// Restore loads the Store of sessionID. When the slot is absent,
// unreachable or malformed it returns an empty Store under a newly
// generated id and restored=false. Restore never fails.
func (a *Adapter) Restore(ctx context.Context, sessionID string) (store *Store, restored bool) {
	fresh := func() (*Store, bool) {
		return NewStore(NewID(), a.threshold), false
	}
	if !ValidID(sessionID) {
		return fresh()
	}

	data, err := a.slot.Load(ctx, SlotKey(sessionID))
	if err != nil {
		if !errors.Is(err, ErrSlotEmpty) {
			a.log.Warn("session slot unavailable, starting a new session", "session_id", sessionID, "error", err)
		}
		return fresh()
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		a.log.Warn("discarding malformed session snapshot", "session_id", sessionID, "error", err)
		return fresh()
	}

	store, dropped := RestoreStore(sessionID, snap, a.threshold)
	if dropped > 0 {
		a.log.Warn("dropped invalid snapshot entries", "session_id", sessionID, "dropped", dropped)
	}
	return store, true
}
