package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/database"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/logger"
	"github.com/KU-Global-Startup-Frontier/BEEN/internal/platform/metadata"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrSlotEmpty is returned by Slot.Load when nothing is stored under the key.
var ErrSlotEmpty = errors.New("session slot is empty")

// Slot is a durable key-value cell for snapshots.
type Slot interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// --- Memory ---

// MemorySlot keeps snapshots in process memory.
type MemorySlot struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{data: make(map[string][]byte)}
}

func (m *MemorySlot) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrSlotEmpty
	}
	return append([]byte(nil), v...), nil
}

func (m *MemorySlot) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

// --- Redis ---

// RedisSlot stores snapshots as plain Redis strings that expire after ttl.
type RedisSlot struct {
	rdb    *redis.Client
	status *database.Status
	ttl    time.Duration
}

func NewRedisSlot(rdb *redis.Client, status *database.Status, ttl time.Duration) *RedisSlot {
	return &RedisSlot{rdb: rdb, status: status, ttl: ttl}
}

var errRedisDown = errors.New("redis is unhealthy")

func (r *RedisSlot) Load(ctx context.Context, key string) ([]byte, error) {
	if !r.status.IsRedisHealthy() {
		return nil, errRedisDown
	}
	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (r *RedisSlot) Save(ctx context.Context, key string, data []byte) error {
	if !r.status.IsRedisHealthy() {
		return errRedisDown
	}
	if err := r.rdb.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// --- SQL ---

// SQLSlot stores snapshots in the metadata key-value table.
type SQLSlot struct {
	db *gorm.DB
}

func NewSQLSlot(db *gorm.DB) *SQLSlot {
	return &SQLSlot{db: db}
}

func (s *SQLSlot) Load(ctx context.Context, key string) ([]byte, error) {
	v, ok, err := metadata.GetValue(ctx, s.db, metadata.SlotKeyPrefix+key)
	if err != nil {
		return nil, fmt.Errorf("sql slot load %s: %w", key, err)
	}
	if !ok {
		return nil, ErrSlotEmpty
	}
	return []byte(v), nil
}

func (s *SQLSlot) Save(ctx context.Context, key string, data []byte) error {
	if err := metadata.SetValue(ctx, s.db, metadata.SlotKeyPrefix+key, string(data)); err != nil {
		return fmt.Errorf("sql slot save %s: %w", key, err)
	}
	return nil
}

// --- Tiered ---

// TieredSlot writes to both slots and reads the primary first, falling back
// to the secondary when the primary is empty or failing.
type TieredSlot struct {
	primary   Slot
	secondary Slot
	log       *logger.Logger
}

func NewTieredSlot(primary, secondary Slot, log *logger.Logger) *TieredSlot {
	if log == nil {
		log = logger.Nop()
	}
	return &TieredSlot{primary: primary, secondary: secondary, log: log}
}

func (t *TieredSlot) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := t.primary.Load(ctx, key)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrSlotEmpty) {
		t.log.Debug("primary slot failed, reading secondary", "error", err)
	}
	return t.secondary.Load(ctx, key)
}

// Save succeeds when at least one tier stored the data.
func (t *TieredSlot) Save(ctx context.Context, key string, data []byte) error {
	perr := t.primary.Save(ctx, key, data)
	serr := t.secondary.Save(ctx, key, data)
	switch {
	case perr != nil && serr != nil:
		return errors.Join(perr, serr)
	case perr != nil:
		t.log.Debug("primary slot save failed", "error", perr)
	case serr != nil:
		t.log.Warn("secondary slot save failed", "error", serr)
	}
	return nil
}
