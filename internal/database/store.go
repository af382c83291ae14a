package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"docspace/internal/config"
)

const (
	KeyInviteCodes = "invite_codes"
	KeyAnalytics   = "analytics"
)

var ErrNotFound = errors.New("not found")

// SnapshotStore keeps whole-state snapshots by key. Load returns ErrNotFound
// when nothing was saved under the key yet.
type SnapshotStore interface {
	Load(ctx context.Context, key string, value interface{}) error
	Save(ctx context.Context, key string, value interface{}) error
	Close()
}

// NewStore opens the snapshot store selected by storage.driver.
// Driver "none" returns a nil store and state is kept in memory only.
func NewStore(ctx context.Context, conf *config.Config) (SnapshotStore, error) {
	switch conf.Storage.Driver {
	case "", "none":
		return nil, nil
	case "mongo":
		m := NewMongoClient(conf)
		if m == nil {
			return nil, fmt.Errorf("mongo storage selected but mongo is disabled")
		}
		return m, nil
	case "mysql":
		s, err := NewSQLClient(ctx, conf)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		r, err := NewRedisClient(ctx, conf)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", conf.Storage.Driver)
	}
}

// Memory is a SnapshotStore that keeps JSON copies in a map.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	body, ok := m.data[key]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(body, value)
}

func (m *Memory) Save(_ context.Context, key string, value interface{}) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = body
	return nil
}

func (m *Memory) Close() {}
