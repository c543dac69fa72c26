// Package store persists small host-side values across launches.
//
// The deployer keeps a single marker here: the version of the bundle that
// was last copied into the workspace. Three backends are provided: a YAML
// file, an SQLite database and an in-memory map for tests.
package store

import "sync"

// LastUpdateKey holds the version of the last successfully deployed bundle.
const LastUpdateKey = "bundle.last_update_time"

// Store is a durable int64 key-value store.
type Store interface {
	// GetInt64 returns the stored value and whether it was present.
	GetInt64(key string) (int64, bool, error)
	SetInt64(key string, value int64) error
}

// MemoryStore is a Store backed by a map. It does not survive restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]int64)}
}

func (m *MemoryStore) GetInt64(key string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) SetInt64(key string, value int64) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}
