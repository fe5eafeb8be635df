package progress

import (
	"context"
	"sync"
)

// MemoryStore keeps the set in memory. Nothing survives a restart.
type MemoryStore struct {
	mu  sync.Mutex
	set Set
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{set: NewSet()}
}

func (m *MemoryStore) Load(ctx context.Context) (Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, set Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set = set.Clone()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
