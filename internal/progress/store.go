// Package progress records which lessons a learner has completed.
//
// A Store persists the completed set under a fixed storage key; a Tracker
// loads it once, applies changes in memory and saves after every change.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/livetemplate/qmdtutor/internal/config"
)

// StorageKey identifies the completed-lessons set in every backend.
const StorageKey = "completedLessons"

// Store loads and saves the completed-lessons set.
type Store interface {
	// Load returns the saved set; a store with nothing saved returns an
	// empty set.
	Load(ctx context.Context) (Set, error)

	// Save replaces the saved set.
	Save(ctx context.Context, set Set) error

	// Close releases backend resources.
	Close() error
}

// Set is a set of lesson IDs.
type Set map[string]struct{}

// NewSet creates a set holding ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id.
func (s Set) Add(id string) { s[id] = struct{}{} }

// Remove deletes id.
func (s Set) Remove(id string) { delete(s, id) }

// Has reports whether id is in the set.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the IDs in lexical order.
func (s Set) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a copy of the set.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// MarshalJSON encodes the set as a sorted array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of IDs.
func (s *Set) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewSet(ids...)
	return nil
}

// Open creates the store selected by cfg.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch backend := cfg.GetProgressBackend(); backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile:
		return NewFileStore(cfg.GetProgressPath()), nil
	case config.BackendSQLite:
		return NewSQLiteStore(ctx, cfg.GetProgressPath())
	case config.BackendPostgres:
		return NewPostgresStore(ctx, cfg.GetProgressDSN())
	default:
		return nil, fmt.Errorf("unknown progress backend %q", backend)
	}
}
