package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the set in a JSON file shaped like browser local
// storage: {"completedLessons": ["intro", ...]}.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path. The file and its
// directory are created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(ctx context.Context) (Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return NewSet(), nil
	}
	if err != nil {
		return nil, &StoreError{Backend: "file", Operation: "load", Err: err}
	}

	doc := map[string]Set{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &StoreError{Backend: "file", Operation: "load", Err: fmt.Errorf("parse %s: %w", f.path, err)}
	}
	if set, ok := doc[StorageKey]; ok {
		return set, nil
	}
	return NewSet(), nil
}

func (f *FileStore) Save(ctx context.Context, set Set) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(map[string]Set{StorageKey: set}, "", "  ")
	if err != nil {
		return &StoreError{Backend: "file", Operation: "save", Err: err}
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &StoreError{Backend: "file", Operation: "save", Err: err}
		}
	}

	// Write to a temp file and rename so readers never see a partial file
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return &StoreError{Backend: "file", Operation: "save", Err: err}
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return &StoreError{Backend: "file", Operation: "save", Err: err}
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
