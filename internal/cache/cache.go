// Package cache keeps rendered preview pages for a limited time so the
// preview iframe can load them by ID.
package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry represents a cached page
type Entry struct {
	Page      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired returns true if the entry has expired
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Cache defines the interface for preview storage
type Cache interface {
	// Put stores a page and returns its new ID
	Put(page string) string

	// Get retrieves a page by ID
	Get(id string) (string, bool)

	// Invalidate removes an entry from the cache
	Invalidate(id string)

	// InvalidateAll removes all entries from the cache
	InvalidateAll()
}

// MemoryCache is an in-memory cache implementation with TTL support
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	ttl        time.Duration
	maxEntries int

	// For background cleanup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once // Ensures Stop() is idempotent
}

// DefaultMaxEntries bounds the number of previews kept at once.
const DefaultMaxEntries = 1000

// NewMemoryCache creates a new in-memory cache whose entries live for ttl
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries:         make(map[string]*Entry),
		ttl:             ttl,
		maxEntries:      DefaultMaxEntries,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Put stores page under a fresh random ID. When the cache is full the
// oldest entry is evicted.
func (c *MemoryCache) Put(page string) string {
	id := uuid.NewString()
	now := time.Now()
	entry := &Entry{
		Page:      page,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	if len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[id] = entry
	c.mu.Unlock()
	return id
}

// Get retrieves a page from the cache
func (c *MemoryCache) Get(id string) (string, bool) {
	c.mu.RLock()
	entry, exists := c.entries[id]
	c.mu.RUnlock()

	if !exists {
		return "", false
	}

	if entry.IsExpired() {
		c.Invalidate(id)
		return "", false
	}

	return entry.Page, true
}

// Invalidate removes an entry from the cache
func (c *MemoryCache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// InvalidateAll removes all entries from the cache
func (c *MemoryCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}

func (c *MemoryCache) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, entry := range c.entries {
		if oldestID == "" || entry.CreatedAt.Before(oldest) {
			oldestID, oldest = id, entry.CreatedAt
		}
	}
	delete(c.entries, oldestID)
}

// cleanupLoop periodically removes expired entries
func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired entries
func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, id)
		}
	}
}

// Stop stops the background cleanup goroutine
// Safe to call multiple times
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
}

// Len returns the number of entries in the cache (for testing)
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
