package progress

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
)

// Summary reports completion against the current lesson list.
type Summary struct {
	Completed []string `json:"completed"` // In lesson order
	Count     int      `json:"count"`
	Total     int      `json:"total"`
	Percent   int      `json:"percent"`
}

// Tracker holds the completed set in memory and writes it through to a
// Store on every change. A failed save leaves the in-memory set as it
// was before the change.
type Tracker struct {
	mu      sync.RWMutex
	store   Store
	set     Set
	lessons []string
	known   map[string]bool
}

// NewTracker loads the saved set from store. lessons is the catalog's
// lesson order; completed IDs not in it are kept but not counted.
func NewTracker(ctx context.Context, store Store, lessons []string) (*Tracker, error) {
	set, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	t := &Tracker{store: store, set: set}
	t.SetLessons(lessons)
	return t, nil
}

// SetLessons replaces the lesson list, e.g. after the catalog reloads.
func (t *Tracker) SetLessons(lessons []string) {
	known := make(map[string]bool, len(lessons))
	for _, id := range lessons {
		known[id] = true
	}
	t.mu.Lock()
	t.lessons = append([]string(nil), lessons...)
	t.known = known
	t.mu.Unlock()
}

// Complete marks lessonID completed.
func (t *Tracker) Complete(ctx context.Context, lessonID string) error {
	return t.update(ctx, func(set Set) error {
		if !t.known[lessonID] {
			return fmt.Errorf("%w: %s", ErrUnknownLesson, lessonID)
		}
		set.Add(lessonID)
		return nil
	})
}

// Uncomplete clears lessonID.
func (t *Tracker) Uncomplete(ctx context.Context, lessonID string) error {
	return t.update(ctx, func(set Set) error {
		set.Remove(lessonID)
		return nil
	})
}

// Reset clears all progress.
func (t *Tracker) Reset(ctx context.Context) error {
	return t.update(ctx, func(set Set) error {
		for id := range set {
			set.Remove(id)
		}
		return nil
	})
}

func (t *Tracker) update(ctx context.Context, change func(Set) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.set.Clone()
	if err := change(next); err != nil {
		return err
	}
	if err := t.store.Save(ctx, next); err != nil {
		log.Printf("[Progress] Save failed: %v", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}
	t.set = next
	return nil
}

// IsCompleted reports whether lessonID is completed.
func (t *Tracker) IsCompleted(lessonID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.set.Has(lessonID)
}

// Summary returns the completed lessons and the completion percentage,
// rounded to the nearest whole number.
func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Summary{Completed: make([]string, 0, len(t.set)), Total: len(t.lessons)}
	for _, id := range t.lessons {
		if t.set.Has(id) {
			s.Completed = append(s.Completed, id)
		}
	}
	s.Count = len(s.Completed)
	if s.Total > 0 {
		s.Percent = int(math.Round(float64(s.Count) / float64(s.Total) * 100))
	}
	return s
}
