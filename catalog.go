package qmdtutor

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

//go:embed lessons/*.md
var bundledFS embed.FS

// BundledLessons returns the lessons shipped with the binary.
func BundledLessons() fs.FS {
	sub, err := fs.Sub(bundledFS, "lessons")
	if err != nil {
		panic(err)
	}
	return sub
}

// Catalog is the ordered set of lessons loaded from a directory tree.
// Reload swaps the contents atomically; readers never see a partial set.
type Catalog struct {
	fsys fs.FS
	root string // Prefix for file names in errors

	mu        sync.RWMutex
	lessons   []*Lesson
	byID      map[string]*Lesson
	exercises map[string]*Exercise
}

// LoadDir loads every lesson file under dir.
func LoadDir(dir string) (*Catalog, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if info, err := os.Stat(absDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("lessons directory does not exist: %s", dir)
	}
	return LoadFS(os.DirFS(absDir), absDir)
}

// LoadBundled loads the embedded lessons.
func LoadBundled() (*Catalog, error) {
	return LoadFS(BundledLessons(), "lessons")
}

// LoadFS loads every lesson file in fsys. root prefixes file names in
// error messages.
func LoadFS(fsys fs.FS, root string) (*Catalog, error) {
	c := &Catalog{fsys: fsys, root: root}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads all lesson files. On error the previous lessons stay
// in place.
func (c *Catalog) Reload() error {
	var lessons []*Lesson
	byID := make(map[string]*Lesson)
	exercises := make(map[string]*Exercise)

	err := fs.WalkDir(c.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != "." && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if path.Ext(name) != ".md" || strings.HasPrefix(name, "_") {
			return nil
		}

		content, err := fs.ReadFile(c.fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		lesson, err := ParseBytes(content, c.fileName(p))
		if err != nil {
			return err
		}

		if prev, dup := byID[lesson.ID]; dup {
			return NewParseError(lesson.SourceFile, 1, fmt.Sprintf("Duplicate lesson id %q", lesson.ID)).
				WithRelated("Also defined in " + prev.SourceFile).
				WithSource(content)
		}
		for _, ex := range lesson.Exercises {
			if other, dup := exercises[ex.ID]; dup {
				return NewParseError(lesson.SourceFile, 1, fmt.Sprintf("Exercise id %q is already used by lesson %q", ex.ID, other.LessonID)).
					WithHint("Exercise ids must be unique across all lessons").
					WithSource(content)
			}
			exercises[ex.ID] = ex
		}

		byID[lesson.ID] = lesson
		lessons = append(lessons, lesson)
		return nil
	})
	if err != nil {
		return err
	}

	sort.SliceStable(lessons, func(i, j int) bool {
		if lessons[i].Order != lessons[j].Order {
			return lessons[i].Order < lessons[j].Order
		}
		return lessons[i].ID < lessons[j].ID
	})

	c.mu.Lock()
	c.lessons = lessons
	c.byID = byID
	c.exercises = exercises
	c.mu.Unlock()
	return nil
}

func (c *Catalog) fileName(p string) string {
	if c.root == "" {
		return p
	}
	return filepath.Join(c.root, filepath.FromSlash(p))
}

// Lessons returns all lessons in display order.
func (c *Catalog) Lessons() []*Lesson {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Lesson, len(c.lessons))
	copy(out, c.lessons)
	return out
}

// Len returns the number of lessons.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lessons)
}

// Lesson returns the lesson with the given ID.
func (c *Catalog) Lesson(id string) (*Lesson, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.byID[id]
	return l, ok
}

// Exercise returns the exercise with the given ID from any lesson.
func (c *Catalog) Exercise(id string) (*Exercise, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ex, ok := c.exercises[id]
	return ex, ok
}

// Neighbors returns the lessons before and after id in display order.
// Either may be nil.
func (c *Catalog) Neighbors(id string) (prev, next *Lesson) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, l := range c.lessons {
		if l.ID != id {
			continue
		}
		if i > 0 {
			prev = c.lessons[i-1]
		}
		if i < len(c.lessons)-1 {
			next = c.lessons[i+1]
		}
		break
	}
	return prev, next
}

// IDs returns all lesson IDs in display order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, len(c.lessons))
	for i, l := range c.lessons {
		ids[i] = l.ID
	}
	return ids
}
