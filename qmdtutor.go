// Package qmdtutor provides the core library for an interactive tutorial
// on authoring Quarto-style documents: lessons written in markdown,
// interactive exercises embedded as fenced blocks, and the per-exercise
// state the browser UI drives.
package qmdtutor

// Difficulty grades a lesson.
type Difficulty string

const (
	Beginner     Difficulty = "Beginner"
	Intermediate Difficulty = "Intermediate"
	Advanced     Difficulty = "Advanced"
)

// Lesson represents a parsed tutorial lesson.
type Lesson struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Difficulty  Difficulty  `json:"difficulty"`
	Duration    string      `json:"duration"`
	Order       int         `json:"order"`
	SourceFile  string      `json:"-"` // Path of the source .md file (for error messages)
	HTML        string      `json:"html,omitempty"`
	Exercises   []*Exercise `json:"exercises"`
}

// Exercise is an editable document or code snippet attached to a lesson.
type Exercise struct {
	ID             string   `json:"id"`
	LessonID       string   `json:"lessonId"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Language       string   `json:"language"`
	InitialCode    string   `json:"initialCode"`
	Solution       string   `json:"solution,omitempty"`
	Hints          []string `json:"hints,omitempty"`
	ExpectedOutput string   `json:"expectedOutput,omitempty"`
}

// IsDocument reports whether the exercise is a whole document that runs
// through the renderer rather than a single code chunk.
func (e *Exercise) IsDocument() bool {
	switch e.Language {
	case "markdown", "yaml":
		return true
	}
	return false
}

// NewLesson creates a Lesson with the given ID.
func NewLesson(id string) *Lesson {
	return &Lesson{
		ID:         id,
		Difficulty: Beginner,
		Exercises:  make([]*Exercise, 0),
	}
}

// Exercise returns the lesson's exercise with the given ID.
func (l *Lesson) Exercise(id string) (*Exercise, bool) {
	for _, ex := range l.Exercises {
		if ex.ID == id {
			return ex, true
		}
	}
	return nil, false
}
