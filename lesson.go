package qmdtutor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParseFile parses a lesson markdown file.
func ParseFile(path string) (*Lesson, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	return ParseBytes(content, absPath)
}

// ParseBytes parses lesson content. file is used for the default lesson
// ID and for error messages.
func ParseBytes(content []byte, file string) (*Lesson, error) {
	fm, blocks, html, err := ParseMarkdown(content)
	if err != nil {
		return nil, NewParseError(file, 1, err.Error()).WithSource(content)
	}

	id := fm.ID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}

	lesson := NewLesson(id)
	lesson.Title = fm.Title
	if lesson.Title == "" {
		lesson.Title = id
	}
	lesson.Description = fm.Description
	if fm.Difficulty != "" {
		lesson.Difficulty = fm.Difficulty
	}
	lesson.Duration = fm.Duration
	lesson.Order = fm.Order
	lesson.SourceFile = file
	lesson.HTML = html

	if err := lesson.buildExercises(blocks, content); err != nil {
		return nil, err
	}
	return lesson, nil
}

// buildExercises turns extracted blocks into exercises. Exercise blocks
// must come before the solution, hints and expected blocks that refer
// to them.
func (l *Lesson) buildExercises(blocks []*CodeBlock, content []byte) error {
	byID := make(map[string]*Exercise)
	definedAt := make(map[string]int)

	for _, block := range blocks {
		target := block.Target()

		if block.Kind == KindExercise {
			if target == "" {
				return NewParseError(l.SourceFile, block.Line, "Exercise block is missing an id").
					WithHint(fmt.Sprintf("Add id=... to the info string, e.g. ```%s exercise id=%s-1", block.Language, l.ID)).
					WithSource(content)
			}
			if line, dup := definedAt[target]; dup {
				return NewParseError(l.SourceFile, block.Line, fmt.Sprintf("Duplicate exercise id %q", target)).
					WithRelated(fmt.Sprintf("Exercise '%s' defined at line %d", target, line)).
					WithSource(content)
			}
			ex := &Exercise{
				ID:          target,
				LessonID:    l.ID,
				Title:       block.Metadata["title"],
				Description: block.Metadata["description"],
				Language:    block.Language,
				InitialCode: block.Content,
			}
			if ex.Title == "" {
				ex.Title = target
			}
			if ex.Language == "" {
				ex.Language = "markdown"
			}
			byID[target] = ex
			definedAt[target] = block.Line
			l.Exercises = append(l.Exercises, ex)
			continue
		}

		ex, ok := byID[target]
		if !ok {
			msg := fmt.Sprintf("%s block refers to unknown exercise %q", block.Kind, target)
			if target == "" {
				msg = fmt.Sprintf("%s block is missing for=<exercise id>", block.Kind)
			}
			return NewParseError(l.SourceFile, block.Line, msg).
				WithHint(availableExercises(l.Exercises)).
				WithSource(content)
		}

		switch block.Kind {
		case KindSolution:
			ex.Solution = block.Content
		case KindExpected:
			ex.ExpectedOutput = strings.TrimRight(block.Content, "\n")
		case KindHints:
			ex.Hints = append(ex.Hints, parseHints(block.Content)...)
		}
	}
	return nil
}

// parseHints reads one hint per non-empty line; list markers are dropped.
func parseHints(content string) []string {
	var hints []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "- "))
		if line != "" {
			hints = append(hints, line)
		}
	}
	return hints
}

func availableExercises(exercises []*Exercise) string {
	if len(exercises) == 0 {
		return "Define the exercise block before its solution, hints or expected output"
	}
	ids := make([]string, len(exercises))
	for i, ex := range exercises {
		ids[i] = ex.ID
	}
	return "Available exercises: " + strings.Join(ids, ", ")
}
