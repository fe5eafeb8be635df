package qmdtutor

import (
	"fmt"
	"os"
	"strings"
)

// ParseError describes a lesson authoring mistake with source context.
type ParseError struct {
	File    string // Source file path
	Line    int    // Line number (1-indexed)
	Message string // Error message
	Hint    string // Helpful suggestion
	Related string // Related information (e.g., "Exercise 'x' defined at line 20")

	source []byte // File content, when the file is not on disk (embedded lessons)
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return e.Format()
}

// Format returns the error with surrounding source lines.
func (e *ParseError) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "❌ Error in %s\n\n", e.File)
	fmt.Fprintf(&b, "Line %d: %s\n", e.Line, e.Message)
	b.WriteString(e.codeContext())

	if e.Hint != "" {
		fmt.Fprintf(&b, "\n💡 Tip: %s\n", e.Hint)
	}
	if e.Related != "" {
		fmt.Fprintf(&b, "\n🔗 %s\n", e.Related)
	}

	return b.String()
}

// codeContext shows two lines either side of the error line.
func (e *ParseError) codeContext() string {
	content := e.source
	if content == nil {
		if e.File == "" {
			return ""
		}
		data, err := os.ReadFile(e.File)
		if err != nil {
			return ""
		}
		content = data
	}

	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if e.Line < 1 || e.Line > len(lines) {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	for i := max(1, e.Line-2); i <= min(len(lines), e.Line+2); i++ {
		marker := " "
		if i == e.Line {
			marker = ">"
		}
		fmt.Fprintf(&b, "%s %3d | %s\n", marker, i, lines[i-1])
	}
	return b.String()
}

// NewParseError creates a new ParseError.
func NewParseError(file string, line int, message string) *ParseError {
	return &ParseError{
		File:    file,
		Line:    line,
		Message: message,
	}
}

// WithHint adds a helpful hint to the error.
func (e *ParseError) WithHint(hint string) *ParseError {
	e.Hint = hint
	return e
}

// WithRelated adds related information to the error.
func (e *ParseError) WithRelated(related string) *ParseError {
	e.Related = related
	return e
}

// WithSource attaches file content used to print context lines.
func (e *ParseError) WithSource(content []byte) *ParseError {
	e.source = content
	return e
}
