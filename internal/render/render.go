// Package render simulates compiling a tutorial document into a
// standalone HTML page.
//
// A document is a metadata block delimited by "---" lines followed by a
// markdown-like body. The body is converted by an ordered list of text
// substitutions; there is no grammar. Code blocks tagged {r} get a
// simulated output panel from the chunk package.
package render

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Delimiter opens and closes the metadata block.
const Delimiter = "---"

// DefaultTitle is used when the metadata block has no title.
const DefaultTitle = "Untitled Document"

// DefaultDelay emulates the round trip to a remote renderer.
const DefaultDelay = 1000 * time.Millisecond

// Validation failures.
var (
	ErrMissingMetadata   = errors.New("missing metadata block, document must start with delimiter.")
	ErrMalformedMetadata = errors.New("malformed metadata block, delimiter must appear exactly as an opening and closing marker.")
)

var lineEndings = regexp.MustCompile(`\r\n?`)

// Result is the outcome of a render. Exactly one of Page and Error is set.
type Result struct {
	Page    string `json:"page,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func failure(msg string) Result {
	return Result{Error: msg}
}

// Metadata holds the key/value pairs of a document's metadata block.
type Metadata map[string]string

// Document is a parsed document before body conversion.
type Document struct {
	Metadata Metadata
	Body     string
}

// Parse validates text and splits it into metadata and body. The
// returned error is ErrMissingMetadata or ErrMalformedMetadata.
func Parse(text string) (*Document, error) {
	text = lineEndings.ReplaceAllString(text, "\n")
	if !strings.HasPrefix(strings.TrimSpace(text), Delimiter) {
		return nil, ErrMissingMetadata
	}

	parts := strings.Split(text, Delimiter)
	if len(parts) < 3 {
		return nil, ErrMalformedMetadata
	}

	return &Document{
		Metadata: parseMetadata(parts[1]),
		Body:     strings.TrimSpace(strings.Join(parts[2:], Delimiter)),
	}, nil
}

// parseMetadata splits each line on its first colon. Later keys win.
func parseMetadata(block string) Metadata {
	md := make(Metadata)
	for _, line := range strings.Split(block, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			value = value[1 : len(value)-1]
		}
		md[key] = value
	}
	return md
}

// Title returns the document title or DefaultTitle.
func (m Metadata) Title() string {
	if t := m["title"]; t != "" {
		return t
	}
	return DefaultTitle
}

// Transform renders text into a page without any artificial delay. It
// never panics; internal faults are reported as a failed Result.
func Transform(text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failure(fmt.Sprintf("render failed: %v", r))
		}
	}()

	doc, err := Parse(text)
	if err != nil {
		return failure(err.Error())
	}

	page, err := assemble(doc.Metadata, convertBody(doc.Body))
	if err != nil {
		return failure(err.Error())
	}
	return Result{Page: page, Success: true}
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithDelay sets the artificial latency applied before each render.
func WithDelay(d time.Duration) Option {
	return func(r *Renderer) {
		if d < 0 {
			d = 0
		}
		r.delay = d
	}
}

// Renderer wraps Transform with a simulated network delay. It holds no
// mutable state and is safe for concurrent use.
type Renderer struct {
	delay time.Duration
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{delay: DefaultDelay}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Delay returns the configured latency.
func (r *Renderer) Delay() time.Duration {
	return r.delay
}

// Render waits for the configured delay and then transforms text. A
// cancelled context yields a failed Result carrying ctx.Err().
func (r *Renderer) Render(ctx context.Context, text string) Result {
	if r.delay > 0 {
		t := time.NewTimer(r.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return failure(ctx.Err().Error())
		}
	} else if err := ctx.Err(); err != nil {
		return failure(err.Error())
	}
	return Transform(text)
}
