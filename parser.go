package qmdtutor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Frontmatter represents the YAML frontmatter at the top of a lesson file.
type Frontmatter struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Difficulty  Difficulty `yaml:"difficulty"` // Beginner, Intermediate, Advanced
	Duration    string     `yaml:"duration"`   // e.g. "10 min"
	Order       int        `yaml:"order"`
}

// Block kinds recognized in a fenced code block info string.
const (
	KindExercise = "exercise"
	KindSolution = "solution"
	KindHints    = "hints"
	KindExpected = "expected"
)

// CodeBlock represents a tutorial block extracted from markdown.
type CodeBlock struct {
	Kind     string            // exercise, solution, hints, expected
	Language string            // "markdown", "r", "python", ...
	Metadata map[string]string // id, for, title, description
	Content  string
	Line     int // Line number of the opening fence in the source file
}

// Target returns the exercise ID the block belongs to.
func (b *CodeBlock) Target() string {
	if b.Kind == KindExercise {
		return b.Metadata["id"]
	}
	return b.Metadata["for"]
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
}

// ParseMarkdown parses a lesson file, extracts its frontmatter and
// tutorial blocks, and renders the remaining prose to HTML.
func ParseMarkdown(content []byte) (*Frontmatter, []*CodeBlock, string, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))

	frontmatter, remaining, err := extractFrontmatter(content)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	md := newMarkdown()
	doc := md.Parser().Parse(text.NewReader(remaining))

	lineOffset := bytes.Count(content[:len(content)-len(remaining)], []byte("\n"))

	var blocks []*CodeBlock
	var toRemove []ast.Node
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if block := parseCodeBlock(fenced, remaining, lineOffset); block != nil {
			blocks = append(blocks, block)
			toRemove = append(toRemove, n)
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to walk AST: %w", err)
	}

	for _, node := range toRemove {
		if parent := node.Parent(); parent != nil {
			parent.RemoveChild(parent, node)
		}
	}

	var htmlBuf bytes.Buffer
	if err := md.Renderer().Render(&htmlBuf, remaining, doc); err != nil {
		return nil, nil, "", fmt.Errorf("failed to render HTML: %w", err)
	}

	return frontmatter, blocks, htmlBuf.String(), nil
}

// extractFrontmatter splits YAML frontmatter from the rest of content.
// Content without frontmatter yields a zero Frontmatter.
func extractFrontmatter(content []byte) (*Frontmatter, []byte, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return &Frontmatter{}, content, nil
	}

	rest := content[4:]
	var yamlContent, remaining []byte
	if bytes.HasPrefix(rest, []byte("---\n")) {
		remaining = rest[4:]
	} else {
		endIdx := bytes.Index(rest, []byte("\n---\n"))
		if endIdx == -1 {
			if !bytes.HasSuffix(rest, []byte("\n---")) {
				return nil, nil, fmt.Errorf("unclosed frontmatter")
			}
			endIdx = len(rest) - 4
			yamlContent, remaining = rest[:endIdx], nil
		} else {
			yamlContent, remaining = rest[:endIdx], rest[endIdx+5:]
		}
	}

	var fm Frontmatter
	if err := yaml.Unmarshal(yamlContent, &fm); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &fm, remaining, nil
}

// parseCodeBlock returns the tutorial block for a fenced code block, or
// nil for ordinary code. Info string format:
//
//	markdown exercise id=tables title="Create Custom Tables"
//	markdown solution for=tables
//	hints for=tables
func parseCodeBlock(fenced *ast.FencedCodeBlock, source []byte, lineOffset int) *CodeBlock {
	if fenced.Info == nil {
		return nil
	}
	parts := splitInfo(string(fenced.Info.Segment.Value(source)))
	if len(parts) == 0 {
		return nil
	}

	block := &CodeBlock{Metadata: make(map[string]string)}
	for i, part := range parts {
		if key, value, ok := strings.Cut(part, "="); ok {
			block.Metadata[key] = value
			continue
		}
		switch part {
		case KindExercise, KindSolution, KindHints, KindExpected:
			block.Kind = part
		default:
			if i == 0 {
				block.Language = part
			}
		}
	}
	if block.Kind == "" {
		return nil
	}

	var buf bytes.Buffer
	lines := fenced.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
	}
	block.Content = buf.String()
	block.Line = lineOffset + bytes.Count(source[:fenced.Info.Segment.Start], []byte("\n")) + 1

	return block
}

// splitInfo splits an info string on whitespace, keeping double-quoted
// values together and stripping their quotes.
func splitInfo(info string) []string {
	var parts []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}
	for _, r := range info {
		switch {
		case r == '"':
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return parts
}
