package qmdtutor

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseFrontmatter(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantFM   Frontmatter
		wantBody string
	}{
		{
			name: "complete frontmatter",
			content: `---
id: tables
title: "Tables"
description: Create beautiful tables
difficulty: Intermediate
duration: 12 min
order: 7
---

# Tables`,
			wantFM: Frontmatter{
				ID:          "tables",
				Title:       "Tables",
				Description: "Create beautiful tables",
				Difficulty:  Intermediate,
				Duration:    "12 min",
				Order:       7,
			},
			wantBody: "# Tables",
		},
		{
			name: "no frontmatter",
			content: `# Hello World

Some content`,
			wantBody: "# Hello World\n\nSome content",
		},
		{
			name:     "empty frontmatter",
			content:  "---\n---\nContent",
			wantBody: "Content",
		},
		{
			name:    "closing delimiter at end of file",
			content: "---\ntitle: Only\n---",
			wantFM:  Frontmatter{Title: "Only"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, remaining, err := extractFrontmatter([]byte(tt.content))
			if err != nil {
				t.Fatalf("extractFrontmatter() error = %v", err)
			}
			if *fm != tt.wantFM {
				t.Errorf("Frontmatter = %+v, want %+v", *fm, tt.wantFM)
			}
			body := strings.TrimSpace(string(remaining))
			if body != tt.wantBody {
				t.Errorf("Body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestParseFrontmatterErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unclosed", "---\ntitle: x\n\n# Body"},
		{"invalid yaml", "---\ntitle: [unclosed\n---\n"},
		{"wrong type", "---\norder: first\n---\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := extractFrontmatter([]byte(tt.content)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSplitInfo(t *testing.T) {
	tests := []struct {
		info string
		want []string
	}{
		{"markdown exercise id=a", []string{"markdown", "exercise", "id=a"}},
		{`r exercise id=a title="Load a Package"`, []string{"r", "exercise", "id=a", "title=Load a Package"}},
		{"  hints\tfor=a  ", []string{"hints", "for=a"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.info, func(t *testing.T) {
			got := splitInfo(tt.info)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitInfo(%q) = %q, want %q", tt.info, got, tt.want)
			}
		})
	}
}

func TestParseMarkdownBlocks(t *testing.T) {
	content := "---\nid: demo\n---\n\n# Demo\n\n" +
		"```markdown exercise id=a title=\"First\"\n---\ntitle: x\n---\n```\n\n" +
		"```hints for=a\none\ntwo\n```\n\n" +
		"```go\nfmt.Println(\"plain code stays\")\n```\n"

	fm, blocks, html, err := ParseMarkdown([]byte(content))
	if err != nil {
		t.Fatalf("ParseMarkdown() error = %v", err)
	}
	if fm.ID != "demo" {
		t.Errorf("ID = %q, want demo", fm.ID)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}

	ex := blocks[0]
	if ex.Kind != KindExercise || ex.Language != "markdown" || ex.Target() != "a" {
		t.Errorf("exercise block = %+v", ex)
	}
	if ex.Metadata["title"] != "First" {
		t.Errorf("title = %q, want First", ex.Metadata["title"])
	}
	if ex.Content != "---\ntitle: x\n---\n" {
		t.Errorf("Content = %q", ex.Content)
	}
	if ex.Line != 7 {
		t.Errorf("exercise Line = %d, want 7", ex.Line)
	}

	hints := blocks[1]
	if hints.Kind != KindHints || hints.Language != "" || hints.Target() != "a" {
		t.Errorf("hints block = %+v", hints)
	}
	if hints.Line != 13 {
		t.Errorf("hints Line = %d, want 13", hints.Line)
	}

	if !strings.Contains(html, `<h1 id="demo">Demo</h1>`) {
		t.Errorf("heading missing from HTML: %s", html)
	}
	if strings.Contains(html, "title: x") || strings.Contains(html, "one\ntwo") {
		t.Errorf("tutorial blocks should be removed from HTML: %s", html)
	}
	if !strings.Contains(html, "plain code stays") {
		t.Errorf("ordinary code block should stay in HTML: %s", html)
	}
}

func TestParseMarkdownCRLF(t *testing.T) {
	content := "---\r\ntitle: Windows\r\n---\r\n\r\nText\r\n"
	fm, _, html, err := ParseMarkdown([]byte(content))
	if err != nil {
		t.Fatalf("ParseMarkdown() error = %v", err)
	}
	if fm.Title != "Windows" {
		t.Errorf("Title = %q, want Windows", fm.Title)
	}
	if strings.Contains(html, "\r") {
		t.Errorf("HTML should not contain carriage returns: %q", html)
	}
}
