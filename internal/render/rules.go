package render

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/livetemplate/qmdtutor/internal/chunk"
)

// Precompiled substitution patterns. Each rule is applied once, in order.
var (
	h1Pattern     = regexp.MustCompile(`(?m)^# (.*)$`)
	h2Pattern     = regexp.MustCompile(`(?m)^## (.*)$`)
	h3Pattern     = regexp.MustCompile(`(?m)^### (.*)$`)
	strongPattern = regexp.MustCompile(`\*\*(.*)\*\*`)
	emPattern     = regexp.MustCompile(`\*(.*)\*`)
	bulletPattern = regexp.MustCompile(`^- (.*)$`)
	numberPattern = regexp.MustCompile(`^\d+\. (.*)$`)
	linkPattern   = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	plainPattern  = regexp.MustCompile(`(?m)^([^<\n].*)$`)

	taggedFence   = regexp.MustCompile("```\\{([^}\\n]*)\\}([\\s\\S]*?)```")
	untaggedFence = regexp.MustCompile("```([\\s\\S]*?)```")
	fenceToken    = regexp.MustCompile(`<\x00fence:(\d+)\x00>`)
	infoString    = regexp.MustCompile(`^[\w+.#-]*$`)
)

// ExecutableLabel is the only code block label whose body is simulated.
const ExecutableLabel = "r"

// fence is a fenced region lifted out of the body before the line rules run.
type fence struct {
	label  string
	tagged bool
	code   string
}

// convertBody turns document body text into page markup.
func convertBody(body string) string {
	body, fences := liftFences(body)

	body = h1Pattern.ReplaceAllString(body, "<h1>$1</h1>")
	body = h2Pattern.ReplaceAllString(body, "<h2>$1</h2>")
	body = h3Pattern.ReplaceAllString(body, "<h3>$1</h3>")
	body = strongPattern.ReplaceAllString(body, "<strong>$1</strong>")
	body = emPattern.ReplaceAllString(body, "<em>$1</em>")
	body = wrapListRuns(body, bulletPattern, "ul")
	body = wrapListRuns(body, numberPattern, "ol")
	body = linkPattern.ReplaceAllString(body, `<a href="$2">$1</a>`)
	body = plainPattern.ReplaceAllString(body, "<p>$1</p>")

	return restoreFences(body, fences)
}

// liftFences replaces every fenced block with a placeholder line so the
// line rules never see code text. Tagged fences are taken first.
func liftFences(body string) (string, []fence) {
	// NUL never appears in document text, so placeholders cannot collide
	// with anything the author wrote.
	body = strings.ReplaceAll(body, "\x00", "")

	var fences []fence
	placeholder := func(f fence) string {
		fences = append(fences, f)
		return fmt.Sprintf("\n<\x00fence:%d\x00>\n", len(fences)-1)
	}

	body = taggedFence.ReplaceAllStringFunc(body, func(m string) string {
		sub := taggedFence.FindStringSubmatch(m)
		return placeholder(fence{
			label:  strings.TrimSpace(sub[1]),
			tagged: true,
			code:   strings.TrimSpace(sub[2]),
		})
	})
	body = untaggedFence.ReplaceAllStringFunc(body, func(m string) string {
		return placeholder(fence{code: strings.TrimSpace(untaggedCode(untaggedFence.FindStringSubmatch(m)[1]))})
	})
	return body, fences
}

// untaggedCode drops a bare-word info string from the opening fence line.
// A fence on a single line is all code.
func untaggedCode(inner string) string {
	first, rest, ok := strings.Cut(inner, "\n")
	if ok && infoString.MatchString(strings.TrimSpace(first)) {
		return rest
	}
	return inner
}

func restoreFences(body string, fences []fence) string {
	if len(fences) == 0 {
		return body
	}
	return fenceToken.ReplaceAllStringFunc(body, func(m string) string {
		idx, err := strconv.Atoi(fenceToken.FindStringSubmatch(m)[1])
		if err != nil || idx >= len(fences) {
			return m
		}
		return fences[idx].html()
	})
}

func (f fence) html() string {
	code := html.EscapeString(f.code)
	if !f.tagged {
		return "<pre><code>" + code + "</code></pre>"
	}

	var b strings.Builder
	b.WriteString(`<div class="code-block"><div class="code-header">`)
	b.WriteString(html.EscapeString(f.label))
	b.WriteString(`</div><pre><code>`)
	b.WriteString(code)
	b.WriteString(`</code></pre>`)
	if f.label == ExecutableLabel {
		if out, err := chunk.Simulate(f.code, ExecutableLabel); err == nil {
			b.WriteString(`<div class="code-output">`)
			b.WriteString(html.EscapeString(out))
			b.WriteString(`</div>`)
		}
	}
	b.WriteString(`</div>`)
	return b.String()
}

// wrapListRuns converts lines matching item into list items and wraps
// each run of adjacent items in a single container element.
func wrapListRuns(body string, item *regexp.Regexp, container string) string {
	lines := strings.Split(body, "\n")
	open, end := "<"+container+">", "</"+container+">"

	for i := 0; i < len(lines); {
		if !item.MatchString(lines[i]) {
			i++
			continue
		}
		start := i
		for i < len(lines) && item.MatchString(lines[i]) {
			lines[i] = item.ReplaceAllString(lines[i], "<li>$1</li>")
			i++
		}
		lines[start] = open + lines[start]
		lines[i-1] += end
	}
	return strings.Join(lines, "\n")
}
