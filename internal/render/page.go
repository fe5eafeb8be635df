package render

import (
	"bytes"
	"fmt"
	"html/template"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, 'Open Sans', 'Helvetica Neue', sans-serif;
      line-height: 1.6;
      max-width: 800px;
      margin: 0 auto;
      padding: 2rem;
      color: #333;
    }
    h1, h2, h3 { margin-top: 1.5em; margin-bottom: 0.5em; }
    h1 { font-size: 2.2em; }
    h2 { font-size: 1.8em; }
    h3 { font-size: 1.5em; }
    pre { background: #f5f5f5; padding: 1em; overflow-x: auto; border-radius: 4px; }
    code { font-family: 'SFMono-Regular', Consolas, 'Liberation Mono', Menlo, monospace; }
    .title { font-size: 2.5em; margin-bottom: 0.2em; }
    .author, .date { color: #666; margin-top: 0; }
    .code-block { border: 1px solid #ddd; border-radius: 4px; margin: 1em 0; overflow: hidden; }
    .code-header { background: #eee; padding: 0.5em 1em; font-family: monospace; border-bottom: 1px solid #ddd; }
    .code-output { background: #f9f9f9; padding: 1em; border-top: 1px solid #ddd; white-space: pre-wrap; }
    img { max-width: 100%; height: auto; }
    table { border-collapse: collapse; width: 100%; margin: 1em 0; }
    th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
    th { background-color: #f2f2f2; }
  </style>
</head>
<body>
  <header>
    <h1 class="title">{{.Title}}</h1>
    {{- if .Author}}
    <p class="author">{{.Author}}</p>
    {{- end}}
    {{- if .Date}}
    <p class="date">{{.Date}}</p>
    {{- end}}
  </header>
  <main>
{{.Body}}
  </main>
</body>
</html>
`))

type pageData struct {
	Title  string
	Author string
	Date   string
	Body   template.HTML
}

// assemble wraps converted body markup in the standalone page scaffold.
func assemble(md Metadata, body string) (string, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, pageData{
		Title:  md.Title(),
		Author: md["author"],
		Date:   md["date"],
		Body:   template.HTML(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to assemble page: %w", err)
	}
	return buf.String(), nil
}
