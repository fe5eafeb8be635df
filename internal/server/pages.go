package server

import (
	"bytes"
	"html/template"
	"log"
	"net/http"

	"github.com/livetemplate/qmdtutor"
	"github.com/livetemplate/qmdtutor/internal/assets"
	"github.com/livetemplate/qmdtutor/internal/progress"
)

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{block "title" .}}{{.Site}}{{end}}</title>
<link rel="stylesheet" href="/assets/tutor.css">
<script src="/assets/tutor.js" defer></script>
</head>
<body>
<main>
{{template "content" .}}
</main>
</body>
</html>{{end}}`

const indexTemplate = `{{define "content"}}
<section class="hero">
  <h1>{{.Site}}</h1>
  <p>{{.Description}}</p>
  <div class="progress">
    <div class="progress-label"><span>Your progress</span><span>{{.Progress.Count}} of {{.Progress.Total}} lessons ({{.Progress.Percent}}%)</span></div>
    <div class="progress-bar"><span style="width: {{.Progress.Percent}}%"></span></div>
  </div>
  <div class="actions" style="justify-content:center">
    <a href="/playground">Open the playground</a>
    {{if .Progress.Count}}<button data-reset-progress>Reset progress</button>{{end}}
  </div>
</section>
<section class="lesson-grid">
{{range .Lessons}}
  <a class="lesson-card{{if .Completed}} completed{{end}}" href="/lessons/{{.ID}}">
    <h3>{{.Title}}</h3>
    <p>{{.Description}}</p>
    <div class="meta">
      <span class="badge">{{.Difficulty}}</span>
      {{with .Duration}}<span>{{.}}</span>{{end}}
      {{if .ExerciseCount}}<span>{{.ExerciseCount}} exercise{{if gt .ExerciseCount 1}}s{{end}}</span>{{end}}
      {{if .Completed}}<span class="badge ok">Completed</span>{{end}}
    </div>
  </a>
{{else}}
  <p>No lessons found.</p>
{{end}}
</section>
{{end}}`

const lessonTemplate = `{{define "title"}}{{.Lesson.Title}} - {{.Site}}{{end}}
{{define "content"}}
<p><a href="/">&larr; Back to Lessons</a></p>
<header>
  <h1>{{.Lesson.Title}}</h1>
  <div class="meta">
    <span class="badge">{{.Lesson.Difficulty}}</span>
    {{with .Lesson.Duration}}<span>{{.}}</span>{{end}}
    <span class="badge ok" data-lesson-status{{if not .Completed}} hidden{{end}}>Completed</span>
  </div>
</header>
<article class="prose">{{.HTML}}</article>
{{range .Lesson.Exercises}}
<section class="exercise" data-exercise-id="{{.ID}}">
  <h2>{{.Title}} <span class="badge ok done" hidden>Completed</span></h2>
  {{with .Description}}<p>{{.}}</p>{{end}}
  <div class="hints"></div>
  <div class="exercise-grid">
    <div>
      <h4>Your Code ({{.Language}})</h4>
      <textarea spellcheck="false">{{.InitialCode}}</textarea>
      <div class="actions">
        <button class="primary" data-action="run">Run</button>
        {{if .Hints}}<button data-action="hint">Show Hint</button>{{end}}
        {{if .Solution}}<button data-action="solution">Show Solution</button>{{end}}
        <button data-action="reset">Reset</button>
      </div>
      {{if .Solution}}<pre class="solution" hidden><code></code></pre>{{end}}
    </div>
    <div>
      <h4>Output</h4>
      <pre class="output"></pre>
      {{if .IsDocument}}<iframe title="Preview" sandbox="allow-same-origin" hidden></iframe>{{end}}
    </div>
  </div>
</section>
{{end}}
<nav class="lesson-nav">
  <div>{{with .Prev}}<a href="/lessons/{{.ID}}">&larr; {{.Title}}</a>{{end}}</div>
  <button class="primary" data-complete-lesson="{{.Lesson.ID}}"{{with .Next}} data-next="{{.ID}}"{{end}}>
    {{if .Next}}Complete &amp; Continue{{else}}Complete Lesson{{end}}
  </button>
  <div>{{with .Next}}<a href="/lessons/{{.ID}}">{{.Title}} &rarr;</a>{{end}}</div>
</nav>
{{end}}`

const playgroundTemplate = `{{define "title"}}Playground - {{.Site}}{{end}}
{{define "content"}}
<p><a href="/">&larr; Back to Lessons</a></p>
<h1>Playground</h1>
<p>Write a document and render it.</p>
<section class="exercise" data-playground>
  <div class="exercise-grid">
    <div>
      <textarea spellcheck="false">{{.Sample}}</textarea>
      <div class="actions"><button class="primary">Render</button></div>
    </div>
    <div>
      <pre class="output"></pre>
      <iframe title="Preview" sandbox="allow-same-origin"></iframe>
    </div>
  </div>
</section>
{{end}}`

// playgroundSample is the document the playground opens with.
const playgroundSample = `---
title: "My First Document"
author: "Your Name"
format: html
---

## Introduction

This is **bold** and this is *italic*.

` + "```{r}\nsummary(cars)\n```\n"

// pageRenderer holds one parsed template set per page, each sharing the
// layout.
type pageRenderer struct {
	pages map[string]*template.Template
}

func newPageRenderer() *pageRenderer {
	layout := template.Must(template.New("layout").Parse(layoutTemplate))
	pr := &pageRenderer{pages: make(map[string]*template.Template)}
	for name, body := range map[string]string{
		"index":      indexTemplate,
		"lesson":     lessonTemplate,
		"playground": playgroundTemplate,
	} {
		pr.pages[name] = template.Must(template.Must(layout.Clone()).Parse(body))
	}
	return pr
}

// render executes a page into a buffer first so a template error becomes
// a 500 instead of a truncated page.
func (pr *pageRenderer) render(w http.ResponseWriter, name string, data interface{}) {
	var buf bytes.Buffer
	if err := pr.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("[Server] Template %s failed: %v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[Server] Error writing page: %v", err)
	}
}

type indexPage struct {
	Site        string
	Description string
	Lessons     []lessonSummary
	Progress    progress.Summary
}

type lessonPage struct {
	Site      string
	Lesson    *qmdtutor.Lesson
	HTML      template.HTML
	Completed bool
	Prev      *qmdtutor.Lesson
	Next      *qmdtutor.Lesson
}

type playgroundPage struct {
	Site   string
	Sample string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	lessons := s.catalog.Lessons()
	data := indexPage{
		Site:        s.config.Title,
		Description: s.config.Description,
		Lessons:     make([]lessonSummary, 0, len(lessons)),
		Progress:    s.tracker.Summary(),
	}
	for _, l := range lessons {
		data.Lessons = append(data.Lessons, s.summarize(l))
	}
	s.pages.render(w, "index", data)
}

func (s *Server) handleLessonPage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	lesson, ok := s.catalog.Lesson(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	prev, next := s.catalog.Neighbors(id)
	s.pages.render(w, "lesson", lessonPage{
		Site:   s.config.Title,
		Lesson: lesson,
		// Lesson prose comes from trusted lesson files.
		HTML:      template.HTML(lesson.HTML),
		Completed: s.tracker.IsCompleted(id),
		Prev:      prev,
		Next:      next,
	})
}

func (s *Server) handlePlayground(w http.ResponseWriter, r *http.Request) {
	s.pages.render(w, "playground", playgroundPage{Site: s.config.Title, Sample: playgroundSample})
}

func assetHandler() http.Handler {
	return http.StripPrefix("/assets/", http.FileServerFS(assets.ClientFS()))
}
