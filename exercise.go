package qmdtutor

import (
	"context"

	"github.com/livetemplate/qmdtutor/internal/chunk"
	"github.com/livetemplate/qmdtutor/internal/render"
)

// DocumentRendered is the output reported for a successful document run.
const DocumentRendered = "Document rendered successfully"

// RunResult is the outcome of running an exercise.
type RunResult struct {
	Output  string `json:"output"`
	Success bool   `json:"success"`
	Page    string `json:"page,omitempty"` // Rendered page for document exercises
}

// Runner runs exercise code: documents through the renderer, code chunks
// through the executor.
type Runner struct {
	Renderer *render.Renderer
	Executor *chunk.Executor
}

// NewRunner creates a Runner. Nil arguments get the default delays.
func NewRunner(r *render.Renderer, e *chunk.Executor) *Runner {
	if r == nil {
		r = render.New()
	}
	if e == nil {
		e = chunk.NewExecutor()
	}
	return &Runner{Renderer: r, Executor: e}
}

// Run runs code as the given exercise.
func (r *Runner) Run(ctx context.Context, ex *Exercise, code string) RunResult {
	if ex.IsDocument() {
		res := r.Renderer.Render(ctx, code)
		if !res.Success {
			return RunResult{Output: res.Error}
		}
		return RunResult{Output: DocumentRendered, Success: true, Page: res.Page}
	}

	res := r.Executor.Execute(ctx, code, ex.Language)
	return RunResult{Output: res.Output, Success: res.Success}
}

// Check reports whether a run matches the exercise's expected output.
// Exercises without expected output pass on any successful run.
func (ex *Exercise) Check(res RunResult) bool {
	if !res.Success {
		return false
	}
	return ex.ExpectedOutput == "" || res.Output == ex.ExpectedOutput
}
