// Package chunk simulates execution of code chunks embedded in tutorial
// documents. Nothing is actually executed: the code text is matched
// against a short ordered list of recognizable call shapes and a canned
// result is returned.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultLanguage is used when a chunk carries no language tag.
const DefaultLanguage = "r"

// SummaryOutput is the canned result for summary() and str() calls.
const SummaryOutput = "Data Summary:\n" +
	"   Min. 1st Qu.  Median    Mean 3rd Qu.    Max. \n" +
	"  1.00    8.00   15.00   15.49   23.00   30.00"

// Simulated failures.
var (
	ErrRHalted      = errors.New("R error: execution halted")
	ErrPythonHalted = errors.New("Python error: execution halted")
)

var (
	libraryCall = regexp.MustCompile(`library\(([^)]+)\)`)
	printCall   = regexp.MustCompile(`print\(([^)]+)\)`)
	quoteChars  = regexp.MustCompile("['\"`]")
)

// simulator produces the canned output for one language.
type simulator func(code string) (string, error)

var simulators = map[string]simulator{
	"r":      simulateR,
	"python": simulatePython,
}

// Simulate returns the canned output for code written in language.
// The first matching rule wins. Languages without rules always succeed.
func Simulate(code, language string) (string, error) {
	if language == "" {
		language = DefaultLanguage
	}
	sim, ok := simulators[language]
	if !ok {
		return fmt.Sprintf("%s code executed successfully", language), nil
	}
	return sim(code)
}

func simulateR(code string) (string, error) {
	switch {
	case strings.Contains(code, "summary(") || strings.Contains(code, "str("):
		return SummaryOutput, nil
	case strings.Contains(code, "plot("):
		return "[Plot output would appear here]", nil
	case strings.Contains(code, "ggplot("):
		return "[ggplot visualization would appear here]", nil
	case strings.Contains(code, "library("):
		name := "package"
		if m := libraryCall.FindStringSubmatch(code); m != nil {
			name = m[1]
		}
		return fmt.Sprintf("Loading required package: %s\nPackage '%s' loaded successfully", name, name), nil
	case strings.Contains(code, "error") || strings.Contains(code, "stop("):
		return "", ErrRHalted
	default:
		return "R code executed successfully", nil
	}
}

func simulatePython(code string) (string, error) {
	switch {
	case strings.Contains(code, "print("):
		arg := "Hello, world!"
		if m := printCall.FindStringSubmatch(code); m != nil {
			arg = m[1]
		}
		return quoteChars.ReplaceAllString(arg, ""), nil
	case strings.Contains(code, "import"):
		return "Module imported successfully", nil
	case strings.Contains(code, "error") || strings.Contains(code, "raise "):
		return "", ErrPythonHalted
	default:
		return "Python code executed successfully", nil
	}
}

// Result is the outcome of a simulated execution.
type Result struct {
	Output  string `json:"output"`
	Success bool   `json:"success"`
}

// Option configures an Executor.
type Option func(*Executor)

// WithDelay sets the artificial latency applied before each result.
func WithDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d < 0 {
			d = 0
		}
		e.delay = d
	}
}

// DefaultDelay emulates the round trip to a remote kernel.
const DefaultDelay = 800 * time.Millisecond

// Executor runs Simulate behind an artificial delay. It holds no mutable
// state, so a single Executor may serve any number of concurrent calls.
type Executor struct {
	delay time.Duration
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{delay: DefaultDelay}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Delay returns the configured latency.
func (e *Executor) Delay() time.Duration {
	return e.delay
}

// Execute simulates running code. It never returns an error: failures,
// including a cancelled context, are reported with Success=false and the
// message as Output.
func (e *Executor) Execute(ctx context.Context, code, language string) (res Result) {
	if err := wait(ctx, e.delay); err != nil {
		return Result{Output: err.Error()}
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{Output: fmt.Sprintf("%v", r)}
		}
	}()

	out, err := Simulate(code, language)
	if err != nil {
		return Result{Output: err.Error()}
	}
	return Result{Output: out, Success: true}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
