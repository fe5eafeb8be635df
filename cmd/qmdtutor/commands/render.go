package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/livetemplate/qmdtutor/internal/chunk"
	"github.com/livetemplate/qmdtutor/internal/render"
)

// RenderCommand renders a document file to HTML.
// Usage: qmdtutor render <file> [-o out.html]
func RenderCommand(args []string) error {
	var input, output string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if v, n, ok, err := flagValue(args, i, "--output", "-o"); ok {
			if err != nil {
				return err
			}
			output = v
			i += n
		} else if arg == "-" || !strings.HasPrefix(arg, "-") {
			input = arg
		} else {
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}
	if input == "" {
		return fmt.Errorf("usage: qmdtutor render <file|-> [-o out.html]")
	}

	text, err := readInput(input)
	if err != nil {
		return err
	}

	res := render.Transform(text)
	if !res.Success {
		return fmt.Errorf("render failed: %s", res.Error)
	}

	if output == "" {
		fmt.Print(res.Page)
		return nil
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(output, []byte(res.Page), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Printf("✓ Rendered %s -> %s\n", input, output)
	return nil
}

// ExecCommand runs a code chunk through the simulator.
// Usage: qmdtutor exec <file|-> [--lang r]
func ExecCommand(args []string) error {
	var input, lang string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if v, n, ok, err := flagValue(args, i, "--lang", "-l"); ok {
			if err != nil {
				return err
			}
			lang = v
			i += n
		} else if arg == "-" || !strings.HasPrefix(arg, "-") {
			input = arg
		} else {
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}
	if input == "" {
		return fmt.Errorf("usage: qmdtutor exec <file|-> [--lang r|python]")
	}
	if lang == "" {
		lang = languageForFile(input)
	}

	code, err := readInput(input)
	if err != nil {
		return err
	}

	res := chunk.NewExecutor(chunk.WithDelay(0)).Execute(context.Background(), code, lang)
	fmt.Println(res.Output)
	if !res.Success {
		return fmt.Errorf("execution failed")
	}
	return nil
}

// languageForFile guesses a chunk language from a file extension.
func languageForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return "python"
	default:
		return chunk.DefaultLanguage
	}
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
