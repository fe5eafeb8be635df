package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/livetemplate/qmdtutor"
	"github.com/livetemplate/qmdtutor/internal/chunk"
	"github.com/livetemplate/qmdtutor/internal/config"
	"github.com/livetemplate/qmdtutor/internal/render"
)

// LessonsCommand lists the lessons in a directory, or the bundled ones.
func LessonsCommand(args []string) error {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	}

	catalog, lessonDir, err := loadCatalog(config.DefaultConfig(), ".", dir)
	if err != nil {
		return err
	}
	if lessonDir == "" {
		lessonDir = "bundled"
	}

	fmt.Printf("📚 %d lessons (%s)\n\n", catalog.Len(), lessonDir)
	for i, l := range catalog.Lessons() {
		fmt.Printf("%2d. %-16s %-32s %-12s %s\n", i+1, l.ID, l.Title, l.Difficulty, l.Duration)
		for _, ex := range l.Exercises {
			fmt.Printf("      - %s [%s] %s\n", ex.ID, ex.Language, ex.Title)
		}
	}
	return nil
}

// ValidateCommand parses every lesson file under a directory and runs
// each exercise's solution against its expected output.
func ValidateCommand(args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", dir)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	fmt.Printf("🔍 Validating lessons in: %s\n\n", absDir)

	runner := qmdtutor.NewRunner(render.New(render.WithDelay(0)), chunk.NewExecutor(chunk.WithDelay(0)))

	var totalFiles, validFiles int
	var fileErrors []fileValidationError

	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != absDir && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".md" || strings.HasPrefix(name, "_") {
			return nil
		}

		relPath, err := filepath.Rel(absDir, path)
		if err != nil {
			relPath = path
		}
		totalFiles++

		lesson, err := qmdtutor.ParseFile(path)
		if err != nil {
			fileErrors = append(fileErrors, fileValidationError{file: relPath, error: errorText(err)})
			return nil
		}

		problems := checkSolutions(runner, lesson)
		if len(problems) > 0 {
			fileErrors = append(fileErrors, fileValidationError{file: relPath, error: strings.Join(problems, "\n")})
			return nil
		}

		validFiles++
		fmt.Printf("✓ %s (%d exercises)\n", relPath, len(lesson.Exercises))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk directory: %w", err)
	}

	// Cross-file checks (duplicate lesson and exercise ids) only run once
	// every file parses on its own.
	if len(fileErrors) == 0 {
		if _, err := qmdtutor.LoadDir(absDir); err != nil {
			fileErrors = append(fileErrors, fileValidationError{file: "(catalog)", error: errorText(err)})
		}
	}

	if len(fileErrors) > 0 {
		fmt.Printf("\n")
		for _, fe := range fileErrors {
			fmt.Printf("✗ %s:\n", fe.file)
			for _, line := range strings.Split(fe.error, "\n") {
				if line != "" {
					fmt.Printf("  %s\n", line)
				}
			}
			fmt.Printf("\n")
		}
	}

	fmt.Print("\n" + strings.Repeat("─", 60) + "\n")
	fmt.Println("Summary:")
	fmt.Printf("  Total files: %d\n", totalFiles)
	fmt.Printf("  Valid:       %d\n", validFiles)
	fmt.Printf("  Errors:      %d\n", len(fileErrors))
	fmt.Printf("\n")

	if len(fileErrors) > 0 {
		fmt.Printf("✗ Validation failed with %d error(s)\n", len(fileErrors))
		return fmt.Errorf("validation failed")
	}

	fmt.Printf("✓ All checks passed!\n")
	return nil
}

type fileValidationError struct {
	file  string
	error string
}

// checkSolutions runs each exercise's solution and reports the ones that
// would not pass.
func checkSolutions(runner *qmdtutor.Runner, lesson *qmdtutor.Lesson) []string {
	var problems []string
	for _, ex := range lesson.Exercises {
		if ex.Solution == "" {
			continue
		}
		res := runner.Run(context.Background(), ex, ex.Solution)
		if !ex.Check(res) {
			problems = append(problems, fmt.Sprintf("exercise %s: solution does not pass (output: %q)", ex.ID, res.Output))
		}
	}
	return problems
}

func errorText(err error) string {
	var perr *qmdtutor.ParseError
	if errors.As(err, &perr) {
		return perr.Format()
	}
	return err.Error()
}
