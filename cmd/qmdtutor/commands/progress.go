package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/livetemplate/qmdtutor/internal/progress"
)

// defaultTimeout bounds store access from the CLI.
const defaultTimeout = 30 * time.Second

// ProgressCommand shows or clears the completed lessons.
// Usage: qmdtutor progress [list|reset] [--config file] [--dir lessons]
func ProgressCommand(args []string) error {
	action := "list"
	var configPath, dir string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if v, n, ok, err := flagValue(args, i, "--config", "-c"); ok {
			if err != nil {
				return err
			}
			configPath = v
			i += n
		} else if v, n, ok, err := flagValue(args, i, "--dir", "-d"); ok {
			if err != nil {
				return err
			}
			dir = v
			i += n
		} else if !strings.HasPrefix(arg, "-") {
			action = arg
		} else {
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}
	if action != "list" && action != "reset" {
		return fmt.Errorf("unknown progress action: %s (want list or reset)", action)
	}

	cfg, err := loadConfig(".", configPath)
	if err != nil {
		return err
	}
	catalog, _, err := loadCatalog(cfg, ".", dir)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := progress.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open progress store: %w", err)
	}
	defer store.Close()

	tracker, err := progress.NewTracker(ctx, store, catalog.IDs())
	if err != nil {
		return err
	}

	if action == "reset" {
		if err := tracker.Reset(ctx); err != nil {
			return err
		}
		fmt.Printf("✓ Progress reset\n")
		return nil
	}

	sum := tracker.Summary()
	fmt.Printf("Progress: %d of %d lessons (%d%%)\n\n", sum.Count, sum.Total, sum.Percent)
	for _, l := range catalog.Lessons() {
		mark := " "
		if tracker.IsCompleted(l.ID) {
			mark = "✓"
		}
		fmt.Printf("  [%s] %-16s %s\n", mark, l.ID, l.Title)
	}
	return nil
}
