package commands

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/livetemplate/qmdtutor"
	"github.com/livetemplate/qmdtutor/internal/config"
)

// loadConfig reads configPath when given, otherwise qmdtutor.yaml in dir.
func loadConfig(dir, configPath string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromDir(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadCatalog returns the lessons under dir. An empty dir falls back to
// the config's lesson directory and then to the bundled lessons. The
// returned path is the directory the lessons came from, or "" for the
// bundled set.
func loadCatalog(cfg *config.Config, baseDir, dir string) (*qmdtutor.Catalog, string, error) {
	if dir == "" && cfg.Lessons != "" {
		dir = cfg.Lessons
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
	}
	if dir == "" {
		cat, err := qmdtutor.LoadBundled()
		if err != nil {
			return nil, "", fmt.Errorf("failed to load bundled lessons: %w", err)
		}
		return cat, "", nil
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, "", fmt.Errorf("directory does not exist: %s", dir)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	cat, err := qmdtutor.LoadDir(absDir)
	if err != nil {
		return nil, "", err
	}
	return cat, absDir, nil
}

// flagValue returns the value of a "--name value" or "--name=value" flag
// at args[i] and how many extra arguments it consumed. A matched flag
// without a value is an error.
func flagValue(args []string, i int, names ...string) (value string, consumed int, matched bool, err error) {
	arg := args[i]
	for _, name := range names {
		if arg == name {
			if i+1 < len(args) {
				return args[i+1], 1, true, nil
			}
			return "", 0, true, fmt.Errorf("flag %s requires a value", name)
		}
		if v, ok := strings.CutPrefix(arg, name+"="); ok {
			if v == "" {
				return "", 0, true, fmt.Errorf("flag %s requires a value", name)
			}
			return v, 0, true, nil
		}
	}
	return "", 0, false, nil
}

func init() {
	log.SetFlags(0) // Remove timestamp from logs
}
