package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/livetemplate/qmdtutor/internal/progress"
	"github.com/livetemplate/qmdtutor/internal/server"
)

// shutdownTimeout bounds how long in-flight requests get on Ctrl+C.
const shutdownTimeout = 5 * time.Second

// ServeCommand implements the serve command.
func ServeCommand(args []string) error {
	var dir, configPath, port, host string
	var watch *bool

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--watch" || arg == "-w" {
			watchVal := true
			watch = &watchVal
		} else if v, n, ok, err := flagValue(args, i, "--port", "-p"); ok {
			if err != nil {
				return err
			}
			port = v
			i += n
		} else if v, n, ok, err := flagValue(args, i, "--host"); ok {
			if err != nil {
				return err
			}
			host = v
			i += n
		} else if v, n, ok, err := flagValue(args, i, "--config", "-c"); ok {
			if err != nil {
				return err
			}
			configPath = v
			i += n
		} else if !strings.HasPrefix(arg, "-") {
			dir = arg
		} else {
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	baseDir := dir
	if baseDir == "" {
		baseDir = "."
	}
	cfg, err := loadConfig(baseDir, configPath)
	if err != nil {
		return err
	}
	if configPath != "" {
		fmt.Printf("📝 Using config: %s\n", configPath)
	}

	// CLI flags override config
	if port != "" {
		portInt, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port: %s", port)
		}
		cfg.Server.Port = portInt
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if watch != nil {
		cfg.Features.HotReload = *watch
	}

	catalog, lessonDir, err := loadCatalog(cfg, baseDir, dir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := progress.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open progress store: %w", err)
	}
	defer store.Close()

	tracker, err := progress.NewTracker(ctx, store, catalog.IDs())
	if err != nil {
		return err
	}

	fmt.Printf("📚 %s\n\n", cfg.Title)
	if lessonDir != "" {
		fmt.Printf("Lessons: %s\n", lessonDir)
	} else {
		fmt.Printf("Lessons: bundled\n")
	}
	for _, l := range catalog.Lessons() {
		fmt.Printf("  %-20s %s\n", l.ID, l.Title)
	}
	sum := tracker.Summary()
	fmt.Printf("Progress: %d of %d lessons (%s backend)\n", sum.Count, sum.Total, cfg.GetProgressBackend())

	srv := server.New(cfg, catalog, tracker)
	defer srv.Close()

	if cfg.Features.HotReload && lessonDir != "" {
		if err := srv.EnableWatch(lessonDir); err != nil {
			return fmt.Errorf("failed to enable watch mode: %w", err)
		}
		fmt.Printf("\n👀 Watch mode enabled - lessons reload on changes\n")
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("\n🌐 Server running at http://%s\n", cfg.Addr())
	fmt.Printf("Press Ctrl+C to stop\n\n")

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Printf("\nShutting down...\n")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
