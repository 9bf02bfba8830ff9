// Command kantoku runs the script versioning server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	slogmulti "github.com/samber/slog-multi"

	"github.com/ashita-ai/kantoku"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	// Load .env early so the log settings below can come from it too.
	_ = godotenv.Load()

	logger, closeLog, err := newLogger(os.Stdout, os.Getenv("KANTOKU_LOG_LEVEL"), os.Getenv("KANTOKU_LOG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "kantoku:", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	app, err := kantoku.New(
		kantoku.WithLogger(logger),
		kantoku.WithVersion(version),
	)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

// newLogger builds a JSON logger on stdout. When logFile is set, records are
// also appended to that file.
func newLogger(stdout io.Writer, levelName, logFile string) (*slog.Logger, func(), error) {
	level, err := parseLevel(levelName)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	handlers := []slog.Handler{slog.NewJSONHandler(stdout, opts)}
	closeFn := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // operator-supplied path
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
		closeFn = func() { _ = f.Close() }
	}
	return slog.New(slogmulti.Fanout(handlers...)), closeFn, nil
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("KANTOKU_LOG_LEVEL=%q must be debug, info, warn or error", name)
	}
}
