// Package logging sets up the application's structured logger. The TUI
// owns stdout, so log output goes to a JSON file under the state
// directory.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Open creates the log file under stateDir and returns a JSON slog
// logger writing to it, plus a close function for shutdown. An empty
// stateDir logs to stderr instead, which suits one-shot commands.
func Open(stateDir, level string) (*slog.Logger, func() error, error) {
	var w io.Writer = os.Stderr
	var file *os.File

	if stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating state directory: %w", err)
		}
		path := filepath.Join(stateDir, "taskboard.log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		file = f
		w = f
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	closeFn := func() error {
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return slog.New(handler), closeFn, nil
}

// parseLevel maps a config level string onto slog.Level. Unknown
// values default to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
