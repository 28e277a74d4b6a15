// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
)

// New returns a logger for cfg and the file it writes to, if any. The
// caller closes the file on shutdown. Output "discard" drops everything,
// which the console uses so log lines do not tear its screen.
func New(cfg model.LoggingConfig) (*slog.Logger, *os.File, error) {
	output := cfg.Output
	if output == "" {
		output = "stderr"
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var (
		w       io.Writer
		logFile *os.File
	)
	switch output {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	case "discard":
		w = io.Discard
	case "file":
		if cfg.File == "" {
			return nil, nil, fmt.Errorf("logging output is file but no file is configured")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
		}
		w = f
		logFile = f
	default:
		return nil, nil, fmt.Errorf("unknown logging output %q", output)
	}

	return slog.New(newHandler(w, cfg.Format, opts)), logFile, nil
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
