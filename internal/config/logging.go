package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// NewLogger builds the session logger. Output goes to stderr so streamed
// assistant text on stdout stays clean; when logFile is set, log lines are
// teed to it as well. The returned closer releases the log file, if any.
func NewLogger(verbose bool, logFile string) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var sink io.Writer = os.Stderr
	closer := func() error { return nil }

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		sink = io.MultiWriter(os.Stderr, file)
		closer = file.Close
	}

	handler := slog.NewTextHandler(sink, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer, nil
}
