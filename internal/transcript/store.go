// Package transcript persists conversation histories under a date-keyed
// directory tree and renders them to secondary text or markdown exports.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ikmalsaid/mindful-client/internal/chat"
)

// subDir is the fixed directory inserted between the save root and the
// per-date directories.
const subDir = "mindful"

// ExportError reports a failed secondary export. The primary JSON write has
// already succeeded when this is returned.
type ExportError struct {
	// Path is the export file path.
	Path string
	// Err is the underlying failure.
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Store saves conversation histories to disk. A Store with an empty BaseDir
// is disabled and every Save is a no-op.
//
// The read-merge-write cycle in Save assumes a single logical writer per
// task id. Two processes saving the same conversation concurrently can lose
// a suffix; cross-process locking is deliberately out of scope.
type Store struct {
	// BaseDir is the save root; transcripts land under BaseDir/mindful.
	BaseDir string
	// Format selects an optional secondary export: txt or md. The value
	// json means no secondary export.
	Format string
	// Logger receives persistence diagnostics.
	Logger *slog.Logger
}

// NewStore builds a store. An empty baseDir disables persistence.
func NewStore(baseDir string, format string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{BaseDir: baseDir, Format: format, Logger: logger}
}

// Enabled reports whether this store persists anything.
func (s *Store) Enabled() bool {
	return s.BaseDir != ""
}

// Path returns the canonical JSON path for a task id.
func (s *Store) Path(taskID string) (string, error) {
	date, err := chat.TaskDate(taskID)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.BaseDir, subDir, date, taskID+".json"), nil
}

// Save writes the history to its canonical JSON file, merging with any
// existing file by appending the in-memory suffix beyond the file's length.
// Histories are append-only; divergent edits are not reconciled. A corrupt
// existing file is overwritten wholesale. After a successful JSON write, a
// configured txt or md export is produced next to it; export failures are
// returned but never undo the JSON write.
func (s *Store) Save(history []chat.Message) error {
	if !s.Enabled() {
		return nil
	}
	if err := chat.Validate(history); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	taskID := history[0].ID

	path, err := s.Path(taskID)
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}

	merged := s.merge(path, history, taskID)

	raw, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := writeAtomic(path, raw); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	s.Logger.Info("saved chat history", "task_id", taskID, "path", path, "messages", len(merged))

	if s.Format == "txt" || s.Format == "md" {
		if err := s.Export(path, merged, s.Format); err != nil {
			s.Logger.Error("secondary export failed", "task_id", taskID, "format", s.Format, "error", err)
			return err
		}
	}
	return nil
}

// merge reconciles the in-memory history with an existing file at path.
func (s *Store) merge(path string, history []chat.Message, taskID string) []chat.Message {
	existing, err := s.Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.Logger.Info("creating new chat history file", "task_id", taskID)
		return history
	case err != nil:
		s.Logger.Warn("existing history file is unreadable, overwriting", "task_id", taskID, "error", err)
		return history
	}

	if len(history) > len(existing) {
		s.Logger.Info("updating existing chat history file", "task_id", taskID, "appended", len(history)-len(existing))
		return append(existing, history[len(existing):]...)
	}
	return history
}

// Load reads and validates a history JSON file.
func (s *Store) Load(path string) ([]chat.Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var history []chat.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("parse history file %s: %w", path, err)
	}
	if err := chat.Validate(history); err != nil {
		return nil, fmt.Errorf("history file %s: %w", path, err)
	}
	return history, nil
}

// Export renders the history next to its JSON file in the given format.
func (s *Store) Export(jsonPath string, history []chat.Message, format string) error {
	base := strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath))
	target := base + "." + format

	var rendered string
	switch format {
	case "txt":
		rendered = RenderText(history)
	case "md":
		rendered = RenderMarkdown(history)
	default:
		return &ExportError{Path: target, Err: fmt.Errorf("unknown export format %q", format)}
	}

	if err := os.WriteFile(target, []byte(rendered), 0o644); err != nil {
		return &ExportError{Path: target, Err: err}
	}
	s.Logger.Info("exported chat history", "path", target, "format", format)
	return nil
}

// writeAtomic writes data through a temp file and a rename so readers never
// observe a partially written transcript.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
