// Package config resolves session settings from defaults, an optional YAML
// config file, and CLI flag overrides, and owns the logger setup.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Save formats accepted for transcript export.
const (
	FormatJSON     = "json"
	FormatText     = "txt"
	FormatMarkdown = "md"
)

// Modes accepted at construction. Only the interactive chat surface is
// implemented; the legacy api/webui modes are recognized and rejected.
const (
	ModeDefault = "default"
	ModeChat    = "chat"
)

// ErrUnsupportedMode is returned for modes this build does not serve.
var ErrUnsupportedMode = errors.New("unsupported mode")

// Settings holds the per-session configuration. All fields are resolved at
// construction; nothing here is ambient state.
type Settings struct {
	// Mode selects the startup surface (default or chat).
	Mode string `yaml:"mode"`
	// Model is the friendly model name resolved against the preset registry.
	Model string `yaml:"model"`
	// SaveDir is the root directory for persisted transcripts.
	SaveDir string `yaml:"save_to"`
	// DisableSave turns transcript persistence off entirely.
	DisableSave bool `yaml:"no_save"`
	// SaveFormat is json, txt, or md. txt and md add a secondary export
	// next to the canonical JSON file.
	SaveFormat string `yaml:"save_as"`
	// TimeoutSeconds bounds each chat request.
	TimeoutSeconds int `yaml:"timeout"`
	// StreamOutput echoes response characters to the console as they arrive.
	StreamOutput bool `yaml:"stream"`
	// StreamDelayMS is the cosmetic per-character echo delay.
	StreamDelayMS int `yaml:"stream_delay_ms"`
	// Agent is the starting agent name.
	Agent string `yaml:"agent"`
	// Instruction is the custom system prompt; setting it switches the
	// session to the custom agent.
	Instruction string `yaml:"instruction"`
	// Verbose lowers the log level to debug.
	Verbose bool `yaml:"verbose"`
	// LogFile tees log output to a file when set.
	LogFile string `yaml:"log_file"`
}

// Default returns the baseline settings before file and flag overrides.
func Default() Settings {
	return Settings{
		Mode:           ModeDefault,
		Model:          "omniverse",
		SaveDir:        "outputs",
		SaveFormat:     FormatJSON,
		TimeoutSeconds: 60,
		StreamOutput:   true,
		StreamDelayMS:  10,
		Agent:          "default",
	}
}

// DefaultPath returns the user config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".mindful", "config.yaml"), nil
}

// LoadFile applies YAML values from path on top of the given settings. A
// missing file is not an error; the settings come back unchanged.
func LoadFile(settings Settings, path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return settings, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return settings, nil
}

// Normalize validates the settings in place, applying the documented
// defaulting behavior: an invalid save format warns and falls back to JSON,
// and an empty save directory falls back to the system temp directory.
// Unsupported modes are fatal.
func (s *Settings) Normalize(logger *slog.Logger) error {
	switch s.Mode {
	case ModeDefault, ModeChat:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, s.Mode)
	}

	if s.DisableSave {
		s.SaveDir = ""
		logger.Warn("chat history will not be saved")
	} else if s.SaveDir == "" {
		s.SaveDir = os.TempDir()
		logger.Warn("no save directory configured, using temp location", "dir", s.SaveDir)
	}

	s.SaveFormat = strings.ToLower(s.SaveFormat)
	switch s.SaveFormat {
	case FormatJSON, FormatText, FormatMarkdown:
	default:
		logger.Warn("invalid save format, defaulting to json", "format", s.SaveFormat)
		s.SaveFormat = FormatJSON
	}

	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = 60
	}
	if s.StreamDelayMS < 0 {
		s.StreamDelayMS = 0
	}
	if s.Instruction != "" {
		s.Agent = "custom"
	}
	if s.Agent == "" {
		s.Agent = "default"
	}
	return nil
}

// SaveEnabled reports whether transcripts are persisted.
func (s *Settings) SaveEnabled() bool {
	return s.SaveDir != ""
}
