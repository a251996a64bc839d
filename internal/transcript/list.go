package transcript

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ikmalsaid/mindful-client/internal/chat"
)

// Summary describes one saved conversation for listings and pickers.
type Summary struct {
	// TaskID is the conversation identifier and file base name.
	TaskID string
	// Date is the YYYY-MM-DD directory the transcript lives in.
	Date string
	// Path is the absolute or store-relative JSON file path.
	Path string
	// Messages is the record count in the file.
	Messages int
	// Preview is the first user prompt, for display.
	Preview string
	// ModTime is the file modification time.
	ModTime time.Time
}

// List returns summaries for every readable transcript under the save root,
// newest first. Unreadable files are skipped.
func (s *Store) List() ([]Summary, error) {
	if !s.Enabled() {
		return nil, nil
	}
	root := filepath.Join(s.BaseDir, subDir)
	dates, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var summaries []Summary
	for _, dateEntry := range dates {
		if !dateEntry.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, dateEntry.Name()))
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
				continue
			}
			path := filepath.Join(root, dateEntry.Name(), file.Name())
			history, err := s.Load(path)
			if err != nil {
				s.Logger.Debug("skipping unreadable transcript", "path", path, "error", err)
				continue
			}
			info, err := file.Info()
			if err != nil {
				continue
			}
			summaries = append(summaries, Summary{
				TaskID:   strings.TrimSuffix(file.Name(), ".json"),
				Date:     dateEntry.Name(),
				Path:     path,
				Messages: len(history),
				Preview:  previewOf(history),
				ModTime:  info.ModTime(),
			})
		}
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ModTime.After(summaries[j].ModTime)
	})
	return summaries, nil
}

// previewOf returns the first user prompt line, truncated for display.
func previewOf(history []chat.Message) string {
	for _, message := range history {
		if message.Role != chat.RoleUser {
			continue
		}
		text := message.Content.PlainText()
		if text == "" {
			continue
		}
		if line, _, found := strings.Cut(text, "\n"); found {
			text = line
		}
		runes := []rune(text)
		if len(runes) > 80 {
			return string(runes[:80]) + "..."
		}
		return text
	}
	return "(no user prompt)"
}
