package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ikmalsaid/mindful-client/internal/transcript"
)

type transcriptItem struct {
	summary transcript.Summary
}

func (t transcriptItem) Title() string {
	return fmt.Sprintf("%s (%d messages)", t.summary.TaskID, t.summary.Messages)
}
func (t transcriptItem) Description() string { return t.summary.Preview }
func (t transcriptItem) FilterValue() string { return t.summary.TaskID + " " + t.summary.Preview }

type pickerModel struct {
	list     list.Model
	selected string
	quitting bool
}

func newPickerModel(summaries []transcript.Summary) pickerModel {
	items := make([]list.Item, len(summaries))
	for i, summary := range summaries {
		items[i] = transcriptItem{summary: summary}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Saved Chats"
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFF")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	return pickerModel{list: l}
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}
		if msg.String() == "enter" {
			if item, ok := m.list.SelectedItem().(transcriptItem); ok {
				m.selected = item.summary.Path
				return m, tea.Quit
			}
		}
	case tea.WindowSizeMsg:
		h, v := lipgloss.NewStyle().Margin(1, 2).GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	if m.quitting {
		return ""
	}
	return lipgloss.NewStyle().Margin(1, 2).Render(m.list.View())
}

// pickTranscript shows a full-screen chooser over the saved transcripts and
// returns the selected file path. An empty path means the user cancelled.
func pickTranscript(store *transcript.Store) (string, error) {
	summaries, err := store.List()
	if err != nil {
		return "", err
	}
	if len(summaries) == 0 {
		fmt.Println("No saved chats found.")
		return "", nil
	}

	program := tea.NewProgram(newPickerModel(summaries), tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return "", fmt.Errorf("history picker: %w", err)
	}
	model, ok := final.(pickerModel)
	if !ok {
		return "", nil
	}
	return model.selected, nil
}
