package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ikmalsaid/mindful-client/internal/config"
	"github.com/ikmalsaid/mindful-client/internal/transcript"
)

// historyCommand groups the saved-transcript subcommands: list, show, and
// browse.
func historyCommand(flags *flagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved chat transcripts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved chats, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := newSessionStore(cmd, flags)
			if err != nil {
				return err
			}
			summaries, err := store.List()
			if err != nil {
				return err
			}
			writeSummaries(summaries)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id-or-path>",
		Short: "Render one saved chat to the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := newSessionStore(cmd, flags)
			if err != nil {
				return err
			}
			path, err := resolveTranscriptPath(store, args[0])
			if err != nil {
				return err
			}
			return showTranscript(store, path)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "browse",
		Short: "Pick a saved chat interactively and render it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := newSessionStore(cmd, flags)
			if err != nil {
				return err
			}
			path, err := pickTranscript(store)
			if err != nil || path == "" {
				return err
			}
			return showTranscript(store, path)
		},
	})

	return cmd
}

// exportCommand converts a saved JSON transcript to txt or md next to the
// original file.
func exportCommand(flags *flagValues) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <id-or-path>",
		Short: "Export a saved chat as txt or md",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case config.FormatText, config.FormatMarkdown:
			default:
				return fmt.Errorf("unsupported export format %q, expected txt or md", format)
			}
			store, _, err := newSessionStore(cmd, flags)
			if err != nil {
				return err
			}
			path, err := resolveTranscriptPath(store, args[0])
			if err != nil {
				return err
			}
			history, err := store.Load(path)
			if err != nil {
				return err
			}
			if err := store.Export(path, history, format); err != nil {
				return err
			}
			fmt.Printf("Exported %s as %s\n", path, format)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", config.FormatText, "Export format (txt, md)")
	return cmd
}

// resolveTranscriptPath accepts either a JSON file path or a task ID and
// returns the transcript file location.
func resolveTranscriptPath(store *transcript.Store, arg string) (string, error) {
	if strings.HasSuffix(arg, ".json") {
		if _, err := os.Stat(arg); err == nil {
			return arg, nil
		}
	}
	summaries, err := store.List()
	if err != nil {
		return "", err
	}
	for _, summary := range summaries {
		if summary.TaskID == arg {
			return summary.Path, nil
		}
	}
	return "", fmt.Errorf("no saved chat found for %q", arg)
}

// showTranscript renders a transcript as markdown, through glamour when the
// output is a terminal.
func showTranscript(store *transcript.Store, path string) error {
	history, err := store.Load(path)
	if err != nil {
		return err
	}
	markdown := transcript.RenderMarkdown(history)

	if isatty.IsTerminal(os.Stdout.Fd()) {
		width := 100
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
		if err == nil {
			if pretty, err := renderer.Render(markdown); err == nil {
				fmt.Print(pretty)
				return nil
			}
		}
	}
	fmt.Print(markdown)
	return nil
}

// writeSummaries prints the saved-chat listing, as a rounded table on a
// terminal and tab-separated lines otherwise.
func writeSummaries(summaries []transcript.Summary) {
	if len(summaries) == 0 {
		fmt.Println("No saved chats found.")
		return
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		for _, summary := range summaries {
			fmt.Printf("%s\t%s\t%d\t%s\n", summary.TaskID, summary.Date, summary.Messages, summary.Preview)
		}
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleRounded)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 60},
	})
	tw.AppendHeader(table.Row{"Chat ID", "Date", "Messages", "First Prompt"})
	for _, summary := range summaries {
		tw.AppendRow(table.Row{summary.TaskID, summary.Date, summary.Messages, summary.Preview})
	}
	tw.Render()
}
