package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Interactive output styles. They render as plain text on non-TTY output.
var (
	bannerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	promptStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Faint(true)
)

// RunInteractive drives the console chat loop until /exit, EOF, or an
// interrupt.
func (s *chatSession) RunInteractive(parent context.Context) error {
	ctx, stop := contextWithInterrupt(parent)
	defer stop()

	interactive := isatty.IsTerminal(os.Stdout.Fd())

	fmt.Println(bannerStyle.Render(fmt.Sprintf("*** Welcome to Mindful Client %s ***", version)))
	fmt.Println("Type '/help' for available commands")
	fmt.Println()
	if s.store.Enabled() {
		fmt.Println(dimStyle.Render(fmt.Sprintf("Chat history will be saved to: '%s' as '*.%s'", s.store.BaseDir, s.settings.SaveFormat)))
	} else {
		fmt.Println(errorStyle.Render("Warning: Chat history will not be saved!"))
	}
	fmt.Println("Type your message or command below:")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("You: "))
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		done, err := s.dispatch(ctx, line, interactive)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println()
				fmt.Println("Request cancelled.")
				break
			}
			fmt.Println()
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			fmt.Println("Try again or type '/exit' to end the chat")
			fmt.Println()
			continue
		}
		if done {
			break
		}
	}

	fmt.Println("Ending chat session...")
	if taskID := s.taskID(); taskID != "" && s.store.Enabled() {
		fmt.Println("Chat history saved with ID: " + taskID)
	}
	return scanner.Err()
}

// dispatch routes one input line to a slash command or a chat turn. The
// returned bool reports that the session should end.
func (s *chatSession) dispatch(ctx context.Context, line string, interactive bool) (bool, error) {
	lower := strings.ToLower(line)
	switch {
	case lower == "/exit":
		return true, nil

	case lower == "/help":
		s.printHelp()
		return false, nil

	case lower == "/reset":
		s.reset()
		fmt.Println()
		fmt.Println("Chat reset. Starting new conversation...")
		if s.agent != "default" {
			fmt.Println("Current agent: " + s.agent)
			if s.instruction != "" {
				fmt.Println("Current instruction: " + s.instruction)
			}
		}
		fmt.Println()
		return false, nil

	case strings.HasPrefix(lower, "/agent"):
		name := parseQuoted(line[len("/agent"):])
		if name == "" {
			fmt.Println("Usage: /agent \"default\" or /agent \"custom\"")
			return false, nil
		}
		if err := s.switchAgent(name, s.instruction); err != nil {
			fmt.Println(errorStyle.Render("Invalid agent. Available agents: " + strings.Join(s.preset.AgentNames(), ", ")))
			return false, nil
		}
		fmt.Println("Switched to agent: " + s.agent)
		return false, nil

	case strings.HasPrefix(lower, "/instruction"):
		instruction := parseQuoted(line[len("/instruction"):])
		if instruction == "" {
			fmt.Println("Usage: /instruction \"new instruction\"")
			return false, nil
		}
		if err := s.switchAgent("custom", instruction); err != nil {
			return false, err
		}
		fmt.Println("Updated system instruction.")
		return false, nil

	case strings.HasPrefix(lower, "/image"):
		paths, question, err := parseImageArgs(line[len("/image"):])
		if err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			return false, nil
		}
		for _, path := range paths {
			if _, statErr := os.Stat(path); statErr != nil {
				fmt.Println(errorStyle.Render("Image file not found: " + path))
				return false, nil
			}
		}
		return false, s.chatTurn(ctx, question, paths)

	case strings.HasPrefix(lower, "/load"):
		path := parseQuoted(line[len("/load"):])
		if path == "" && interactive {
			selected, err := pickTranscript(s.store)
			if err != nil {
				return false, err
			}
			if selected == "" {
				return false, nil
			}
			path = selected
		}
		if path == "" {
			fmt.Println("Usage: /load \"path/to/history.json\"")
			return false, nil
		}
		if err := s.loadHistory(path); err != nil {
			return false, err
		}
		fmt.Println()
		fmt.Println("Loaded chat history with ID: " + s.taskID())
		fmt.Println("Current agent: " + s.agent)
		if s.agent == "custom" && s.instruction != "" {
			fmt.Println("Current instruction: " + s.instruction)
		}
		fmt.Println()
		return false, nil

	case strings.HasPrefix(line, "/"):
		fmt.Println("Unknown command. Type '/help' for available commands.")
		return false, nil

	default:
		return false, s.chatTurn(ctx, line, nil)
	}
}

// chatTurn runs one request and prints the reply, honoring the streaming
// echo configuration.
func (s *chatSession) chatTurn(ctx context.Context, prompt string, imagePaths []string) error {
	hadTaskID := s.taskID() != ""

	if s.echoSink != nil {
		fmt.Println()
		fmt.Print(assistantStyle.Render("Assistant: "))
	}
	reply, err := s.runTurn(ctx, prompt, imagePaths)
	if err != nil {
		return err
	}

	if s.echoSink != nil {
		// Streamed characters are already on screen.
		fmt.Println()
		fmt.Println()
	} else if reply != "" {
		fmt.Println()
		fmt.Println(assistantStyle.Render("Assistant: ") + reply)
		fmt.Println()
	}

	if !hadTaskID && s.taskID() != "" {
		fmt.Println(dimStyle.Render("Chat ID: " + s.taskID()))
		fmt.Println()
	}
	return nil
}

// printHelp lists the interactive commands.
func (s *chatSession) printHelp() {
	fmt.Println()
	fmt.Println("Available commands:")
	fmt.Println("  /exit - Exit the chat")
	fmt.Println("  /reset - Reset the conversation")
	fmt.Println("  /agent \"agent_name\" - Change the agent (default/custom)")
	fmt.Println("  /image \"path\" \"question\" or [\"path1\", \"path2\"] \"question\" - Send image(s) with a question")
	fmt.Println("  /instruction \"new instruction\" - Change the system instruction")
	fmt.Println("  /load \"path/to/history.json\" - Load chat history from a JSON file")
	fmt.Println("  /help - Show this help message")
	fmt.Println()
	if s.store.Enabled() {
		fmt.Printf("Chat history is saved to: %s/*.%s\n\n", s.store.BaseDir, s.settings.SaveFormat)
	} else {
		fmt.Println("Warning: Chat history will not be saved!")
		fmt.Println()
	}
}

// contextWithInterrupt derives a context cancelled on SIGINT so a pending
// request aborts cleanly, leaving the history at its last committed append.
func contextWithInterrupt(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}
