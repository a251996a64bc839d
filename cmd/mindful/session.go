package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ikmalsaid/mindful-client/internal/chat"
	"github.com/ikmalsaid/mindful-client/internal/config"
	"github.com/ikmalsaid/mindful-client/internal/mindful"
	"github.com/ikmalsaid/mindful-client/internal/preset"
	"github.com/ikmalsaid/mindful-client/internal/transcript"
)

// chatSession owns one interactive conversation: its settings, the active
// agent, the in-memory history, and the collaborators that move it.
// Nothing here is shared between sessions.
type chatSession struct {
	// settings is the resolved per-session configuration.
	settings config.Settings
	// preset supplies agent templates and the model registry.
	preset *preset.Preset
	// client executes gateway requests.
	client *mindful.Client
	// store persists the conversation after each committed turn.
	store *transcript.Store
	// logger receives session diagnostics.
	logger *slog.Logger
	// model is the resolved provider model identifier.
	model string
	// agent is the active agent name.
	agent string
	// instruction is the active custom instruction, when any.
	instruction string
	// history is the committed conversation state. It only advances after
	// a fully successful round trip.
	history []chat.Message
	// echoSink receives streamed characters; nil disables the typewriter.
	echoSink io.Writer
}

// newChatSession builds a session from resolved configuration.
func newChatSession(
	settings config.Settings,
	loaded *preset.Preset,
	client *mindful.Client,
	store *transcript.Store,
	model string,
	logger *slog.Logger,
) *chatSession {
	session := &chatSession{
		settings:    settings,
		preset:      loaded,
		client:      client,
		store:       store,
		logger:      logger.With("component", "session"),
		model:       model,
		agent:       settings.Agent,
		instruction: settings.Instruction,
	}
	if settings.StreamOutput {
		session.echoSink = os.Stdout
	}
	return session
}

// systemPrompt renders the prompt for the active agent and instruction.
func (s *chatSession) systemPrompt() (string, error) {
	instruction := ""
	if s.agent == preset.AgentCustom {
		instruction = s.instruction
	}
	return s.preset.Agent(s.agent, instruction)
}

// switchAgent changes the active agent. A non-empty instruction always
// selects the custom agent, matching the construction-time behavior.
func (s *chatSession) switchAgent(agent string, instruction string) error {
	if instruction != "" {
		agent = preset.AgentCustom
	}
	if _, err := s.preset.Agent(agent, instruction); err != nil {
		return err
	}
	s.agent = agent
	if instruction != "" {
		s.instruction = instruction
	}
	s.logger.Info("switched agent", "agent", agent)
	return nil
}

// taskID returns the active conversation id, empty before the first turn.
func (s *chatSession) taskID() string {
	if len(s.history) == 0 {
		return ""
	}
	return s.history[0].ID
}

// reset discards the conversation. The next turn starts a new history with
// a fresh task id.
func (s *chatSession) reset() {
	s.history = nil
}

// loadHistory replaces the conversation with one loaded from disk and
// realigns the active agent with the loaded system prompt.
func (s *chatSession) loadHistory(path string) error {
	loaded, err := s.store.Load(path)
	if err != nil {
		return err
	}
	s.history = loaded

	// Recognize a loaded custom prompt so the next turn does not splice a
	// new system message. Detection is literal text equality.
	customPrompt, err := s.preset.Agent(preset.AgentCustom, s.instruction)
	if err == nil && loaded[0].Content.Text == customPrompt {
		s.agent = preset.AgentCustom
	} else {
		s.agent = "default"
	}
	s.logger.Info("loaded chat history", "task_id", loaded[0].ID, "messages", len(loaded))
	return nil
}

// runTurn executes one user turn end to end: reconcile the system prompt,
// upload any attachments, send the request, and commit the assistant reply.
// On any error the committed history is left exactly as it was.
func (s *chatSession) runTurn(ctx context.Context, prompt string, imagePaths []string) (string, error) {
	started := time.Now()

	systemPrompt, err := s.systemPrompt()
	if err != nil {
		return "", err
	}
	next := chat.StartOrContinue(s.history, systemPrompt, s.model)
	taskID := next[0].ID

	// Attachments upload one at a time, in input order, before the message
	// content list is built.
	imageURLs := make([]string, 0, len(imagePaths))
	for _, path := range imagePaths {
		url, err := s.client.Upload(ctx, path)
		if err != nil {
			s.logger.Error("image upload failed", "task_id", taskID, "path", path, "error", err)
			return "", err
		}
		imageURLs = append(imageURLs, url)
	}

	next, err = chat.AppendUserTurn(next, prompt, imageURLs)
	if err != nil {
		return "", err
	}

	echo := mindful.EchoOptions{}
	if s.echoSink != nil {
		echo.Sink = s.echoSink
		echo.Delay = time.Duration(s.settings.StreamDelayMS) * time.Millisecond
	}

	reply, err := s.client.Complete(ctx, next, echo)
	if err != nil {
		s.logger.Error("completion failed", "task_id", taskID, "error", err)
		return "", err
	}

	next = chat.AppendAssistantTurn(next, reply)
	s.history = next

	// The turn is already committed in memory; persistence problems are
	// logged and surfaced to the console without eating the reply.
	if err := s.store.Save(s.history); err != nil {
		s.logger.Error("history save failed", "task_id", taskID, "error", err)
	}

	s.logger.Info("request completed", "task_id", taskID, "elapsed", time.Since(started).Round(time.Millisecond))
	return reply, nil
}
