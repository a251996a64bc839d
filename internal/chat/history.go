// Package chat holds the in-memory conversation state: the message model,
// task id generation, and the history operations that build one turn at a
// time on top of a single canonical system message.
package chat

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a user turn carries neither text nor
// images.
var ErrInvalidInput = errors.New("a user turn needs text or at least one image")

// StartOrContinue decides whether an existing history can be reused for the
// requested system prompt or a new one must be built.
//
// The comparison is literal text equality against the current system
// message. When the prompts match, the given history is returned unchanged.
// When they differ (or no history exists), a new history is built whose
// system message reuses the prior task id if there was one; every prior
// user and assistant turn is carried forward in order, and the old system
// message is dropped.
func StartOrContinue(history []Message, systemPrompt string, model string) []Message {
	if len(history) > 0 && history[0].Content.Kind == ContentText && history[0].Content.Text == systemPrompt {
		return history
	}

	taskID := NewTaskID()
	if len(history) > 0 {
		taskID = history[0].ID
	}

	next := []Message{{
		ID:      taskID,
		Role:    RoleSystem,
		Content: TextContent(systemPrompt),
		Model:   model,
	}}
	for _, message := range history {
		if message.Role == RoleUser || message.Role == RoleAssistant {
			next = append(next, message)
		}
	}
	return next
}

// AppendUserTurn appends one user message built from prompt text and
// already-uploaded image URLs. The text part comes first, followed by one
// image part per URL in input order.
func AppendUserTurn(history []Message, text string, imageURLs []string) ([]Message, error) {
	if text == "" && len(imageURLs) == 0 {
		return nil, ErrInvalidInput
	}
	if len(history) == 0 {
		return nil, errors.New("append user turn: history has no system message")
	}

	parts := make([]Part, 0, len(imageURLs)+1)
	if text != "" {
		parts = append(parts, TextPart(text))
	}
	for _, url := range imageURLs {
		parts = append(parts, ImagePart(url))
	}

	return append(history, Message{
		ID:      history[0].ID,
		Role:    RoleUser,
		Content: PartsContent(parts),
		Model:   history[0].Model,
	}), nil
}

// AppendAssistantTurn appends one assistant message with plain-text content.
// The text may be empty when the round trip produced nothing; the caller is
// responsible for deciding whether to commit such a turn.
func AppendAssistantTurn(history []Message, text string) []Message {
	if len(history) == 0 {
		return history
	}
	return append(history, Message{
		ID:      history[0].ID,
		Role:    RoleAssistant,
		Content: TextContent(text),
		Model:   history[0].Model,
	})
}

// Validate checks the structural invariants of a loaded history: it must be
// non-empty, start with a system message, and carry an id and model on the
// first record.
func Validate(history []Message) error {
	if len(history) == 0 {
		return errors.New("history is empty")
	}
	first := history[0]
	if first.Role != RoleSystem {
		return fmt.Errorf("history starts with role %q, want %q", first.Role, RoleSystem)
	}
	if first.ID == "" {
		return errors.New("history is missing a task id")
	}
	if first.Model == "" {
		return errors.New("history is missing a model identifier")
	}
	return nil
}
