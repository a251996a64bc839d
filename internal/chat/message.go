package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleSystem marks the active system prompt at index 0 of a history.
	RoleSystem Role = "system"
	// RoleUser marks a caller turn.
	RoleUser Role = "user"
	// RoleAssistant marks a model reply.
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation history. Every message in a
// conversation carries the same task id.
type Message struct {
	// ID is the task id shared by the whole conversation.
	ID string `json:"id"`
	// Role is one of system, user, or assistant.
	Role Role `json:"role"`
	// Content is plain text for system/assistant turns and an ordered
	// part list for user turns that include attachments.
	Content Content `json:"content"`
	// Model is the provider model identifier used for the conversation.
	Model string `json:"model"`
}

// ContentKind selects the active Content variant.
type ContentKind int

const (
	// ContentText is a plain-text payload.
	ContentText ContentKind = iota
	// ContentParts is an ordered list of text and image parts.
	ContentParts
)

// Content is a tagged union of plain text and part lists. The variant is
// resolved once when the value is built or decoded, never re-probed by
// consumers.
type Content struct {
	// Kind selects the active variant.
	Kind ContentKind
	// Text holds the payload when Kind is ContentText.
	Text string
	// Parts holds the ordered parts when Kind is ContentParts.
	Parts []Part
}

// Part is a single element of a multimodal user message.
type Part struct {
	// Type is "text" or "image_url".
	Type string `json:"type"`
	// Text carries the prompt text for text parts.
	Text string `json:"text,omitempty"`
	// FileURL carries the uploaded image reference for image parts.
	FileURL *FileURL `json:"file_url,omitempty"`
}

// FileURL wraps an uploaded file reference.
type FileURL struct {
	// URL is the remote reference returned by the upload endpoint.
	URL string `json:"url"`
}

const (
	// PartText tags a text part.
	PartText = "text"
	// PartImageURL tags an image reference part.
	PartImageURL = "image_url"
)

// TextContent builds a plain-text content value.
func TextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

// PartsContent builds an ordered-parts content value.
func PartsContent(parts []Part) Content {
	return Content{Kind: ContentParts, Parts: parts}
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ImagePart builds an image reference part.
func ImagePart(url string) Part {
	return Part{Type: PartImageURL, FileURL: &FileURL{URL: url}}
}

// MarshalJSON emits the wire shape: a JSON string for text content and a
// JSON array for part lists.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ContentParts:
		if c.Parts == nil {
			return json.Marshal([]Part{})
		}
		return json.Marshal(c.Parts)
	default:
		return json.Marshal(c.Text)
	}
}

// UnmarshalJSON resolves the content variant from the wire shape. A JSON
// null decodes as empty text, which happens when a round trip produced no
// assistant content.
func (c *Content) UnmarshalJSON(raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		*c = TextContent("")
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var parts []Part
		if err := json.Unmarshal(raw, &parts); err != nil {
			return fmt.Errorf("parse content parts: %w", err)
		}
		*c = PartsContent(parts)
		return nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return fmt.Errorf("parse content text: %w", err)
	}
	*c = TextContent(text)
	return nil
}

// PlainText flattens content to a single string. Part lists join their text
// parts with spaces; image parts are dropped.
func (c Content) PlainText() string {
	if c.Kind == ContentText {
		return c.Text
	}
	texts := make([]string, 0, len(c.Parts))
	for _, part := range c.Parts {
		if part.Type == PartText && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, " ")
}

// NewTaskID generates a conversation task id in the form
// YYYYMMDD_HHMMSS_<8 hex chars>. The id is generated once per conversation
// and shared by every message in it.
func NewTaskID() string {
	stamp := time.Now().Format("20060102_150405")
	return stamp + "_" + uuid.NewString()[:8]
}

// TaskDate extracts the embedded date of a task id as YYYY-MM-DD.
func TaskDate(taskID string) (string, error) {
	datePart, _, found := strings.Cut(taskID, "_")
	if !found || len(datePart) != 8 {
		return "", fmt.Errorf("task id %q has no date prefix", taskID)
	}
	parsed, err := time.Parse("20060102", datePart)
	if err != nil {
		return "", fmt.Errorf("task id %q has an invalid date prefix: %w", taskID, err)
	}
	return parsed.Format("2006-01-02"), nil
}
