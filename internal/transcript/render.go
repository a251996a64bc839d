package transcript

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ikmalsaid/mindful-client/internal/chat"
)

// RenderText renders a history as a plain-text transcript. Part lists join
// their text parts with single spaces and show images as bracketed
// references.
func RenderText(history []chat.Message) string {
	var out strings.Builder
	taskID := "unknown"
	if len(history) > 0 {
		taskID = history[0].ID
	}
	fmt.Fprintf(&out, "Chat History (ID: %s)\n\n", taskID)

	for _, message := range history {
		fmt.Fprintf(&out, "%s: %s\n", strings.ToUpper(string(message.Role)), flattenText(message.Content))
	}
	return out.String()
}

// RenderMarkdown renders a history as a markdown transcript with one
// heading per message and images embedded as markdown references.
func RenderMarkdown(history []chat.Message) string {
	var out strings.Builder
	taskID := "unknown"
	if len(history) > 0 {
		taskID = history[0].ID
	}
	fmt.Fprintf(&out, "# Chat History (ID: %s)\n\n", taskID)

	for _, message := range history {
		fmt.Fprintf(&out, "### %s\n%s\n\n", titleCase(string(message.Role)), flattenMarkdown(message.Content))
	}
	return out.String()
}

// flattenText converts content to a single text line.
func flattenText(content chat.Content) string {
	if content.Kind == chat.ContentText {
		return content.Text
	}
	parts := make([]string, 0, len(content.Parts))
	for _, part := range content.Parts {
		switch part.Type {
		case chat.PartText:
			parts = append(parts, part.Text)
		case chat.PartImageURL:
			parts = append(parts, fmt.Sprintf("[Image: %s]", partURL(part)))
		}
	}
	return strings.Join(parts, " ")
}

// flattenMarkdown converts content to a markdown body.
func flattenMarkdown(content chat.Content) string {
	if content.Kind == chat.ContentText {
		return content.Text
	}
	parts := make([]string, 0, len(content.Parts))
	for _, part := range content.Parts {
		switch part.Type {
		case chat.PartText:
			parts = append(parts, part.Text)
		case chat.PartImageURL:
			parts = append(parts, fmt.Sprintf("\n![Image](%s)\n", partURL(part)))
		}
	}
	return strings.Join(parts, "\n")
}

// partURL returns the image reference of a part, with the historical
// placeholder for records missing one.
func partURL(part chat.Part) string {
	if part.FileURL == nil || part.FileURL.URL == "" {
		return "No URL"
	}
	return part.FileURL.URL
}

// titleCase capitalizes the first rune of a role name for headings.
func titleCase(value string) string {
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
