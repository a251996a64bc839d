package mindful

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ikmalsaid/mindful-client/internal/chat"
)

// completionPayload is the JSON document sent in the multipart data field.
type completionPayload struct {
	// ID is the conversation task id.
	ID string `json:"id"`
	// Messages is the full conversation history.
	Messages []chat.Message `json:"messages"`
	// Model is the provider model identifier.
	Model string `json:"model"`
	// Stream is part of the gateway contract; the response is chunked
	// either way.
	Stream bool `json:"stream"`
}

// modelVersion is the metadata field value the gateway requires.
const modelVersion = "1"

// EchoOptions controls the live typewriter output during streaming.
type EchoOptions struct {
	// Sink receives decoded characters as they arrive; nil disables echo.
	Sink io.Writer
	// Delay is the cosmetic pause between echoed characters.
	Delay time.Duration
}

// Complete sends the conversation to the gateway and decodes the streamed
// response into the accumulated assistant text. The history must already
// include the pending user turn; its first message supplies the task id and
// model identifier.
func (c *Client) Complete(ctx context.Context, history []chat.Message, echo EchoOptions) (string, error) {
	if err := chat.Validate(history); err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	taskID := history[0].ID

	payload, err := json.Marshal(completionPayload{
		ID:       taskID,
		Messages: history,
		Model:    history[0].Model,
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("model_version", modelVersion); err != nil {
		return "", fmt.Errorf("write model_version field: %w", err)
	}
	if err := writer.WriteField("data", string(payload)); err != nil {
		return "", fmt.Errorf("write data field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize completion body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, &body)
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(authHeaderName, c.authValue)

	c.logger.Debug("sending completion request", "task_id", taskID, "messages", len(history))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("read error body: %w", readErr)
		}
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	decoder := NewStreamDecoder(echo.Sink, echo.Delay, c.logger)
	chunk := make([]byte, 1024)
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			decoder.Feed(chunk[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read completion stream: %w", err)
		}
	}

	text := decoder.Flush()
	if skipped := decoder.Skipped(); skipped > 0 {
		c.logger.Debug("stream lines skipped during decode", "task_id", taskID, "skipped", skipped)
	}
	return text, nil
}
