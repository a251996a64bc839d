// Package mindful talks to the remote chat-completion gateway: it uploads
// images, sends multipart chat requests, and decodes the chunked streaming
// responses into accumulated text.
package mindful

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrNoNetwork reports a failed startup connectivity probe.
var ErrNoNetwork = errors.New("no network connection")

// APIError represents an HTTP error from the chat gateway.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mindful api error: status %d: %s", e.StatusCode, e.Body)
}

// UploadError represents a failed image upload, either a local read failure
// or a non-2xx gateway response.
type UploadError struct {
	// Path is the local file being uploaded.
	Path string
	// StatusCode is the gateway status, zero for local failures.
	StatusCode int
	// Body is the gateway response body, when available.
	Body string
	// Err is the underlying local error, when any.
	Err error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("upload %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// authHeaderName is the gateway's auth header. The gateway expects the
// decoded preset value under this exact name.
const authHeaderName = "bearer"

// Options configures a Client.
type Options struct {
	// ChatURL is the chat completion endpoint.
	ChatURL string
	// UploadURL is the image upload endpoint.
	UploadURL string
	// AuthValue is the decoded preset auth value.
	AuthValue string
	// Timeout bounds each request end to end.
	Timeout time.Duration
	// Logger receives request and decoder diagnostics.
	Logger *slog.Logger
}

// Client executes requests against the mindful gateway. One request is in
// flight at a time; the client carries no mutable state across calls.
type Client struct {
	chatURL    string
	uploadURL  string
	authValue  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a gateway client with timeout settings.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		chatURL:   opts.ChatURL,
		uploadURL: opts.UploadURL,
		authValue: opts.AuthValue,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger,
	}
}

// defaultProbeURL is the reachability target for the startup check.
const defaultProbeURL = "https://www.google.com"

// CheckConnectivity verifies that the network is reachable at startup.
// Failure is fatal for construction; there is no degraded offline mode.
func CheckConnectivity(ctx context.Context, probeURL string) error {
	if probeURL == "" {
		probeURL = defaultProbeURL
	}
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, probeURL, nil)
	if err != nil {
		return fmt.Errorf("create connectivity probe: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoNetwork, err)
	}
	resp.Body.Close()
	return nil
}
