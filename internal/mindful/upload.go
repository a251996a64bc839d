package mindful

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
)

// The gateway expects a fixed multipart field and filename regardless of the
// local file name, and keys its response on the same filename.
const (
	uploadFieldName = "files"
	uploadFileName  = "file.jpg"
)

// Upload posts one local file to the upload endpoint and returns the remote
// reference URL. Callers upload each attachment separately, in order, before
// building the message content list.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &UploadError{Path: path, Err: err}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadFieldName, uploadFileName))
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create upload part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write upload part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(authHeaderName, c.authValue)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UploadError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UploadError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	// The response maps the fixed upload filename to the reference URL.
	var parsed map[string]string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse upload response: %w", err)
	}
	url := parsed[uploadFileName]
	if url == "" {
		return "", &UploadError{Path: path, StatusCode: resp.StatusCode, Body: "response carries no file reference"}
	}

	c.logger.Debug("uploaded image", "path", path, "url", url)
	return url, nil
}
