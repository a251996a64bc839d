package mindful

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ikmalsaid/mindful-client/internal/chat"
	"github.com/ikmalsaid/mindful-client/internal/testutil"
)

func testClient(server *httptest.Server) *Client {
	return NewClient(Options{
		ChatURL:   server.URL + "/v1/completions",
		UploadURL: server.URL + "/v1/upload",
		AuthValue: "test-auth",
		Timeout:   5 * time.Second,
		Logger:    quietLogger(),
	})
}

func testHistory() []chat.Message {
	history := chat.StartOrContinue(nil, "be helpful", "omniverse-v1")
	history, _ = chat.AppendUserTurn(history, "Hello", nil)
	return history
}

// TestCompleteSendsMultipartAndDecodesStream verifies the outbound request
// shape and the streamed response decoding end to end.
func TestCompleteSendsMultipartAndDecodesStream(testingHandle *testing.T) {
	var gotAuth string
	var gotModelVersion string
	var gotPayload completionPayload

	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/v1/completions" {
			http.NotFound(responseWriter, request)
			return
		}
		gotAuth = request.Header.Get("bearer")
		if err := request.ParseMultipartForm(1 << 20); err != nil {
			http.Error(responseWriter, err.Error(), http.StatusBadRequest)
			return
		}
		gotModelVersion = request.FormValue("model_version")
		if err := json.Unmarshal([]byte(request.FormValue("data")), &gotPayload); err != nil {
			http.Error(responseWriter, err.Error(), http.StatusBadRequest)
			return
		}

		flusher, ok := responseWriter.(http.Flusher)
		if !ok {
			http.Error(responseWriter, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		for _, fragment := range []string{"Hello ", "from ", "the gateway"} {
			fmt.Fprintf(responseWriter, "data: {\"content\": %q}\n", fragment)
			flusher.Flush()
		}
	}))
	defer server.Close()

	client := testClient(server)
	history := testHistory()

	text, err := client.Complete(context.Background(), history, EchoOptions{})
	testutil.RequireNoError(testingHandle, err, "complete")
	testutil.RequireEqual(testingHandle, text, "Hello from the gateway", "accumulated reply")

	testutil.RequireEqual(testingHandle, gotAuth, "test-auth", "auth header")
	testutil.RequireEqual(testingHandle, gotModelVersion, "1", "model_version field")
	testutil.RequireEqual(testingHandle, gotPayload.ID, history[0].ID, "payload task id")
	testutil.RequireEqual(testingHandle, gotPayload.Model, "omniverse-v1", "payload model")
	testutil.RequireEqual(testingHandle, len(gotPayload.Messages), 2, "payload message count")
}

// TestCompleteNon2xxReturnsAPIError verifies gateway failures surface as a
// typed error with the response status.
func TestCompleteNon2xxReturnsAPIError(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		http.Error(responseWriter, "quota exhausted", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(server)
	_, err := client.Complete(context.Background(), testHistory(), EchoOptions{})

	var apiErr *APIError
	testutil.RequireTrue(testingHandle, errors.As(err, &apiErr), "expected an APIError")
	testutil.RequireEqual(testingHandle, apiErr.StatusCode, http.StatusTooManyRequests, "status code")
}

// TestCompleteRejectsInvalidHistory verifies structural validation happens
// before any network traffic.
func TestCompleteRejectsInvalidHistory(testingHandle *testing.T) {
	client := NewClient(Options{Logger: quietLogger(), Timeout: time.Second})

	_, err := client.Complete(context.Background(), nil, EchoOptions{})
	testutil.RequireTrue(testingHandle, err != nil, "expected an error for an empty history")
}

// TestUploadReturnsReferenceURL verifies the multipart upload contract and
// the response mapping.
func TestUploadReturnsReferenceURL(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/v1/upload" {
			http.NotFound(responseWriter, request)
			return
		}
		file, header, err := request.FormFile("files")
		if err != nil {
			http.Error(responseWriter, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "file.jpg" {
			http.Error(responseWriter, "unexpected filename", http.StatusBadRequest)
			return
		}
		responseWriter.Header().Set("Content-Type", "application/json")
		fmt.Fprint(responseWriter, `{"file.jpg": "https://cdn.example/uploads/abc.jpg"}`)
	}))
	defer server.Close()

	dir := testingHandle.TempDir()
	path := filepath.Join(dir, "cat.png")
	testutil.RequireNoError(testingHandle, os.WriteFile(path, []byte("fake image bytes"), 0o600), "write test image")

	client := testClient(server)
	url, err := client.Upload(context.Background(), path)
	testutil.RequireNoError(testingHandle, err, "upload")
	testutil.RequireEqual(testingHandle, url, "https://cdn.example/uploads/abc.jpg", "reference url")
}

// TestUploadNon2xxReturnsUploadError verifies gateway upload failures are
// typed.
func TestUploadNon2xxReturnsUploadError(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		http.Error(responseWriter, "file too large", http.StatusRequestEntityTooLarge)
	}))
	defer server.Close()

	dir := testingHandle.TempDir()
	path := filepath.Join(dir, "big.jpg")
	testutil.RequireNoError(testingHandle, os.WriteFile(path, []byte("bytes"), 0o600), "write test image")

	client := testClient(server)
	_, err := client.Upload(context.Background(), path)

	var uploadErr *UploadError
	testutil.RequireTrue(testingHandle, errors.As(err, &uploadErr), "expected an UploadError")
	testutil.RequireEqual(testingHandle, uploadErr.StatusCode, http.StatusRequestEntityTooLarge, "status code")
}

// TestUploadMissingFileReturnsUploadError verifies local read failures are
// reported through the same error type.
func TestUploadMissingFileReturnsUploadError(testingHandle *testing.T) {
	client := NewClient(Options{Logger: quietLogger(), Timeout: time.Second})

	_, err := client.Upload(context.Background(), filepath.Join(testingHandle.TempDir(), "absent.jpg"))

	var uploadErr *UploadError
	testutil.RequireTrue(testingHandle, errors.As(err, &uploadErr), "expected an UploadError")
	testutil.RequireErrorIs(testingHandle, err, os.ErrNotExist, "expected the local error to be wrapped")
}
