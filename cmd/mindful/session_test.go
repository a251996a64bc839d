package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ikmalsaid/mindful-client/internal/chat"
	"github.com/ikmalsaid/mindful-client/internal/config"
	"github.com/ikmalsaid/mindful-client/internal/mindful"
	"github.com/ikmalsaid/mindful-client/internal/preset"
	"github.com/ikmalsaid/mindful-client/internal/testutil"
	"github.com/ikmalsaid/mindful-client/internal/transcript"
)

// chatPayload mirrors the request body the gateway receives in the data
// multipart field.
type chatPayload struct {
	ID       string         `json:"id"`
	Messages []chat.Message `json:"messages"`
	Model    string         `json:"model"`
	Stream   bool           `json:"stream"`
}

// newTestSession builds a session against httptest gateway handlers, saving
// transcripts under a temp directory.
func newTestSession(testingHandle *testing.T, chatHandler http.HandlerFunc, uploadHandler http.HandlerFunc) (*chatSession, string) {
	testingHandle.Helper()

	chatServer := httptest.NewServer(chatHandler)
	testingHandle.Cleanup(chatServer.Close)
	uploadServer := httptest.NewServer(uploadHandler)
	testingHandle.Cleanup(uploadServer.Close)

	loaded, err := preset.Load()
	testutil.RequireNoError(testingHandle, err, "load presets")
	model, err := loaded.Model("omniverse")
	testutil.RequireNoError(testingHandle, err, "resolve model")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	saveDir := testingHandle.TempDir()

	settings := config.Default()
	settings.SaveDir = saveDir
	settings.StreamOutput = false

	client := mindful.NewClient(mindful.Options{
		ChatURL:   chatServer.URL,
		UploadURL: uploadServer.URL,
		AuthValue: "test-token",
		Timeout:   5 * time.Second,
		Logger:    logger,
	})
	store := transcript.NewStore(saveDir, settings.SaveFormat, logger)

	return newChatSession(settings, loaded, client, store, model, logger), saveDir
}

// decodeChatPayload pulls the request payload out of the multipart form.
func decodeChatPayload(testingHandle *testing.T, request *http.Request) chatPayload {
	testingHandle.Helper()
	if err := request.ParseMultipartForm(1 << 20); err != nil {
		testingHandle.Fatalf("parse multipart form: %v", err)
	}
	var payload chatPayload
	if err := json.Unmarshal([]byte(request.FormValue("data")), &payload); err != nil {
		testingHandle.Fatalf("decode data field: %v", err)
	}
	return payload
}

func rejectUploads(testingHandle *testing.T) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		testingHandle.Error("unexpected upload request")
		writer.WriteHeader(http.StatusInternalServerError)
	}
}

func TestTextTurnCommitsThreeMessages(testingHandle *testing.T) {
	var captured chatPayload
	chatHandler := func(writer http.ResponseWriter, request *http.Request) {
		captured = decodeChatPayload(testingHandle, request)
		fmt.Fprint(writer, "data: {\"content\":\"Hi! How can \"}\n")
		fmt.Fprint(writer, "data: {\"content\":\"I help you today?\"}\n")
	}

	session, saveDir := newTestSession(testingHandle, chatHandler, rejectUploads(testingHandle))

	reply, err := session.runTurn(context.Background(), "Hello", nil)
	testutil.RequireNoError(testingHandle, err, "run turn")
	testutil.RequireEqual(testingHandle, reply, "Hi! How can I help you today?", "assembled reply")

	testutil.RequireEqual(testingHandle, len(session.history), 3, "committed message count")
	testutil.RequireEqual(testingHandle, session.history[0].Role, chat.RoleSystem, "first role")
	testutil.RequireEqual(testingHandle, session.history[1].Role, chat.RoleUser, "second role")
	testutil.RequireEqual(testingHandle, session.history[2].Role, chat.RoleAssistant, "third role")
	testutil.RequireEqual(testingHandle, session.history[1].Content.PlainText(), "Hello", "user prompt")
	testutil.RequireEqual(testingHandle, session.history[2].Content.PlainText(), reply, "assistant reply")

	// The request carried the pre-reply history only.
	testutil.RequireEqual(testingHandle, captured.ID, session.taskID(), "request task id")
	testutil.RequireEqual(testingHandle, len(captured.Messages), 2, "request message count")
	testutil.RequireTrue(testingHandle, !captured.Stream, "stream flag is always false on the wire")

	// The transcript landed under <root>/mindful/<date>/<taskid>.json.
	date, err := chat.TaskDate(session.taskID())
	testutil.RequireNoError(testingHandle, err, "task date")
	path := filepath.Join(saveDir, "mindful", date, session.taskID()+".json")
	raw, err := os.ReadFile(path)
	testutil.RequireNoError(testingHandle, err, "read saved transcript")
	var saved []chat.Message
	testutil.RequireNoError(testingHandle, json.Unmarshal(raw, &saved), "decode saved transcript")
	testutil.RequireEqual(testingHandle, len(saved), 3, "saved record count")
}

func TestSecondTurnContinuesSameConversation(testingHandle *testing.T) {
	turn := 0
	chatHandler := func(writer http.ResponseWriter, request *http.Request) {
		turn++
		fmt.Fprintf(writer, "data: {\"content\":\"reply %d\"}\n", turn)
	}

	session, _ := newTestSession(testingHandle, chatHandler, rejectUploads(testingHandle))

	_, err := session.runTurn(context.Background(), "first", nil)
	testutil.RequireNoError(testingHandle, err, "first turn")
	firstID := session.taskID()

	_, err = session.runTurn(context.Background(), "second", nil)
	testutil.RequireNoError(testingHandle, err, "second turn")

	testutil.RequireEqual(testingHandle, session.taskID(), firstID, "task id is stable across turns")
	testutil.RequireEqual(testingHandle, len(session.history), 5, "history grows by two per turn")
}

func TestImageTurnUploadsBeforeChat(testingHandle *testing.T) {
	imagePath := filepath.Join(testingHandle.TempDir(), "cat.jpg")
	testutil.RequireNoError(testingHandle, os.WriteFile(imagePath, []byte("jpegbytes"), 0o644), "write test image")

	uploads := 0
	uploadHandler := func(writer http.ResponseWriter, request *http.Request) {
		uploads++
		file, header, err := request.FormFile("files")
		testutil.RequireNoError(testingHandle, err, "upload form file")
		defer file.Close()
		testutil.RequireEqual(testingHandle, header.Filename, "file.jpg", "upload filename")
		json.NewEncoder(writer).Encode(map[string]string{"file.jpg": "https://files.example/cat.jpg"})
	}

	var captured chatPayload
	chatHandler := func(writer http.ResponseWriter, request *http.Request) {
		captured = decodeChatPayload(testingHandle, request)
		fmt.Fprint(writer, "data: {\"content\":\"It is a cat.\"}\n")
	}

	session, _ := newTestSession(testingHandle, chatHandler, uploadHandler)

	reply, err := session.runTurn(context.Background(), "What is in this image?", []string{imagePath})
	testutil.RequireNoError(testingHandle, err, "image turn")
	testutil.RequireEqual(testingHandle, reply, "It is a cat.", "reply")
	testutil.RequireEqual(testingHandle, uploads, 1, "one upload per attachment")

	// The user message is a part list with the question first, then the
	// uploaded URL.
	userContent := captured.Messages[1].Content
	testutil.RequireEqual(testingHandle, userContent.Kind, chat.ContentParts, "user content kind")
	testutil.RequireEqual(testingHandle, len(userContent.Parts), 2, "part count")
	testutil.RequireEqual(testingHandle, userContent.Parts[0].Type, chat.PartText, "first part is the question")
	testutil.RequireEqual(testingHandle, userContent.Parts[0].Text, "What is in this image?", "question text")
	testutil.RequireEqual(testingHandle, userContent.Parts[1].Type, chat.PartImageURL, "second part is the image")
	testutil.RequireTrue(testingHandle, userContent.Parts[1].FileURL != nil, "image part carries a file url")
	testutil.RequireEqual(testingHandle, userContent.Parts[1].FileURL.URL, "https://files.example/cat.jpg", "uploaded url")
}

func TestUploadFailureLeavesHistoryUncommitted(testingHandle *testing.T) {
	imagePath := filepath.Join(testingHandle.TempDir(), "big.jpg")
	testutil.RequireNoError(testingHandle, os.WriteFile(imagePath, []byte("jpegbytes"), 0o644), "write test image")

	uploadHandler := func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusRequestEntityTooLarge)
	}
	chatHandler := func(writer http.ResponseWriter, request *http.Request) {
		testingHandle.Error("chat request must not follow a failed upload")
	}

	session, _ := newTestSession(testingHandle, chatHandler, uploadHandler)

	_, err := session.runTurn(context.Background(), "describe", []string{imagePath})
	var uploadErr *mindful.UploadError
	testutil.RequireTrue(testingHandle, err != nil, "turn fails")
	testutil.RequireTrue(testingHandle, errors.As(err, &uploadErr), "error is an upload error")
	testutil.RequireEqual(testingHandle, len(session.history), 0, "history stays empty after a failed turn")
	testutil.RequireEqual(testingHandle, session.taskID(), "", "no task id is committed")
}

func TestSwitchAgentRealignsSystemPrompt(testingHandle *testing.T) {
	chatHandler := func(writer http.ResponseWriter, request *http.Request) {
		fmt.Fprint(writer, "data: {\"content\":\"ok\"}\n")
	}
	session, _ := newTestSession(testingHandle, chatHandler, rejectUploads(testingHandle))

	_, err := session.runTurn(context.Background(), "hello", nil)
	testutil.RequireNoError(testingHandle, err, "first turn")
	firstID := session.taskID()
	firstPrompt := session.history[0].Content.Text

	testutil.RequireNoError(testingHandle, session.switchAgent("custom", "You are a pirate."), "switch agent")
	_, err = session.runTurn(context.Background(), "ahoy", nil)
	testutil.RequireNoError(testingHandle, err, "second turn")

	testutil.RequireEqual(testingHandle, session.taskID(), firstID, "agent change keeps the task id")
	testutil.RequireTrue(testingHandle, session.history[0].Content.Text != firstPrompt, "system prompt was replaced")
	testutil.RequireStringContains(testingHandle, session.history[0].Content.Text, "You are a pirate.", "instruction substituted")
}
