package mindful

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/ikmalsaid/mindful-client/internal/testutil"
)

// quietLogger keeps decoder debug output away from test logs.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

// feedInChunks pushes a raw stream into a fresh decoder using the given
// chunk size and returns the flushed result.
func feedInChunks(raw string, chunkSize int) *StreamDecoder {
	decoder := NewStreamDecoder(nil, 0, quietLogger())
	for start := 0; start < len(raw); start += chunkSize {
		end := start + chunkSize
		if end > len(raw) {
			end = len(raw)
		}
		decoder.Feed([]byte(raw[start:end]))
	}
	return decoder
}

// TestDecoderChunkBoundaryIndependence verifies that accumulation does not
// depend on how network chunks fall relative to line boundaries.
func TestDecoderChunkBoundaryIndependence(testingHandle *testing.T) {
	fragments := []string{"The ", "quick ", "brown ", "fox", " jumps"}
	var raw strings.Builder
	for _, fragment := range fragments {
		fmt.Fprintf(&raw, "data: {\"content\": %q}\n", fragment)
	}
	want := strings.Join(fragments, "")

	for _, chunkSize := range []int{1, 2, 3, 7, 16, 1024} {
		decoder := feedInChunks(raw.String(), chunkSize)
		testutil.RequireEqual(testingHandle, decoder.Flush(), want,
			fmt.Sprintf("accumulated text with chunk size %d", chunkSize))
		testutil.RequireEqual(testingHandle, decoder.Skipped(), 0, "no lines should be skipped")
	}
}

// TestDecoderSkipsMalformedLines verifies malformed JSON is counted and
// skipped while later valid lines still decode.
func TestDecoderSkipsMalformedLines(testingHandle *testing.T) {
	raw := "data: {\"content\": \"one \"}\n" +
		"data: {\"content\": \"two\n" + // split mid-record by the upstream
		"data: {\"content\": \"three\"}\n"

	decoder := feedInChunks(raw, 5)
	testutil.RequireEqual(testingHandle, decoder.Flush(), "one three", "accumulated text")
	testutil.RequireEqual(testingHandle, decoder.Skipped(), 1, "skipped line count")
}

// TestDecoderIgnoresNonDataLines verifies bookkeeping lines are not parsed.
func TestDecoderIgnoresNonDataLines(testingHandle *testing.T) {
	raw := ": keepalive\n" +
		"event: message\n" +
		"data: {\"content\": \"hello\"}\n" +
		"\n"

	decoder := feedInChunks(raw, 1024)
	testutil.RequireEqual(testingHandle, decoder.Flush(), "hello", "accumulated text")
	testutil.RequireEqual(testingHandle, decoder.Skipped(), 0, "non-data lines are not counted as skipped")
}

// TestDecoderFlushParsesTrailingFragment verifies the final unterminated
// line is parsed on flush.
func TestDecoderFlushParsesTrailingFragment(testingHandle *testing.T) {
	decoder := NewStreamDecoder(nil, 0, quietLogger())
	decoder.Feed([]byte("data: {\"content\": \"first \"}\ndata: {\"content\": \"last\"}"))

	testutil.RequireEqual(testingHandle, decoder.Flush(), "first last", "trailing fragment must be decoded")
}

// TestDecoderStripsSingleSurroundingQuotes verifies the defensive quote
// strip applies once to each end.
func TestDecoderStripsSingleSurroundingQuotes(testingHandle *testing.T) {
	decoder := NewStreamDecoder(nil, 0, quietLogger())
	decoder.Feed([]byte("data: {\"content\": \"\\\"quoted reply\\\"\"}\n"))

	testutil.RequireEqual(testingHandle, decoder.Flush(), "quoted reply", "surrounding quotes must be stripped")
}

// TestDecoderContentFieldAbsent verifies lines without a content field
// contribute nothing but are not errors.
func TestDecoderContentFieldAbsent(testingHandle *testing.T) {
	raw := "data: {\"status\": \"thinking\"}\n" +
		"data: {\"content\": \"done\"}\n"

	decoder := feedInChunks(raw, 1024)
	testutil.RequireEqual(testingHandle, decoder.Flush(), "done", "accumulated text")
	testutil.RequireEqual(testingHandle, decoder.Skipped(), 0, "valid JSON without content is not skipped")
}

// TestDecoderEchoesCharacters verifies the live sink receives every decoded
// character.
func TestDecoderEchoesCharacters(testingHandle *testing.T) {
	var echoed strings.Builder
	decoder := NewStreamDecoder(&echoed, 0, quietLogger())
	decoder.Feed([]byte("data: {\"content\": \"hi there\"}\n"))
	decoder.Flush()

	testutil.RequireEqual(testingHandle, echoed.String(), "hi there", "echoed output")
}

// TestDecoderEmptyStream verifies a contentless stream yields an empty but
// successful result.
func TestDecoderEmptyStream(testingHandle *testing.T) {
	decoder := NewStreamDecoder(nil, 0, quietLogger())
	testutil.RequireEqual(testingHandle, decoder.Flush(), "", "empty stream result")
}
