package mindful

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// streamLinePrefix marks parseable protocol lines in the response stream.
const streamLinePrefix = "data: "

// streamRecord is the JSON payload of one protocol line. Only the content
// field matters to the client; everything else is ignored.
type streamRecord struct {
	// Content is the incremental text fragment, absent on bookkeeping lines.
	Content *string `json:"content"`
}

// StreamDecoder incrementally parses a chunked response stream of
// newline-delimited "data: <json>" lines into one accumulated string.
//
// Network chunks may split a protocol line at any byte boundary, so the
// decoder keeps the trailing unterminated fragment across Feed calls and
// only parses fully terminated lines. Lines that fail JSON decoding are
// counted and skipped, never raised: upstream fragmentation makes them
// expected.
type StreamDecoder struct {
	// remainder is the unterminated tail of the previous chunk.
	remainder string
	// text accumulates decoded content fragments in arrival order.
	text strings.Builder
	// echo receives decoded characters live, when set.
	echo io.Writer
	// echoDelay is the cosmetic pause between echoed characters.
	echoDelay time.Duration
	// skipped counts lines dropped for failing to decode.
	skipped int
	// logger reports skipped lines at debug level.
	logger *slog.Logger
}

// NewStreamDecoder builds a decoder. A nil echo writer disables the live
// typewriter output; the delay only applies when echo is set.
func NewStreamDecoder(echo io.Writer, echoDelay time.Duration, logger *slog.Logger) *StreamDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamDecoder{
		echo:      echo,
		echoDelay: echoDelay,
		logger:    logger,
	}
}

// Feed consumes one network chunk. All fully terminated lines are parsed;
// the trailing fragment is retained for the next chunk.
func (d *StreamDecoder) Feed(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	buffered := d.remainder + string(chunk)
	lines := strings.Split(buffered, "\n")
	for _, line := range lines[:len(lines)-1] {
		d.consumeLine(line)
	}
	d.remainder = lines[len(lines)-1]
}

// Flush parses any remaining buffered fragment and returns the final
// accumulated text with a single leading and trailing quote character
// stripped, guarding against a quoting artifact in the upstream payload.
func (d *StreamDecoder) Flush() string {
	if d.remainder != "" {
		d.consumeLine(d.remainder)
		d.remainder = ""
	}
	result := d.text.String()
	result = strings.TrimPrefix(result, `"`)
	result = strings.TrimSuffix(result, `"`)
	return result
}

// Skipped reports how many lines failed to decode and were dropped.
func (d *StreamDecoder) Skipped() int {
	return d.skipped
}

// consumeLine applies the protocol rule to one complete line.
func (d *StreamDecoder) consumeLine(line string) {
	if strings.TrimSpace(line) == "" || !strings.HasPrefix(line, streamLinePrefix) {
		return
	}
	var record streamRecord
	if err := json.Unmarshal([]byte(line[len(streamLinePrefix):]), &record); err != nil {
		d.skipped++
		d.logger.Debug("incomplete stream line skipped", "line", line)
		return
	}
	if record.Content == nil {
		return
	}
	d.text.WriteString(*record.Content)
	d.echoContent(*record.Content)
}

// echoContent writes decoded text to the live sink one character at a time.
// The delay is cosmetic and independent of network timing.
func (d *StreamDecoder) echoContent(content string) {
	if d.echo == nil {
		return
	}
	for _, char := range content {
		fmt.Fprint(d.echo, string(char))
		if d.echoDelay > 0 {
			time.Sleep(d.echoDelay)
		}
	}
}
