// Package sse splits Server-Sent-Events byte streams into logical lines and
// event frames. The splitter is deliberately dumb: it trims, drops blanks and
// comments, and leaves all classification of `event:` vs `data:` payloads to
// the provider adapters, whose reset rules differ.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Done is the data payload some providers send to mark "no more content".
// It is not a stream close: bookkeeping events may still follow.
const Done = "[DONE]"

const (
	scannerBufferSize  = 64 * 1024
	maxScannerLineSize = 2 * 1024 * 1024
)

// SplitChunk turns one raw chunk into logical SSE lines. Blank lines and
// comment lines (leading ':') are dropped; surviving lines are trimmed.
// The chunk is assumed to contain whole lines; adapters that read from an
// io.Reader should use FrameScanner instead, which handles line buffering.
func SplitChunk(chunk string) []string {
	var lines []string
	for _, line := range strings.Split(chunk, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// IsDone reports whether a data payload is the end-of-content sentinel.
func IsDone(data string) bool {
	return data == Done
}

// Frame is one complete logical event: the current event type plus one data
// payload. Event persists across consecutive data lines until a new `event:`
// line overwrites it.
type Frame struct {
	Event string
	Data  string
}

// FrameScanner reads an SSE stream and yields Frames. It owns the current
// event type; a `data:` line arriving before any `event:` line yields a
// Frame with an empty Event (some providers never send event lines at all).
type FrameScanner struct {
	scanner *bufio.Scanner
	event   string
}

// NewFrameScanner wraps an SSE response body.
func NewFrameScanner(r io.Reader) *FrameScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, scannerBufferSize), maxScannerLineSize)
	return &FrameScanner{scanner: s}
}

// Next returns the next frame. It returns io.EOF when the stream ends and
// the underlying read error otherwise. Empty data payloads are skipped.
func (fs *FrameScanner) Next() (Frame, error) {
	for fs.scanner.Scan() {
		line := strings.TrimSpace(fs.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "event:"); ok {
			fs.event = strings.TrimSpace(rest)
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			data := strings.TrimSpace(rest)
			if data == "" {
				continue
			}
			return Frame{Event: fs.event, Data: data}, nil
		}
		// Field names other than event/data (id:, retry:) are ignored.
	}
	if err := fs.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}
