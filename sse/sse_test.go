package sse

import (
	"io"
	"strings"
	"testing"
)

func TestSplitChunk(t *testing.T) {
	tests := []struct {
		name  string
		chunk string
		want  []string
	}{
		{
			name:  "comment and blank dropped",
			chunk: ":ping\n\ndata: hello\n\n",
			want:  []string{"data: hello"},
		},
		{
			name:  "multiple fields",
			chunk: "event: message\ndata: {\"a\":1}\n\nevent: done\ndata: [DONE]\n",
			want:  []string{"event: message", "data: {\"a\":1}", "event: done", "data: [DONE]"},
		},
		{
			name:  "crlf trimmed",
			chunk: "data: x\r\ndata: y\r\n",
			want:  []string{"data: x", "data: y"},
		},
		{
			name:  "only noise",
			chunk: ":keepalive\n\n:keepalive\n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitChunk(tt.chunk)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitChunk() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFrameScanner(t *testing.T) {
	stream := strings.Join([]string{
		": handshake comment",
		"event: conversation.chat.created",
		"data: {\"id\":\"c1\"}",
		"",
		"event: conversation.message.delta",
		"data: {\"content\":\"hello\"}",
		"data: {\"content\":\"world\"}",
		"",
		"data: [DONE]",
		"",
	}, "\n")

	fs := NewFrameScanner(strings.NewReader(stream))

	want := []Frame{
		{Event: "conversation.chat.created", Data: "{\"id\":\"c1\"}"},
		{Event: "conversation.message.delta", Data: "{\"content\":\"hello\"}"},
		{Event: "conversation.message.delta", Data: "{\"content\":\"world\"}"},
		{Event: "conversation.message.delta", Data: "[DONE]"},
	}
	for i, w := range want {
		got, err := fs.Next()
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("frame %d = %+v, want %+v", i, got, w)
		}
	}
	if _, err := fs.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after stream end, got %v", err)
	}
}

func TestFrameScannerNoEventLines(t *testing.T) {
	fs := NewFrameScanner(strings.NewReader("data: {\"x\":1}\n\ndata: [DONE]\n"))

	f, err := fs.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Event != "" {
		t.Errorf("Event = %q, want empty", f.Event)
	}
	if f.Data != "{\"x\":1}" {
		t.Errorf("Data = %q", f.Data)
	}

	f, err = fs.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsDone(f.Data) {
		t.Errorf("IsDone(%q) = false, want true", f.Data)
	}
}

func TestFrameScannerIgnoresOtherFields(t *testing.T) {
	fs := NewFrameScanner(strings.NewReader("id: 7\nretry: 3000\ndata: payload\n"))
	f, err := fs.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Data != "payload" {
		t.Errorf("Data = %q, want %q", f.Data, "payload")
	}
}
