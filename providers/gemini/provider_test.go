package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	aibackend "github.com/sjrsjz/NPULearn"
)

func geminiKey() aibackend.APIKey {
	return aibackend.APIKey{Key: "test-key", Name: "test", Type: aibackend.KeyTypeGemini}
}

// newTestChat returns a session wired to a mock server that streams the given
// body in small chunks, exercising the resumable scanner path.
func newTestChat(t *testing.T, body string, status int) (*Chat, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.WriteHeader(status)
		flusher := w.(http.Flusher)
		for i := 0; i < len(body); i += 7 {
			end := i + 7
			if end > len(body) {
				end = len(body)
			}
			w.Write([]byte(body[i:end]))
			flusher.Flush()
		}
	}))
	t.Cleanup(server.Close)

	c := New()
	c.httpClient = server.Client()
	c.baseURL = server.URL
	return c, server
}

func TestGenerateStream(t *testing.T) {
	body := `[{"candidates":[{"content":{"parts":[{"text":"Hello"}]}}]},
{"candidates":[{"content":{"parts":[{"text":", world"}]}}]}]`
	c, _ := newTestChat(t, body, http.StatusOK)

	var deltas []string
	got, err := c.GenerateStream(context.Background(), geminiKey(), "hi", func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if got != "Hello, world" {
		t.Errorf("full text = %q", got)
	}
	if len(deltas) != 2 || deltas[0] != "Hello" || deltas[1] != ", world" {
		t.Errorf("deltas = %q", deltas)
	}
	if len(c.History.Messages) != 2 {
		t.Fatalf("history length = %d, want 2", len(c.History.Messages))
	}
	if c.History.Messages[0].Role != aibackend.RoleUser || c.History.Messages[0].Content != "hi" {
		t.Errorf("user turn = %+v", c.History.Messages[0])
	}
	if c.History.Messages[1].Role != aibackend.RoleAssistant || c.History.Messages[1].Content != "Hello, world" {
		t.Errorf("assistant turn = %+v", c.History.Messages[1])
	}
}

func TestGenerateStreamSafetyBlocked(t *testing.T) {
	body := `[{"candidates":[{"content":{"parts":[{"text":"partial"}]}}]},
{"candidates":[{"finishReason":"SAFETY","safetyRatings":[{"category":"HARM_CATEGORY_HATE_SPEECH","blocked":true},{"category":"HARM_CATEGORY_HARASSMENT","blocked":false}]}]}]`
	c, _ := newTestChat(t, body, http.StatusOK)

	var deltas []string
	_, err := c.GenerateStream(context.Background(), geminiKey(), "hi", func(d string) {
		deltas = append(deltas, d)
	})
	if !aibackend.IsSafetyBlocked(err) {
		t.Fatalf("expected safety block, got %v", err)
	}
	var blocked *aibackend.SafetyBlockedError
	if !errors.As(err, &blocked) {
		t.Fatal("error is not a SafetyBlockedError")
	}
	if len(blocked.Categories) != 1 || blocked.Categories[0] != "HARM_CATEGORY_HATE_SPEECH" {
		t.Errorf("categories = %q", blocked.Categories)
	}
	// Deltas emitted before the block are not retracted.
	if len(deltas) != 1 || deltas[0] != "partial" {
		t.Errorf("deltas = %q", deltas)
	}
	// The failed turn must not enter the history.
	if len(c.History.Messages) != 0 {
		t.Errorf("history length = %d, want 0", len(c.History.Messages))
	}
}

func TestGenerateStreamPlaceholderOnUnparseableContent(t *testing.T) {
	// Valid objects, but none carries candidates[0].content.parts[0].text.
	body := `[{"usageMetadata":{"totalTokenCount":3}},{"modelVersion":"x"}]`
	c, _ := newTestChat(t, body, http.StatusOK)

	got, err := c.GenerateStream(context.Background(), geminiKey(), "hi", func(string) {})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if !aibackend.IsPlaceholder(got) {
		t.Errorf("got %q, want placeholder", got)
	}
}

func TestGenerateStreamEmptyStream(t *testing.T) {
	c, _ := newTestChat(t, "", http.StatusOK)

	_, err := c.GenerateStream(context.Background(), geminiKey(), "hi", func(string) {})
	if !errors.Is(err, aibackend.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
}

func TestGenerateStreamHTTPError(t *testing.T) {
	c, _ := newTestChat(t, `{"error":{"message":"invalid key"}}`, http.StatusForbidden)

	_, err := c.GenerateStream(context.Background(), geminiKey(), "hi", func(string) {})
	var streamErr *aibackend.StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected StreamError, got %v", err)
	}
	if streamErr.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d", streamErr.StatusCode)
	}
	if !errors.Is(err, aibackend.ErrConnection) {
		t.Error("should unwrap to ErrConnection")
	}
}

func TestGenerateStreamKeyTypeMismatch(t *testing.T) {
	c := New()
	key := aibackend.APIKey{Key: "k", Type: aibackend.KeyTypeCoze}
	_, err := c.GenerateStream(context.Background(), key, "hi", func(string) {})
	if !aibackend.IsKeyTypeMismatch(err) {
		t.Fatalf("expected key type mismatch, got %v", err)
	}
}

func TestRegenerateStream(t *testing.T) {
	body := `[{"candidates":[{"content":{"parts":[{"text":"take two"}]}}]}]`
	c, _ := newTestChat(t, body, http.StatusOK)
	c.History.Push(aibackend.RoleUser, "original prompt")
	c.History.Push(aibackend.RoleAssistant, "take one")

	got, err := c.RegenerateStream(context.Background(), geminiKey(), func(string) {})
	if err != nil {
		t.Fatalf("RegenerateStream: %v", err)
	}
	if got != "take two" {
		t.Errorf("full text = %q", got)
	}
	msgs := c.History.Messages
	if len(msgs) != 2 {
		t.Fatalf("history length = %d, want 2", len(msgs))
	}
	if msgs[0].Content != "original prompt" || msgs[1].Content != "take two" {
		t.Errorf("history = %+v", msgs)
	}
}

func TestSetParameter(t *testing.T) {
	c := New()
	if err := c.SetParameter("temperature", "0.5"); err != nil {
		t.Fatal(err)
	}
	if c.Temperature != 0.5 {
		t.Errorf("temperature = %v", c.Temperature)
	}
	if err := c.SetParameter("model", "gemini-2.0-flash"); err != nil {
		t.Fatal(err)
	}
	if c.Model != "gemini-2.0-flash" {
		t.Errorf("model = %q", c.Model)
	}
	if err := c.SetParameter("temperature", "hot"); err == nil {
		t.Error("expected error for non-numeric temperature")
	}
	err := c.SetParameter("frobnicate", "1")
	if !errors.Is(err, aibackend.ErrUnknownParameter) {
		t.Errorf("expected ErrUnknownParameter, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := New()
	c.SetSystemPrompt("be terse")
	c.Model = "gemini-2.0-flash"
	c.History.Push(aibackend.RoleUser, "q")
	c.History.Push(aibackend.RoleAssistant, "a")

	data, err := c.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	restored := New()
	if err := restored.RestoreSnapshot(data); err != nil {
		t.Fatal(err)
	}
	if restored.Model != "gemini-2.0-flash" || restored.SystemPrompt != "be terse" {
		t.Errorf("restored = %+v", restored)
	}
	if len(restored.History.Messages) != 2 {
		t.Errorf("restored history length = %d", len(restored.History.Messages))
	}
}

func TestRequestBodyShape(t *testing.T) {
	c := New()
	c.SetSystemPrompt("sys")
	c.History.Push(aibackend.RoleUser, "earlier question")
	c.History.Push(aibackend.RoleAssistant, "earlier answer")

	raw, err := c.buildRequestBody("new question")
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	for _, want := range []string{
		`"contents"`, `"generationConfig"`, `"safetySettings"`,
		`"systemInstruction"`, `"role":"model"`, `"role":"user"`,
		"earlier question", "new question", "BLOCK_NONE",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %s", want)
		}
	}
}
