package deepseek

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	aibackend "github.com/sjrsjz/NPULearn"
)

func deepseekKey() aibackend.APIKey {
	return aibackend.APIKey{Key: "test-key", Name: "test", Type: aibackend.KeyTypeDeepSeek}
}

func newTestChat(t *testing.T, handler http.HandlerFunc) *Chat {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New()
	c.httpClient = server.Client()
	c.baseURL = server.URL
	return c
}

func sseHandler(t *testing.T, lines []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			w.Write([]byte(line + "\n\n"))
			flusher.Flush()
		}
	}
}

func TestGenerateStream(t *testing.T) {
	c := newTestChat(t, sseHandler(t, []string{
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
	}))

	var deltas []string
	got, err := c.GenerateStream(context.Background(), deepseekKey(), "hi", func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if got != "Hello" {
		t.Errorf("full text = %q", got)
	}
	if len(deltas) != 2 || deltas[0] != "Hel" || deltas[1] != "lo" {
		t.Errorf("deltas = %q", deltas)
	}
	if len(c.History.Messages) != 2 {
		t.Errorf("history length = %d, want 2", len(c.History.Messages))
	}
}

func TestGenerateStreamSkipsMalformedLines(t *testing.T) {
	c := newTestChat(t, sseHandler(t, []string{
		`data: {not json`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	}))

	got, err := c.GenerateStream(context.Background(), deepseekKey(), "hi", func(string) {})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if got != "ok" {
		t.Errorf("full text = %q", got)
	}
}

func TestGenerateStreamPlaceholder(t *testing.T) {
	// Bytes arrive but no line carries extractable content.
	c := newTestChat(t, sseHandler(t, []string{
		`data: {"choices":[{"delta":{}}]}`,
		`data: [DONE]`,
	}))

	got, err := c.GenerateStream(context.Background(), deepseekKey(), "hi", func(string) {})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if !aibackend.IsPlaceholder(got) {
		t.Errorf("got %q, want placeholder", got)
	}
}

func TestGenerateStreamEmptyStream(t *testing.T) {
	c := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := c.GenerateStream(context.Background(), deepseekKey(), "hi", func(string) {})
	if !errors.Is(err, aibackend.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
}

func TestGenerateStreamHTTPError(t *testing.T) {
	c := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	})

	_, err := c.GenerateStream(context.Background(), deepseekKey(), "hi", func(string) {})
	var streamErr *aibackend.StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected StreamError, got %v", err)
	}
	if streamErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", streamErr.StatusCode)
	}
}

func TestGenerateStreamKeyTypeMismatch(t *testing.T) {
	c := New()
	key := aibackend.APIKey{Key: "k", Type: aibackend.KeyTypeGemini}
	_, err := c.GenerateStream(context.Background(), key, "hi", func(string) {})
	if !aibackend.IsKeyTypeMismatch(err) {
		t.Fatalf("expected key type mismatch, got %v", err)
	}
}

func TestBuildRequest(t *testing.T) {
	c := New()
	c.SetSystemPrompt("be terse")
	c.History.Push(aibackend.RoleUser, "q1")
	c.History.Push(aibackend.RoleAssistant, "a1")

	req := c.buildRequest("q2")
	if !req.Stream {
		t.Error("stream must be enabled")
	}
	if req.Model != c.Model {
		t.Errorf("model = %q", req.Model)
	}
	// system preamble + q1 + a1 + q2
	if len(req.Messages) != 4 {
		t.Fatalf("messages length = %d, want 4", len(req.Messages))
	}
	if req.Messages[0].Role != "system" {
		t.Errorf("first role = %q", req.Messages[0].Role)
	}
	if last := req.Messages[3]; last.Role != "user" || last.Content != "q2" {
		t.Errorf("last message = %+v", last)
	}
	if req.FrequencyPenalty == nil || *req.FrequencyPenalty != 0.0 {
		t.Error("frequency_penalty should be sent explicitly as 0.0")
	}

	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) == "" {
		t.Fatal("empty request body")
	}
}

func TestSetParameter(t *testing.T) {
	c := New()
	for key, value := range map[string]string{
		"temperature":       "0.7",
		"top_p":             "0.9",
		"frequency_penalty": "0.5",
		"presence_penalty":  "0.25",
		"max_tokens":        "2048",
		"model":             "deepseek-reasoner",
	} {
		if err := c.SetParameter(key, value); err != nil {
			t.Errorf("SetParameter(%q, %q): %v", key, value, err)
		}
	}
	if c.Temperature != 0.7 || c.MaxTokens != 2048 || c.Model != "deepseek-reasoner" {
		t.Errorf("chat = %+v", c)
	}
	if err := c.SetParameter("nope", "1"); !errors.Is(err, aibackend.ErrUnknownParameter) {
		t.Errorf("expected ErrUnknownParameter, got %v", err)
	}
}

func TestWithdrawAndRegenerate(t *testing.T) {
	c := newTestChat(t, sseHandler(t, []string{
		`data: {"choices":[{"delta":{"content":"second answer"}}]}`,
		`data: [DONE]`,
	}))
	c.History.Push(aibackend.RoleUser, "question")
	c.History.Push(aibackend.RoleAssistant, "first answer")

	got, err := c.RegenerateStream(context.Background(), deepseekKey(), func(string) {})
	if err != nil {
		t.Fatalf("RegenerateStream: %v", err)
	}
	if got != "second answer" {
		t.Errorf("full text = %q", got)
	}
	if len(c.History.Messages) != 2 {
		t.Fatalf("history length = %d, want 2", len(c.History.Messages))
	}
	if c.History.Messages[1].Content != "second answer" {
		t.Errorf("assistant turn = %+v", c.History.Messages[1])
	}
}
