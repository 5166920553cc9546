// Package lorem is a mock provider that streams lorem ipsum text. It
// implements the full Session surface without touching the network, so
// facade tests and example programs run without real API keys.
package lorem

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"

	aibackend "github.com/sjrsjz/NPULearn"
)

const (
	defaultWords = 40
	defaultDelay = 10 * time.Millisecond
)

// Chat is a mock conversation session. It accepts any API key type.
type Chat struct {
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Words        int               `json:"words"`
	DelayMillis  int               `json:"delay_ms"`
	History      aibackend.History `json:"history"`

	generator *loremgen.Lorem
}

// New creates a mock session streaming at roughly 100 words per second.
func New() *Chat {
	return &Chat{
		Words:       defaultWords,
		DelayMillis: int(defaultDelay / time.Millisecond),
		generator:   loremgen.New(),
	}
}

// Kind implements Session.
func (c *Chat) Kind() string { return "lorem" }

// GenerateStream implements Session. The response is generated locally and
// streamed word by word, honoring context cancellation between words.
func (c *Chat) GenerateStream(ctx context.Context, _ aibackend.APIKey, prompt string, sink aibackend.Sink) (string, error) {
	if c.generator == nil {
		c.generator = loremgen.New()
	}

	words := c.Words
	if words <= 0 {
		words = defaultWords
	}
	text := c.generateText(words)

	var full strings.Builder
	for i, word := range strings.Fields(text) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		delta := word
		if i > 0 {
			delta = " " + word
		}
		full.WriteString(delta)
		sink(delta)
		if c.DelayMillis > 0 {
			time.Sleep(time.Duration(c.DelayMillis) * time.Millisecond)
		}
	}

	response := full.String()
	c.History.LastPrompt = prompt
	c.History.Push(aibackend.RoleUser, prompt)
	c.History.Push(aibackend.RoleAssistant, response)
	return response, nil
}

// RegenerateStream implements Session.
func (c *Chat) RegenerateStream(ctx context.Context, key aibackend.APIKey, sink aibackend.Sink) (string, error) {
	prompt, err := c.History.Withdraw()
	if err != nil {
		return "", err
	}
	return c.GenerateStream(ctx, key, prompt, sink)
}

// Withdraw implements Session.
func (c *Chat) Withdraw() (string, error) { return c.History.Withdraw() }

// ClearContext implements Session.
func (c *Chat) ClearContext() { c.History.Clear() }

// SetSystemPrompt implements Session.
func (c *Chat) SetSystemPrompt(prompt string) { c.SystemPrompt = prompt }

// SetParameter implements Session. Recognized keys: "words" (response
// length), "delay_ms" (per-word streaming delay).
func (c *Chat) SetParameter(key, value string) error {
	switch key {
	case "words":
		v, err := strconv.Atoi(value)
		if err != nil {
			return &aibackend.ParameterError{Key: key, Value: value, Reason: "not an integer", Err: err}
		}
		c.Words = v
	case "delay_ms":
		v, err := strconv.Atoi(value)
		if err != nil {
			return &aibackend.ParameterError{Key: key, Value: value, Reason: "not an integer", Err: err}
		}
		c.DelayMillis = v
	default:
		return &aibackend.ParameterError{Key: key, Value: value, Reason: "unknown parameter", Err: aibackend.ErrUnknownParameter}
	}
	return nil
}

// Snapshot implements Session.
func (c *Chat) Snapshot() ([]byte, error) {
	return json.Marshal(c)
}

// RestoreSnapshot implements Session.
func (c *Chat) RestoreSnapshot(data []byte) error {
	var restored Chat
	if err := json.Unmarshal(data, &restored); err != nil {
		return fmt.Errorf("failed to restore lorem session: %w", err)
	}
	restored.generator = loremgen.New()
	*c = restored
	return nil
}

// LoadTranscript implements Session.
func (c *Chat) LoadTranscript(t *aibackend.Transcript) error {
	c.History.LoadTranscript(t)
	return nil
}

// SaveTranscript implements Session.
func (c *Chat) SaveTranscript() (*aibackend.Transcript, error) {
	return c.History.SaveTranscript(), nil
}

// generateText produces roughly targetWords words of lorem ipsum, with a
// paragraph break every ~50 words.
func (c *Chat) generateText(targetWords int) string {
	var sb strings.Builder
	wordCount := 0
	for wordCount < targetWords {
		sentence := c.generator.Sentence(5, 15)
		sb.WriteString(sentence)
		sb.WriteString(" ")
		wordCount += len(strings.Fields(sentence))
		if wordCount%50 == 0 {
			sb.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(sb.String())
}
