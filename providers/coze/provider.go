// Package coze adapts the Coze v3 chat API to the aibackend Session
// interface. Coze streams standard SSE but wraps content in conversation
// lifecycle events (created, in_progress, delta, completed, failed); the
// adapter runs a small state machine over those events and filters the
// bot-platform metadata Coze embeds in answer text.
package coze

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	aibackend "github.com/sjrsjz/NPULearn"
)

const apiURL = "https://api.coze.cn/v3/chat"

// Defaults from the stock bot configuration; override per session with
// SetParameter("bot_id", ...) / SetParameter("user_id", ...).
const (
	defaultBotID  = "7517194614005055523"
	defaultUserID = "7510127542079569960"
)

// message is one turn in the additional_messages request field.
type message struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// request is the v3/chat request body. History rides in additional_messages
// because auto_save_history is off: the session owns the conversation state,
// not the bot platform.
type request struct {
	BotID              string    `json:"bot_id"`
	UserID             string    `json:"user_id"`
	Stream             bool      `json:"stream"`
	AutoSaveHistory    bool      `json:"auto_save_history"`
	AdditionalMessages []message `json:"additional_messages"`
}

// Chat is a Coze conversation session. Fields are exported for snapshot
// serialization; mutate them through the Session methods.
type Chat struct {
	BotID        string            `json:"bot_id"`
	UserID       string            `json:"user_id"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Params       map[string]string `json:"params,omitempty"`
	History      aibackend.History `json:"history"`

	httpClient *http.Client
	apiURL     string
}

// New creates a session against the default bot, with a fresh random user
// identity when the stock one is not wanted downstream.
func New() *Chat {
	return &Chat{
		BotID:      defaultBotID,
		UserID:     defaultUserID,
		Params:     make(map[string]string),
		httpClient: http.DefaultClient,
	}
}

// NewWithIdentity creates a session for a specific bot with a generated
// per-session user ID.
func NewWithIdentity(botID string) *Chat {
	c := New()
	if botID != "" {
		c.BotID = botID
	}
	c.UserID = uuid.NewString()
	return c
}

// Kind implements Session.
func (c *Chat) Kind() string { return "coze" }

func (c *Chat) endpoint() string {
	if c.apiURL != "" {
		return c.apiURL
	}
	return apiURL
}

func (c *Chat) buildRequest(prompt string) *request {
	var messages []message

	// The system instruction rides as an assistant preamble; Coze has no
	// system role in additional_messages.
	if c.SystemPrompt != "" || len(c.History.Messages) > 0 {
		instruction := c.SystemPrompt
		messages = append(messages, message{
			Role:        "assistant",
			Content:     "# I have double checked that my basic system settings are as follows, I will never disobey them:\n" + instruction + "\n",
			ContentType: "text",
		})
	}
	for _, m := range c.History.Messages {
		if m.Content == "" || m.Role == aibackend.RoleSystem {
			continue
		}
		messages = append(messages, message{
			Role:        string(m.Role),
			Content:     m.Content,
			ContentType: "text",
		})
	}
	messages = append(messages, message{Role: "user", Content: prompt, ContentType: "text"})

	return &request{
		BotID:              c.BotID,
		UserID:             c.UserID,
		Stream:             true,
		AutoSaveHistory:    false,
		AdditionalMessages: messages,
	}
}

// GenerateStream implements Session.
func (c *Chat) GenerateStream(ctx context.Context, key aibackend.APIKey, prompt string, sink aibackend.Sink) (string, error) {
	if key.Type != aibackend.KeyTypeCoze {
		return "", &aibackend.KeyTypeError{Want: aibackend.KeyTypeCoze, Got: key.Type}
	}

	body, err := json.Marshal(c.buildRequest(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to build coze request: %w", err)
	}
	c.History.LastPrompt = prompt

	response, err := c.stream(ctx, key.Key, body, sink)
	if err != nil {
		return "", err
	}

	c.History.Push(aibackend.RoleUser, prompt)
	c.History.Push(aibackend.RoleAssistant, response)
	return response, nil
}

// RegenerateStream implements Session.
func (c *Chat) RegenerateStream(ctx context.Context, key aibackend.APIKey, sink aibackend.Sink) (string, error) {
	if key.Type != aibackend.KeyTypeCoze {
		return "", &aibackend.KeyTypeError{Want: aibackend.KeyTypeCoze, Got: key.Type}
	}
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

// SetParameter implements Session. Coze takes a free-form parameter map;
// bot_id and user_id are recognized directly, everything else is stored
// verbatim for callers that inspect the session.
func (c *Chat) SetParameter(key, value string) error {
	switch key {
	case "bot_id":
		c.BotID = value
	case "user_id":
		c.UserID = value
	default:
		if c.Params == nil {
			c.Params = make(map[string]string)
		}
		c.Params[key] = value
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
		return fmt.Errorf("failed to restore coze session: %w", err)
	}
	restored.httpClient = c.httpClient
	if restored.httpClient == nil {
		restored.httpClient = http.DefaultClient
	}
	restored.apiURL = c.apiURL
	if restored.BotID == "" {
		restored.BotID = defaultBotID
	}
	if restored.UserID == "" {
		restored.UserID = defaultUserID
	}
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
