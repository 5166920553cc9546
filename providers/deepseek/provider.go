// Package deepseek adapts DeepSeek's OpenAI-compatible chat completion API
// to the aibackend Session interface. The stream is plain SSE: `data:` lines
// carrying chunk objects, closed by the `[DONE]` sentinel.
package deepseek

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	aibackend "github.com/sjrsjz/NPULearn"
)

const (
	apiBaseURL   = "https://api.deepseek.com"
	defaultModel = "deepseek-chat"
)

const (
	defaultTemperature      = 1.0
	defaultTopP             = 0.95
	defaultMaxTokens        = 4096
	defaultFrequencyPenalty = 0.0
	defaultPresencePenalty  = 0.0
)

// requestMessage is one turn in the OpenAI-compatible request body.
type requestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request is the chat completion request body. Optional knobs are pointers so
// that zero values can still be sent explicitly (penalties default to 0.0).
type request struct {
	Model            string           `json:"model"`
	Messages         []requestMessage `json:"messages"`
	Temperature      *float64         `json:"temperature,omitempty"`
	MaxTokens        *int             `json:"max_tokens,omitempty"`
	TopP             *float64         `json:"top_p,omitempty"`
	FrequencyPenalty *float64         `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64         `json:"presence_penalty,omitempty"`
	Stream           bool             `json:"stream"`
}

// Chat is a DeepSeek conversation session. Fields are exported for snapshot
// serialization; mutate them through the Session methods.
type Chat struct {
	Model            string            `json:"model"`
	SystemPrompt     string            `json:"system_prompt,omitempty"`
	Temperature      float64           `json:"temperature"`
	MaxTokens        int               `json:"max_tokens,omitempty"`
	TopP             float64           `json:"top_p,omitempty"`
	FrequencyPenalty float64           `json:"frequency_penalty"`
	PresencePenalty  float64           `json:"presence_penalty"`
	History          aibackend.History `json:"history"`

	httpClient *http.Client
	baseURL    string
}

// New creates a session with the registry's default model and sampling
// parameters.
func New() *Chat {
	c := &Chat{
		Model:            defaultModel,
		Temperature:      defaultTemperature,
		TopP:             defaultTopP,
		MaxTokens:        defaultMaxTokens,
		FrequencyPenalty: defaultFrequencyPenalty,
		PresencePenalty:  defaultPresencePenalty,
		httpClient:       http.DefaultClient,
	}
	reg := aibackend.GetCapabilityRegistry()
	if m := reg.DefaultModel("deepseek"); m != "" {
		c.Model = m
	}
	if d, ok := reg.DefaultSampling("deepseek", c.Model); ok {
		c.Temperature = d.Temperature
		c.TopP = d.TopP
		c.MaxTokens = d.MaxTokens
	}
	return c
}

// Kind implements Session.
func (c *Chat) Kind() string { return "deepseek" }

func (c *Chat) completionsURL() string {
	base := c.baseURL
	if base == "" {
		base = apiBaseURL
	}
	return base + "/chat/completions"
}

func (c *Chat) buildRequest(prompt string) *request {
	var messages []requestMessage
	if c.SystemPrompt != "" {
		messages = append(messages, requestMessage{
			Role:    "system",
			Content: "# I have double checked that my basic system settings are as follows, I will never disobey them:\n" + c.SystemPrompt + "\n",
		})
	}
	for _, m := range c.History.Messages {
		if m.Content == "" {
			continue
		}
		messages = append(messages, requestMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, requestMessage{Role: "user", Content: prompt})

	req := &request{
		Model:            c.Model,
		Messages:         messages,
		Temperature:      &c.Temperature,
		FrequencyPenalty: &c.FrequencyPenalty,
		PresencePenalty:  &c.PresencePenalty,
		Stream:           true,
	}
	if c.MaxTokens > 0 {
		req.MaxTokens = &c.MaxTokens
	}
	if c.TopP > 0 {
		req.TopP = &c.TopP
	}
	return req
}

// GenerateStream implements Session.
func (c *Chat) GenerateStream(ctx context.Context, key aibackend.APIKey, prompt string, sink aibackend.Sink) (string, error) {
	if key.Type != aibackend.KeyTypeDeepSeek {
		return "", &aibackend.KeyTypeError{Want: aibackend.KeyTypeDeepSeek, Got: key.Type}
	}

	body, err := json.Marshal(c.buildRequest(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to build deepseek request: %w", err)
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
	if key.Type != aibackend.KeyTypeDeepSeek {
		return "", &aibackend.KeyTypeError{Want: aibackend.KeyTypeDeepSeek, Got: key.Type}
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

// SetParameter implements Session.
func (c *Chat) SetParameter(key, value string) error {
	parseFloat := func(dst *float64) error {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return &aibackend.ParameterError{Key: key, Value: value, Reason: "not a number", Err: err}
		}
		*dst = v
		return nil
	}
	switch key {
	case "temperature":
		return parseFloat(&c.Temperature)
	case "top_p":
		return parseFloat(&c.TopP)
	case "frequency_penalty":
		return parseFloat(&c.FrequencyPenalty)
	case "presence_penalty":
		return parseFloat(&c.PresencePenalty)
	case "max_tokens":
		v, err := strconv.Atoi(value)
		if err != nil {
			return &aibackend.ParameterError{Key: key, Value: value, Reason: "not an integer", Err: err}
		}
		c.MaxTokens = v
	case "model":
		c.Model = value
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
		return fmt.Errorf("failed to restore deepseek session: %w", err)
	}
	restored.httpClient = c.httpClient
	if restored.httpClient == nil {
		restored.httpClient = http.DefaultClient
	}
	restored.baseURL = c.baseURL
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
