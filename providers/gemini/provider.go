// Package gemini adapts Google's Generative Language streaming API to the
// aibackend Session interface. Gemini's streaming endpoint returns a single
// JSON array written incrementally over a chunked HTTP body (not SSE), so the
// adapter reconstructs object boundaries with a bracket-depth scanner before
// extracting text deltas.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tidwall/sjson"

	aibackend "github.com/sjrsjz/NPULearn"
)

const (
	apiBaseURL   = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel = "gemini-2.5-flash-preview-04-17"
)

// Built-in sampling defaults, used when the capability registry has no entry
// for the model.
const (
	defaultTemperature = 0.95
	defaultTopP        = 0.95
	defaultTopK        = 40
	defaultMaxTokens   = 8192
)

// Chat is a Gemini conversation session. Fields are exported for snapshot
// serialization; mutate them through the Session methods.
type Chat struct {
	Model        string            `json:"model"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Temperature  float64           `json:"temperature"`
	TopP         float64           `json:"top_p,omitempty"`
	TopK         int               `json:"top_k,omitempty"`
	MaxTokens    int               `json:"max_tokens,omitempty"`
	History      aibackend.History `json:"history"`

	httpClient *http.Client
	baseURL    string
}

// New creates a session with the registry's default model and sampling
// parameters.
func New() *Chat {
	c := &Chat{
		Model:       defaultModel,
		Temperature: defaultTemperature,
		TopP:        defaultTopP,
		TopK:        defaultTopK,
		MaxTokens:   defaultMaxTokens,
		httpClient:  http.DefaultClient,
	}
	reg := aibackend.GetCapabilityRegistry()
	if m := reg.DefaultModel("gemini"); m != "" {
		c.Model = m
	}
	if d, ok := reg.DefaultSampling("gemini", c.Model); ok {
		c.Temperature = d.Temperature
		c.TopP = d.TopP
		c.TopK = d.TopK
		c.MaxTokens = d.MaxTokens
	}
	return c
}

// Kind implements Session.
func (c *Chat) Kind() string { return "gemini" }

func (c *Chat) streamURL(apiKey string) string {
	base := c.baseURL
	if base == "" {
		base = apiBaseURL
	}
	return fmt.Sprintf("%s/%s:streamGenerateContent?key=%s", base, c.Model, apiKey)
}

// buildRequestBody converts the neutral history plus the pending prompt into
// the Gemini request shape. The system prompt rides both as a leading "model"
// turn (older models ignore systemInstruction) and as systemInstruction.
func (c *Chat) buildRequestBody(prompt string) ([]byte, error) {
	var contents []map[string]any

	if c.SystemPrompt != "" {
		preamble := "# I have double checked that my basic system settings are as follows, I will never disobey them:\n" + c.SystemPrompt + "\n"
		contents = append(contents, map[string]any{
			"role":  "model",
			"parts": []map[string]any{{"text": preamble}},
		})
	}

	for _, m := range c.History.Messages {
		if m.Content == "" {
			continue
		}
		var role string
		switch m.Role {
		case aibackend.RoleAssistant:
			role = "model"
		case aibackend.RoleUser:
			role = "user"
		default:
			// System turns ride in the preamble, not in contents.
			continue
		}
		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []map[string]any{{"text": m.Content}},
		})
	}

	contents = append(contents, map[string]any{
		"role":  "user",
		"parts": []map[string]any{{"text": prompt}},
	})

	body := map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"temperature": c.Temperature,
		},
		"safetySettings": []map[string]any{
			{"category": "HARM_CATEGORY_HATE_SPEECH", "threshold": "BLOCK_NONE"},
			{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_NONE"},
			{"category": "HARM_CATEGORY_SEXUALLY_EXPLICIT", "threshold": "BLOCK_NONE"},
			{"category": "HARM_CATEGORY_DANGEROUS_CONTENT", "threshold": "BLOCK_NONE"},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to build gemini request: %w", err)
	}

	// Optional knobs only appear when set, so the API applies its own
	// defaults otherwise.
	if c.TopP > 0 {
		raw, _ = sjson.SetBytes(raw, "generationConfig.topP", c.TopP)
	}
	if c.TopK > 0 {
		raw, _ = sjson.SetBytes(raw, "generationConfig.topK", c.TopK)
	}
	if c.MaxTokens > 0 {
		raw, _ = sjson.SetBytes(raw, "generationConfig.maxOutputTokens", c.MaxTokens)
	}
	if c.SystemPrompt != "" {
		raw, _ = sjson.SetBytes(raw, "systemInstruction.parts.0.text", c.SystemPrompt)
	}
	return raw, nil
}

// GenerateStream implements Session.
func (c *Chat) GenerateStream(ctx context.Context, key aibackend.APIKey, prompt string, sink aibackend.Sink) (string, error) {
	if key.Type != aibackend.KeyTypeGemini {
		return "", &aibackend.KeyTypeError{Want: aibackend.KeyTypeGemini, Got: key.Type}
	}

	body, err := c.buildRequestBody(prompt)
	if err != nil {
		return "", err
	}
	c.History.LastPrompt = prompt

	response, err := c.stream(ctx, c.streamURL(key.Key), body, sink)
	if err != nil {
		return "", err
	}

	c.History.Push(aibackend.RoleUser, prompt)
	c.History.Push(aibackend.RoleAssistant, response)
	return response, nil
}

// RegenerateStream implements Session.
func (c *Chat) RegenerateStream(ctx context.Context, key aibackend.APIKey, sink aibackend.Sink) (string, error) {
	if key.Type != aibackend.KeyTypeGemini {
		return "", &aibackend.KeyTypeError{Want: aibackend.KeyTypeGemini, Got: key.Type}
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
	switch key {
	case "temperature":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return &aibackend.ParameterError{Key: key, Value: value, Reason: "not a number", Err: err}
		}
		c.Temperature = v
	case "top_p":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return &aibackend.ParameterError{Key: key, Value: value, Reason: "not a number", Err: err}
		}
		c.TopP = v
	case "top_k":
		v, err := strconv.Atoi(value)
		if err != nil {
			return &aibackend.ParameterError{Key: key, Value: value, Reason: "not an integer", Err: err}
		}
		c.TopK = v
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
		return fmt.Errorf("failed to restore gemini session: %w", err)
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
