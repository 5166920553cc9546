package deepseek

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	aibackend "github.com/sjrsjz/NPULearn"
	"github.com/sjrsjz/NPULearn/sse"
)

// stream POSTs the chat completion request and reads the SSE response,
// invoking the sink once per content delta. Malformed data lines are logged
// and skipped; only transport failures abort the stream.
func (c *Chat) stream(ctx context.Context, apiKey string, body []byte, sink aibackend.Sink) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return "", &aibackend.StreamError{Provider: "deepseek", Message: err.Error(), Err: aibackend.ErrConnection}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := c.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &aibackend.StreamError{Provider: "deepseek", Message: err.Error(), Err: aibackend.ErrConnection}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &aibackend.StreamError{
			Provider:   "deepseek",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(detail)),
			Err:        aibackend.ErrConnection,
		}
	}

	var (
		full         strings.Builder
		receivedData bool
	)
	frames := sse.NewFrameScanner(resp.Body)
	for {
		frame, err := frames.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &aibackend.StreamError{Provider: "deepseek", Message: err.Error(), Err: aibackend.ErrConnection}
		}
		receivedData = true

		if sse.IsDone(frame.Data) {
			break
		}
		if !gjson.Valid(frame.Data) {
			slog.Warn("deepseek stream line failed to parse, skipping", "data", frame.Data)
			continue
		}
		if delta := gjson.Get(frame.Data, "choices.0.delta.content").String(); delta != "" {
			full.WriteString(delta)
			sink(delta)
		}
	}

	if full.Len() == 0 {
		if !receivedData {
			return "", &aibackend.StreamError{
				Provider: "deepseek",
				Message:  "stream closed without any data",
				Err:      aibackend.ErrEmptyResult,
			}
		}
		return aibackend.PlaceholderResponse, nil
	}
	return full.String(), nil
}
