package gemini

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	aibackend "github.com/sjrsjz/NPULearn"
)

// stream POSTs the request and drives the object scanner over the chunked
// response body, invoking the sink once per extracted text delta. It returns
// the accumulated text, the degraded-success placeholder when bytes arrived
// but no delta could be extracted, or a typed error.
func (c *Chat) stream(ctx context.Context, url string, body []byte, sink aibackend.Sink) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &aibackend.StreamError{Provider: "gemini", Message: err.Error(), Err: aibackend.ErrConnection}
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &aibackend.StreamError{Provider: "gemini", Message: err.Error(), Err: aibackend.ErrConnection}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &aibackend.StreamError{
			Provider:   "gemini",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(detail)),
			Err:        aibackend.ErrConnection,
		}
	}

	var (
		scanner      ObjectScanner
		full         strings.Builder
		receivedData bool
		buf          = make([]byte, 4096)
	)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			receivedData = true
			for _, object := range scanner.Feed(string(buf[:n])) {
				delta, err := extractDelta(object)
				if err != nil {
					return "", err
				}
				if delta != "" {
					full.WriteString(delta)
					sink(delta)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", &aibackend.StreamError{Provider: "gemini", Message: readErr.Error(), Err: aibackend.ErrConnection}
		}
	}

	if leftover, ok := scanner.Flush(); ok {
		slog.Warn("gemini stream ended with a truncated object, skipping",
			"bytes", len(leftover))
	}

	if full.Len() == 0 {
		if !receivedData {
			return "", &aibackend.StreamError{
				Provider: "gemini",
				Message:  "stream closed without any data",
				Err:      aibackend.ErrEmptyResult,
			}
		}
		return aibackend.PlaceholderResponse, nil
	}
	return full.String(), nil
}

// extractDelta pulls the text fragment out of one streamed candidate object.
// A SAFETY finish reason aborts the stream; deltas already delivered to the
// sink are not retracted.
func extractDelta(object string) (string, error) {
	if !gjson.Valid(object) {
		slog.Warn("gemini stream object failed to parse, skipping",
			"object", truncateForLog(object))
		return "", nil
	}
	candidate := gjson.Get(object, "candidates.0")
	if !candidate.Exists() {
		return "", nil
	}

	if candidate.Get("finishReason").String() == "SAFETY" {
		var categories []string
		candidate.Get("safetyRatings").ForEach(func(_, rating gjson.Result) bool {
			if rating.Get("blocked").Bool() {
				categories = append(categories, rating.Get("category").String())
			}
			return true
		})
		return "", &aibackend.SafetyBlockedError{Categories: categories}
	}

	return candidate.Get("content.parts.0.text").String(), nil
}

func truncateForLog(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:max], len(s))
}
