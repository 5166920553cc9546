package coze

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

// phase tracks where we are in the conversation lifecycle. Transitions only
// move forward; a frame announcing an earlier phase is logged and ignored.
type phase int

const (
	phaseStart phase = iota
	phaseCreated
	phaseInProgress
	phaseMuted // message.completed seen: keep reading, stop forwarding
)

// stream POSTs the chat request and runs the lifecycle state machine over
// the SSE response.
func (c *Chat) stream(ctx context.Context, apiKey string, body []byte, sink aibackend.Sink) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", &aibackend.StreamError{Provider: "coze", Message: err.Error(), Err: aibackend.ErrConnection}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := c.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &aibackend.StreamError{Provider: "coze", Message: err.Error(), Err: aibackend.ErrConnection}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &aibackend.StreamError{
			Provider:   "coze",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(detail)),
			Err:        aibackend.ErrConnection,
		}
	}

	var (
		full         strings.Builder
		receivedData bool
		state        = phaseStart
	)
	forward := func(delta string) {
		if delta == "" {
			return
		}
		full.WriteString(delta)
		sink(delta)
	}

	frames := sse.NewFrameScanner(resp.Body)
collect:
	for {
		frame, err := frames.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &aibackend.StreamError{Provider: "coze", Message: err.Error(), Err: aibackend.ErrConnection}
		}
		receivedData = true

		if sse.IsDone(frame.Data) {
			continue
		}

		switch frame.Event {
		case "conversation.chat.created":
			state = advance(state, phaseCreated)

		case "conversation.chat.in_progress":
			state = advance(state, phaseInProgress)

		case "conversation.message.delta":
			if state == phaseMuted {
				continue
			}
			state = advance(state, phaseInProgress)
			payload := gjson.Parse(frame.Data)
			// Only "answer" messages are user-visible; "verbose" and
			// friends are bot-platform chatter. A payload without a type
			// field is still treated as content.
			if t := payload.Get("type"); t.Exists() && t.String() != "answer" {
				continue
			}
			content := payload.Get("content").String()
			if content == "" {
				content = payload.Get("data.content").String()
			}
			forward(filterSystemMetadata(content))

		case "conversation.message.completed":
			state = advance(state, phaseMuted)

		case "conversation.chat.completed":
			break collect

		case "conversation.chat.failed":
			return "", failure("chat failed", frame.Data)

		default:
			payload := gjson.Parse(frame.Data)
			if !payload.IsObject() {
				slog.Warn("coze stream data failed to parse, skipping",
					"event", frame.Event, "data", frame.Data)
				continue
			}
			// A failed status is terminal no matter which event carried it.
			if payload.Get("status").String() == "failed" {
				return "", failure("status failed", frame.Data)
			}
			if state != phaseMuted {
				forward(payload.Get("content").String())
			}
		}
	}

	if full.Len() == 0 {
		if !receivedData {
			return "", &aibackend.StreamError{
				Provider: "coze",
				Message:  "stream closed without any data",
				Err:      aibackend.ErrEmptyResult,
			}
		}
		return aibackend.PlaceholderResponse, nil
	}
	return full.String(), nil
}

// advance moves the lifecycle forward, refusing backward transitions.
func advance(current, next phase) phase {
	if next < current {
		slog.Warn("coze lifecycle event arrived out of order, ignoring",
			"current", int(current), "announced", int(next))
		return current
	}
	return next
}

// failure builds the terminal error for a failed conversation, carrying the
// provider's last_error detail when present.
func failure(reason, data string) error {
	msg := reason
	if detail := gjson.Get(data, "last_error"); detail.Exists() {
		msg = reason + ": " + detail.Raw
	}
	return &aibackend.StreamError{Provider: "coze", Message: msg, Err: aibackend.ErrProtocol}
}

const metadataMarker = `{"msg_type":`

// filterSystemMetadata strips the system-metadata JSON Coze appends to answer
// text. Text before the marker survives; a payload that is nothing but
// metadata yields an empty string.
func filterSystemMetadata(content string) string {
	if i := strings.Index(content, metadataMarker); i >= 0 {
		return strings.TrimSpace(content[:i])
	}
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, `"msg_type"`) {
		return ""
	}
	return content
}
