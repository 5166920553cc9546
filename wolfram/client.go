// Package wolfram implements a client for the Wolfram Alpha gateway
// WebSocket protocol: one init/ready handshake, one query, then a bounded
// collection loop over incremental "pods" result messages. Successful
// results are cached per (query, imageOnly) pair for the client's lifetime.
package wolfram

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	aibackend "github.com/sjrsjz/NPULearn"
)

const gatewayURL = "wss://gateway.wolframalpha.com/gateway"

const (
	defaultHandshakeTimeout = 15 * time.Second
	defaultMessageTimeout   = 30 * time.Second
	// Cap on messages consumed per query. Hitting it is a clean early stop
	// with partial results, not an error.
	defaultMaxMessages = 50
	cacheSize          = 100
)

// Package-local failure modes. All wrap the shared protocol sentinel so
// callers can treat them uniformly with errors.Is.
var (
	// ErrInitNotReady means the handshake answer arrived but its type was
	// not "ready".
	ErrInitNotReady = fmt.Errorf("wolfram: handshake response not ready: %w", aibackend.ErrProtocol)

	// ErrUnexpectedMessageType means the handshake answer was not a text
	// frame, or the connection closed before one arrived.
	ErrUnexpectedMessageType = fmt.Errorf("wolfram: unexpected message type during handshake: %w", aibackend.ErrProtocol)

	// ErrNoPodsFound means the query completed without producing a single
	// result.
	ErrNoPodsFound = errors.New("wolfram: query returned no pods")
)

type cacheKey struct {
	Query     string
	ImageOnly bool
}

// Client is a long-lived gateway client. One WebSocket session is opened per
// query; the result cache is the only state shared across queries and is safe
// for concurrent use.
type Client struct {
	gatewayURL       string
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	messageTimeout   time.Duration
	maxMessages      int
	cache            *lru.Cache[cacheKey, []Result]
}

// NewClient creates a client with the production gateway endpoint and
// default timeouts.
func NewClient() *Client {
	cache, _ := lru.New[cacheKey, []Result](cacheSize)
	return &Client{
		gatewayURL:       gatewayURL,
		dialer:           websocket.DefaultDialer,
		handshakeTimeout: defaultHandshakeTimeout,
		messageTimeout:   defaultMessageTimeout,
		maxMessages:      defaultMaxMessages,
		cache:            cache,
	}
}

// Compute runs one query and returns the ordered result sections. A cache
// hit bypasses the network entirely; cached entries never expire. With
// imageOnly set, text fields are skipped and only images are collected.
func (c *Client) Compute(ctx context.Context, query string, imageOnly bool) ([]Result, error) {
	key := cacheKey{Query: query, ImageOnly: imageOnly}
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	results, err := c.query(ctx, query, imageOnly)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, results)
	return results, nil
}

// ComputeImageOnly runs a query collecting only the rendered images; the
// plaintext and Mathematica fields are left empty.
func (c *Client) ComputeImageOnly(ctx context.Context, query string) ([]Result, error) {
	return c.Compute(ctx, query, true)
}

func (c *Client) query(ctx context.Context, query string, imageOnly bool) ([]Result, error) {
	envelope, err := json.Marshal([]map[string]any{{"t": 0, "v": query}})
	if err != nil {
		return nil, fmt.Errorf("wolfram: failed to encode query: %w", err)
	}
	input := base64.StdEncoding.EncodeToString(envelope)

	conn, resp, err := c.dialer.DialContext(ctx, c.gatewayURL, nil)
	if err != nil {
		if resp != nil {
			return nil, &aibackend.StreamError{
				Provider:   "wolfram",
				StatusCode: resp.StatusCode,
				Message:    "websocket upgrade failed",
				Err:        aibackend.ErrConnection,
			}
		}
		return nil, &aibackend.StreamError{Provider: "wolfram", Message: err.Error(), Err: aibackend.ErrConnection}
	}
	defer conn.Close()

	if err := c.handshake(conn); err != nil {
		return nil, err
	}

	newQuery := newQueryMessage{
		Type:       "newQuery",
		LocationID: "oi8ft_en_light",
		Language:   "en",
		Category:   "results",
		Input:      input,
		I2D:        true,
		Assumption: []string{},
		APIParams:  map[string]any{},
		Theme:      "light",
	}
	if err := conn.WriteJSON(&newQuery); err != nil {
		return nil, &aibackend.StreamError{Provider: "wolfram", Message: err.Error(), Err: aibackend.ErrConnection}
	}

	results, err := c.collect(conn, imageOnly)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoPodsFound
	}
	return results, nil
}

// handshake sends the init message and waits for the gateway's "ready".
func (c *Client) handshake(conn *websocket.Conn) error {
	init := initMessage{
		Category: "results",
		Type:     "init",
		Lang:     "en",
		Exp:      time.Now().Add(24 * time.Hour).UnixMilli(),
		Messages: []string{},
	}
	if err := conn.WriteJSON(&init); err != nil {
		return &aibackend.StreamError{Provider: "wolfram", Message: err.Error(), Err: aibackend.ErrConnection}
	}

	conn.SetReadDeadline(time.Now().Add(c.handshakeTimeout))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		if isTimeout(err) {
			return &aibackend.StreamError{
				Provider: "wolfram",
				Message:  "handshake timed out",
				Err:      aibackend.ErrTimeout,
			}
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return ErrUnexpectedMessageType
		}
		return &aibackend.StreamError{Provider: "wolfram", Message: err.Error(), Err: aibackend.ErrConnection}
	}
	if msgType != websocket.TextMessage {
		return ErrUnexpectedMessageType
	}

	var ready serverMessage
	if err := json.Unmarshal(raw, &ready); err != nil {
		return fmt.Errorf("wolfram: failed to parse handshake response: %w", err)
	}
	if ready.Type != "ready" {
		return fmt.Errorf("%w (got type %q)", ErrInitNotReady, ready.Type)
	}
	return nil
}

// collect reads result messages until queryCompleted, a close frame, or the
// message cap. Each read is bounded by the per-message timeout, which is
// fatal: a stalled gateway aborts the query rather than hanging the caller.
func (c *Client) collect(conn *websocket.Conn, imageOnly bool) ([]Result, error) {
	var results []Result
	for count := 0; count < c.maxMessages; count++ {
		conn.SetReadDeadline(time.Now().Add(c.messageTimeout))
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if isTimeout(err) {
				return nil, &aibackend.StreamError{
					Provider: "wolfram",
					Message:  "timed out waiting for results",
					Err:      aibackend.ErrTimeout,
				}
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return results, nil
			}
			return nil, &aibackend.StreamError{Provider: "wolfram", Message: err.Error(), Err: aibackend.ErrConnection}
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg serverMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("wolfram message failed to parse, skipping", "error", err)
			continue
		}

		switch msg.Type {
		case "queryCompleted":
			return results, nil
		case "pods":
			results = appendRelatedQueries(results, msg.RelatedQueries)
			for _, p := range msg.Pods {
				if p.Subpods == nil {
					continue
				}
				results = append(results, mergePod(p, imageOnly))
			}
		default:
			slog.Debug("wolfram message of unhandled type", "type", msg.Type)
		}
	}
	slog.Warn("wolfram message cap reached, stopping with partial results",
		"cap", c.maxMessages, "results", len(results))
	return results, nil
}

// mergePod flattens a pod's subpods into one Result. Later subpods overwrite
// earlier ones per field; in imageOnly mode the text fields are skipped.
func mergePod(p pod, imageOnly bool) Result {
	r := Result{Title: p.Title}
	for _, sp := range p.Subpods {
		if !imageOnly {
			if sp.Plaintext != "" {
				r.Plaintext = sp.Plaintext
			}
			if sp.MInput != "" {
				r.MInput = sp.MInput
			}
			if sp.MOutput != "" {
				r.MOutput = sp.MOutput
			}
		}
		if sp.Img != nil {
			if sp.Img.Data != "" {
				r.ImgBase64 = sp.Img.Data
			}
			if sp.Img.ContentType != "" {
				r.ImgContentType = sp.Img.ContentType
			}
		}
	}
	return r
}

// appendRelatedQueries attaches related queries to the first result when the
// list is still empty (producing a queries-only result), otherwise to the
// last result collected so far.
func appendRelatedQueries(results []Result, queries []string) []Result {
	if len(queries) == 0 {
		return results
	}
	if len(results) == 0 {
		return append(results, Result{RelatedQueries: queries})
	}
	last := &results[len(results)-1]
	last.RelatedQueries = append(last.RelatedQueries, queries...)
	return results
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
