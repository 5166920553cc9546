package aibackend

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrConnection indicates a transport-level failure (dial, read, or a
	// non-success HTTP status before any content arrived). Fatal.
	ErrConnection = errors.New("aibackend: connection failed")

	// ErrMalformedChunk indicates a single JSON/SSE fragment failed to parse.
	// Non-fatal: adapters skip the fragment, log it, and keep parsing. It is
	// exported so tests and logs can name the condition; it never aborts a
	// stream on its own.
	ErrMalformedChunk = errors.New("aibackend: malformed stream fragment")

	// ErrSafetyBlocked indicates the provider refused to generate content.
	ErrSafetyBlocked = errors.New("aibackend: content blocked by provider safety filter")

	// ErrProtocol indicates an unexpected message type or ordering on a
	// stateful protocol (e.g. a Wolfram handshake that is not "ready").
	ErrProtocol = errors.New("aibackend: protocol violation")

	// ErrTimeout indicates a handshake or per-message deadline was exceeded.
	ErrTimeout = errors.New("aibackend: operation timed out")

	// ErrEmptyResult indicates the stream closed without delivering any bytes.
	// A stream that delivered bytes but no extractable text is NOT an error;
	// it yields PlaceholderResponse instead (see streaming.go).
	ErrEmptyResult = errors.New("aibackend: stream produced no content")

	// ErrKeyTypeMismatch indicates the supplied API key's declared type does
	// not match the active provider.
	ErrKeyTypeMismatch = errors.New("aibackend: API key type does not match provider")

	// ErrNoUserMessage indicates Withdraw found no user turn to recover.
	ErrNoUserMessage = errors.New("aibackend: no user message to withdraw")

	// ErrUnknownParameter indicates SetParameter was given a key the provider
	// does not recognize.
	ErrUnknownParameter = errors.New("aibackend: unknown parameter")
)

// KeyTypeError reports a GenerateStream call made with a key minted for a
// different provider.
type KeyTypeError struct {
	Want KeyType // The key type the provider requires
	Got  KeyType // The key type that was supplied
}

func (e *KeyTypeError) Error() string {
	return fmt.Sprintf("invalid API key type: provider requires %s key, got %s", e.Want, e.Got)
}

func (e *KeyTypeError) Unwrap() error {
	return ErrKeyTypeMismatch
}

// SafetyBlockedError reports a provider-side safety refusal, carrying the
// harm categories the provider flagged as blocked.
type SafetyBlockedError struct {
	Categories []string // e.g. "HARM_CATEGORY_HATE_SPEECH"
}

func (e *SafetyBlockedError) Error() string {
	if len(e.Categories) == 0 {
		return "content blocked due to safety concerns"
	}
	return fmt.Sprintf("content blocked due to safety concerns: %v", e.Categories)
}

func (e *SafetyBlockedError) Unwrap() error {
	return ErrSafetyBlocked
}

// StreamError represents a fatal error surfaced by a provider stream.
type StreamError struct {
	Provider   string // The provider kind ("gemini", "coze", ...)
	StatusCode int    // HTTP status code, when the failure was an HTTP response
	Message    string // Detail from the provider, when available
	Err        error  // Wrapped sentinel (ErrConnection, ErrEmptyResult, ...)
}

func (e *StreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider '%s' stream failed (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider '%s' stream failed: %s", e.Provider, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// ParameterError reports an invalid SetParameter value (wrong key, or a value
// that failed to parse).
type ParameterError struct {
	Key    string
	Value  string
	Reason string
	Err    error
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter '%s' (value: %q): %s", e.Key, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error {
	return e.Err
}

// IsSafetyBlocked checks whether an error is a provider safety refusal.
func IsSafetyBlocked(err error) bool {
	return errors.Is(err, ErrSafetyBlocked)
}

// IsTimeout checks whether an error is a handshake or per-message deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsKeyTypeMismatch checks whether an error came from supplying a key of the
// wrong provider type. These errors are never retryable with the same key.
func IsKeyTypeMismatch(err error) bool {
	return errors.Is(err, ErrKeyTypeMismatch)
}
