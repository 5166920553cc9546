package aibackend

import (
	"context"
)

// Session is the uniform conversation surface implemented by every chat
// provider (Gemini, DeepSeek, Coze, and the Lorem mock). A Session owns its
// own message history, system prompt, and sampling parameters; the network
// call happens inside GenerateStream.
//
// Types used by this interface:
//   - APIKey, KeyType: defined in apikey.go
//   - Sink, PlaceholderResponse: defined in streaming.go
//   - Transcript: defined in history.go
type Session interface {
	// GenerateStream sends prompt to the provider and streams the response.
	// The sink is invoked once per text delta, in strict arrival order, from
	// the same goroutine that reads the network stream — it must not block.
	// On success the full accumulated text is returned and the user/assistant
	// turn pair is appended to the session history.
	//
	// The returned text may be PlaceholderResponse when the provider sent
	// bytes but no extractable content (degraded success, not an error).
	GenerateStream(ctx context.Context, key APIKey, prompt string, sink Sink) (string, error)

	// RegenerateStream discards the previous assistant turn, re-issues the
	// last user prompt, and streams the new response.
	RegenerateStream(ctx context.Context, key APIKey, sink Sink) (string, error)

	// Withdraw removes the trailing assistant/user turn pair from the history
	// and returns the recovered user prompt. Fails with ErrNoUserMessage when
	// the history holds no user turn.
	Withdraw() (string, error)

	// ClearContext drops the whole message history and the last prompt.
	ClearContext()

	// SetSystemPrompt replaces the system prompt used for subsequent calls.
	SetSystemPrompt(prompt string)

	// SetParameter updates a named sampling parameter from its string form
	// (e.g. "temperature", "0.7"). Unknown keys fail with ErrUnknownParameter
	// on providers with a fixed parameter set.
	SetParameter(key, value string) error

	// Snapshot returns an opaque serialized form of the session state.
	// RestoreSnapshot is its inverse. The snapshot is provider-specific;
	// use the chat package to round-trip a session without tracking its kind.
	Snapshot() ([]byte, error)
	RestoreSnapshot(data []byte) error

	// LoadTranscript replaces the session history with a provider-agnostic
	// transcript; SaveTranscript converts the history back.
	LoadTranscript(t *Transcript) error
	SaveTranscript() (*Transcript, error)

	// Kind identifies the provider variant (e.g. "gemini"). The set of kinds
	// is closed; see the chat package.
	Kind() string
}
