// Package chat is the dispatch facade over the closed set of chat providers.
// It maps a provider Kind to a fresh Session and round-trips kind-tagged
// snapshots, so callers can persist and revive sessions without tracking
// which provider produced them.
package chat

import (
	"encoding/json"
	"fmt"

	aibackend "github.com/sjrsjz/NPULearn"
	"github.com/sjrsjz/NPULearn/providers/coze"
	"github.com/sjrsjz/NPULearn/providers/deepseek"
	"github.com/sjrsjz/NPULearn/providers/gemini"
	"github.com/sjrsjz/NPULearn/providers/lorem"
)

// Kind identifies a provider variant. The set is closed: adding a provider
// means adding a case to New.
type Kind string

// Supported provider kinds.
const (
	KindGemini   Kind = "gemini"
	KindDeepSeek Kind = "deepseek"
	KindCoze     Kind = "coze"
	KindLorem    Kind = "lorem"
)

// IsValid reports whether k names a supported provider.
func (k Kind) IsValid() bool {
	switch k {
	case KindGemini, KindDeepSeek, KindCoze, KindLorem:
		return true
	default:
		return false
	}
}

// KeyType returns the API key type the kind's provider requires. The lorem
// mock accepts any key and returns an empty type.
func (k Kind) KeyType() aibackend.KeyType {
	switch k {
	case KindGemini:
		return aibackend.KeyTypeGemini
	case KindDeepSeek:
		return aibackend.KeyTypeDeepSeek
	case KindCoze:
		return aibackend.KeyTypeCoze
	default:
		return ""
	}
}

// New creates a fresh session of the given kind.
func New(kind Kind) (aibackend.Session, error) {
	switch kind {
	case KindGemini:
		return gemini.New(), nil
	case KindDeepSeek:
		return deepseek.New(), nil
	case KindCoze:
		return coze.New(), nil
	case KindLorem:
		return lorem.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider kind: %q", kind)
	}
}

// envelope wraps a provider snapshot with its kind so Restore can pick the
// right implementation.
type envelope struct {
	Kind  Kind            `json:"kind"`
	State json.RawMessage `json:"state"`
}

// Save serializes a session into a kind-tagged snapshot.
func Save(s aibackend.Session) ([]byte, error) {
	state, err := s.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot session: %w", err)
	}
	return json.Marshal(&envelope{Kind: Kind(s.Kind()), State: state})
}

// Restore revives a session from a snapshot produced by Save.
func Restore(data []byte) (aibackend.Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse session snapshot: %w", err)
	}
	session, err := New(env.Kind)
	if err != nil {
		return nil, err
	}
	if err := session.RestoreSnapshot(env.State); err != nil {
		return nil, err
	}
	return session, nil
}
