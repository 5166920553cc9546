package aibackend

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// KeyType identifies which provider an API key belongs to.
// Using a typed constant prevents typos and makes the key/provider
// mismatch check (see KeyTypeError) compile-time visible.
type KeyType string

// Known key types
const (
	KeyTypeGemini   KeyType = "Gemini"
	KeyTypeDeepSeek KeyType = "DeepSeek"
	KeyTypeCoze     KeyType = "Coze"
)

// String returns the string representation of the key type
func (t KeyType) String() string {
	return string(t)
}

// IsValid returns true if the key type is a known provider key type
func (t KeyType) IsValid() bool {
	switch t {
	case KeyTypeGemini, KeyTypeDeepSeek, KeyTypeCoze:
		return true
	default:
		return false
	}
}

// ParseKeyType converts a string to a KeyType, case-insensitively.
func ParseKeyType(s string) (KeyType, error) {
	switch strings.ToLower(s) {
	case "gemini":
		return KeyTypeGemini, nil
	case "deepseek":
		return KeyTypeDeepSeek, nil
	case "coze":
		return KeyTypeCoze, nil
	default:
		return "", fmt.Errorf("unknown API key type: %q", s)
	}
}

// APIKey is a named provider credential.
type APIKey struct {
	Key  string  `json:"key"`
	Name string  `json:"name"`
	Type KeyType `json:"key_type"`
}

// KeyList holds the user's configured API keys across all providers.
type KeyList struct {
	Keys []APIKey `json:"keys"`
}

// NewKeyList returns an empty key list.
func NewKeyList() *KeyList {
	return &KeyList{Keys: []APIKey{}}
}

// Add appends a key to the list.
func (l *KeyList) Add(key APIKey) {
	l.Keys = append(l.Keys, key)
}

// Remove deletes every entry whose secret matches key's secret.
func (l *KeyList) Remove(key APIKey) {
	kept := l.Keys[:0]
	for _, k := range l.Keys {
		if k.Key != key.Key {
			kept = append(kept, k)
		}
	}
	l.Keys = kept
}

// FilterByType returns a new list containing only keys of the given type.
func (l *KeyList) FilterByType(t KeyType) *KeyList {
	out := NewKeyList()
	for _, k := range l.Keys {
		if k.Type == t {
			out.Keys = append(out.Keys, k)
		}
	}
	return out
}

// Random picks one key uniformly at random, or returns false when the list
// is empty. Used to spread load across multiple keys for the same provider.
func (l *KeyList) Random() (APIKey, bool) {
	if len(l.Keys) == 0 {
		return APIKey{}, false
	}
	return l.Keys[rand.Intn(len(l.Keys))], true
}

// LoadKeyList reads a key list from a JSON file. A missing or empty file is
// not an error: it yields an empty list, so first launch works without setup.
func LoadKeyList(path string) (*KeyList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewKeyList(), nil
		}
		return nil, fmt.Errorf("failed to read key list: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return NewKeyList(), nil
	}
	var list KeyList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse key list: %w", err)
	}
	return &list, nil
}

// SaveTo writes the key list to a JSON file, creating or truncating it.
func (l *KeyList) SaveTo(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize key list: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write key list: %w", err)
	}
	return nil
}
