package aibackend

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/capabilities/gemini.yaml
var geminiCapabilitiesYAML []byte

//go:embed config/capabilities/deepseek.yaml
var deepseekCapabilitiesYAML []byte

// Capabilities Philosophy:
//
// This registry provides MODEL METADATA (limits, default sampling) for UX and
// for seeding new sessions. It does NOT enforce validation — provider APIs
// are the source of truth, and SetParameter("model", ...) accepts any model
// string. Capabilities may lag behind provider releases; users can override
// the embedded data with LoadCapabilitiesFromFile or
// RegisterProviderCapabilities.

// SamplingDefaults holds the default sampling parameters for a model.
type SamplingDefaults struct {
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	TopK        int     `yaml:"top_k"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// ModelCapability represents the capabilities of a specific model
type ModelCapability struct {
	ContextWindow   int              `yaml:"context_window"`
	MaxOutputTokens int              `yaml:"max_output_tokens"`
	Streaming       bool             `yaml:"streaming"`
	Defaults        SamplingDefaults `yaml:"defaults"`
}

// ProviderCapabilities represents the full capability configuration for a provider
type ProviderCapabilities struct {
	Version      string                     `yaml:"version"`
	LastUpdated  string                     `yaml:"last_updated"`
	Provider     string                     `yaml:"provider"`
	DefaultModel string                     `yaml:"default_model"`
	Models       map[string]ModelCapability `yaml:"models"`
}

// CapabilityRegistry manages provider capabilities
type CapabilityRegistry struct {
	capabilities map[string]*ProviderCapabilities
	mu           sync.RWMutex
}

var (
	globalRegistry     *CapabilityRegistry
	globalRegistryOnce sync.Once
)

// GetCapabilityRegistry returns the global capability registry (singleton)
func GetCapabilityRegistry() *CapabilityRegistry {
	globalRegistryOnce.Do(func() {
		globalRegistry = &CapabilityRegistry{
			capabilities: make(map[string]*ProviderCapabilities),
		}
		for _, raw := range [][]byte{geminiCapabilitiesYAML, deepseekCapabilitiesYAML} {
			if err := globalRegistry.loadEmbedded(raw); err != nil {
				// Don't panic: sessions fall back to built-in defaults.
				fmt.Fprintf(os.Stderr, "warning: failed to load embedded capabilities: %v\n", err)
			}
		}
	})
	return globalRegistry
}

func (r *CapabilityRegistry) loadEmbedded(raw []byte) error {
	var caps ProviderCapabilities
	if err := yaml.Unmarshal(raw, &caps); err != nil {
		return fmt.Errorf("failed to unmarshal capabilities: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[caps.Provider] = &caps
	return nil
}

// GetProviderCapabilities returns capabilities for a provider
func (r *CapabilityRegistry) GetProviderCapabilities(provider string) (*ProviderCapabilities, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps, ok := r.capabilities[provider]
	if !ok {
		return nil, fmt.Errorf("no capabilities found for provider: %s", provider)
	}
	return caps, nil
}

// GetModelCapability returns capabilities for a specific model
func (r *CapabilityRegistry) GetModelCapability(provider, model string) (*ModelCapability, error) {
	providerCaps, err := r.GetProviderCapabilities(provider)
	if err != nil {
		return nil, err
	}
	modelCap, ok := providerCaps.Models[model]
	if !ok {
		return nil, fmt.Errorf("model %s not found for provider %s", model, provider)
	}
	return &modelCap, nil
}

// SupportsModel checks if a provider lists a specific model
func (r *CapabilityRegistry) SupportsModel(provider, model string) bool {
	_, err := r.GetModelCapability(provider, model)
	return err == nil
}

// DefaultModel returns the provider's configured default model, or "" when
// the provider is unknown.
func (r *CapabilityRegistry) DefaultModel(provider string) string {
	caps, err := r.GetProviderCapabilities(provider)
	if err != nil {
		return ""
	}
	return caps.DefaultModel
}

// DefaultSampling returns the default sampling parameters for a model and
// whether the model was found in the registry.
func (r *CapabilityRegistry) DefaultSampling(provider, model string) (SamplingDefaults, bool) {
	modelCap, err := r.GetModelCapability(provider, model)
	if err != nil {
		return SamplingDefaults{}, false
	}
	return modelCap.Defaults, true
}

// LoadCapabilitiesFromFile loads provider capabilities from a YAML file,
// overriding any embedded data for the same provider.
func (r *CapabilityRegistry) LoadCapabilitiesFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read capabilities file: %w", err)
	}
	var caps ProviderCapabilities
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return fmt.Errorf("failed to unmarshal capabilities: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[caps.Provider] = &caps
	return nil
}

// RegisterProviderCapabilities programmatically registers provider capabilities.
func (r *CapabilityRegistry) RegisterProviderCapabilities(provider string, caps *ProviderCapabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[provider] = caps
}
