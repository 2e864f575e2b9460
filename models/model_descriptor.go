package models

// Provider identifies the upstream that serves a model
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderDeepSeek  Provider = "deepseek"
	ProviderOllama    Provider = "ollama"
)

// Providers lists every known provider
var Providers = []Provider{
	ProviderAnthropic,
	ProviderOpenAI,
	ProviderGoogle,
	ProviderDeepSeek,
	ProviderOllama,
}

// Valid reports whether p is a known provider
func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// IsLocal reports whether the provider runs on local hardware
func (p Provider) IsLocal() bool {
	return p == ProviderOllama
}

// Capability tags used by the catalog and the classifiers
const (
	CapabilityCoding    = "coding"
	CapabilityReasoning = "reasoning"
	CapabilityGeneral   = "general"
	CapabilityBalanced  = "balanced"
	CapabilityFast      = "fast"
	CapabilityCheap     = "cheap"
	CapabilitySimple    = "simple"
	CapabilityAnalysis  = "analysis"
	CapabilityVision    = "vision"
	CapabilityLocal     = "local"
)

// ModelDescriptor describes a model endpoint. Descriptors are shared
// read-only after the catalog is loaded; identity is the wire name.
type ModelDescriptor struct {
	Provider        Provider `json:"provider" toml:"provider" validate:"required"`
	Name            string   `json:"name" toml:"name" validate:"required"`
	CostPer1K       float64  `json:"cost_per_1k" toml:"cost_per_1k" validate:"gte=0"`
	MaxOutputTokens int      `json:"max_output_tokens" toml:"max_output_tokens" validate:"gte=0"`
	ContextWindow   int      `json:"context_window" toml:"context_window" validate:"gte=0"`
	Capabilities    []string `json:"capabilities" toml:"capabilities"`
}

// HasCapability reports whether the model is tagged with tag
func (m *ModelDescriptor) HasCapability(tag string) bool {
	for _, c := range m.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// IsFree reports whether the model has no per-token cost
func (m *ModelDescriptor) IsFree() bool {
	return m.CostPer1K == 0
}

// Same reports whether two descriptors identify the same model
func (m *ModelDescriptor) Same(other *ModelDescriptor) bool {
	if m == nil || other == nil {
		return false
	}
	return m.Name == other.Name
}

// CatalogEntry binds an alias to a model descriptor
type CatalogEntry struct {
	Alias string           `json:"alias"`
	Model *ModelDescriptor `json:"model"`
}
