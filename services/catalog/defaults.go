package catalog

import "github.com/upb/llm-router/models"

// Well-known aliases of the built-in catalog
const (
	AliasClaudeOpus     = "claude-opus"
	AliasClaudeSonnet   = "claude-sonnet"
	AliasClaudeHaiku    = "claude-haiku"
	AliasGPT4o          = "gpt-4o"
	AliasGPT4oMini      = "gpt-4o-mini"
	AliasO1             = "o1"
	AliasGeminiFlash    = "gemini-flash"
	AliasDeepSeekCoder  = "deepseek-coder"
	AliasQwenCoderLocal = "qwen-coder-local"
	AliasPhiLocal       = "phi-local"
	AliasLlamaLocal     = "llama-local"
)

// Pricing is a blended input/output price per 1K tokens in USD.
func defaultEntries() []Entry {
	return []Entry{
		{Alias: AliasClaudeOpus, Model: &models.ModelDescriptor{
			Provider: models.ProviderAnthropic, Name: "claude-opus-4-20250514",
			CostPer1K: 0.045, MaxOutputTokens: 32000, ContextWindow: 200000,
			Capabilities: []string{models.CapabilityReasoning, models.CapabilityCoding, models.CapabilityAnalysis},
		}},
		{Alias: AliasClaudeSonnet, Model: &models.ModelDescriptor{
			Provider: models.ProviderAnthropic, Name: "claude-sonnet-4-20250514",
			CostPer1K: 0.009, MaxOutputTokens: 64000, ContextWindow: 200000,
			Capabilities: []string{models.CapabilityCoding, models.CapabilityBalanced, models.CapabilityGeneral, models.CapabilityAnalysis},
		}},
		{Alias: AliasClaudeHaiku, Model: &models.ModelDescriptor{
			Provider: models.ProviderAnthropic, Name: "claude-3-5-haiku-20241022",
			CostPer1K: 0.0024, MaxOutputTokens: 8192, ContextWindow: 200000,
			Capabilities: []string{models.CapabilityFast, models.CapabilityCheap, models.CapabilityGeneral},
		}},
		{Alias: AliasGPT4o, Model: &models.ModelDescriptor{
			Provider: models.ProviderOpenAI, Name: "gpt-4o",
			CostPer1K: 0.00625, MaxOutputTokens: 16384, ContextWindow: 128000,
			Capabilities: []string{models.CapabilityGeneral, models.CapabilityBalanced, models.CapabilityCoding, models.CapabilityVision},
		}},
		{Alias: AliasGPT4oMini, Model: &models.ModelDescriptor{
			Provider: models.ProviderOpenAI, Name: "gpt-4o-mini",
			CostPer1K: 0.000375, MaxOutputTokens: 16384, ContextWindow: 128000,
			Capabilities: []string{models.CapabilityFast, models.CapabilityCheap, models.CapabilitySimple},
		}},
		{Alias: AliasO1, Model: &models.ModelDescriptor{
			Provider: models.ProviderOpenAI, Name: "o1",
			CostPer1K: 0.0375, MaxOutputTokens: 100000, ContextWindow: 200000,
			Capabilities: []string{models.CapabilityReasoning, models.CapabilityAnalysis},
		}},
		{Alias: AliasGeminiFlash, Model: &models.ModelDescriptor{
			Provider: models.ProviderGoogle, Name: "gemini-2.0-flash",
			CostPer1K: 0.00025, MaxOutputTokens: 8192, ContextWindow: 1000000,
			Capabilities: []string{models.CapabilityFast, models.CapabilityCheap, models.CapabilitySimple, models.CapabilityGeneral},
		}},
		{Alias: AliasDeepSeekCoder, Model: &models.ModelDescriptor{
			Provider: models.ProviderDeepSeek, Name: "deepseek-coder",
			CostPer1K: 0.00069, MaxOutputTokens: 8192, ContextWindow: 64000,
			Capabilities: []string{models.CapabilityCoding, models.CapabilityCheap},
		}},
		{Alias: AliasQwenCoderLocal, Model: &models.ModelDescriptor{
			Provider: models.ProviderOllama, Name: "qwen2.5-coder:7b",
			CostPer1K: 0, MaxOutputTokens: 4096, ContextWindow: 32768,
			Capabilities: []string{models.CapabilityCoding, models.CapabilityLocal},
		}},
		{Alias: AliasPhiLocal, Model: &models.ModelDescriptor{
			Provider: models.ProviderOllama, Name: "phi3:mini",
			CostPer1K: 0, MaxOutputTokens: 4096, ContextWindow: 4096,
			Capabilities: []string{models.CapabilitySimple, models.CapabilityFast, models.CapabilityLocal},
		}},
		{Alias: AliasLlamaLocal, Model: &models.ModelDescriptor{
			Provider: models.ProviderOllama, Name: "llama3.2:3b",
			CostPer1K: 0, MaxOutputTokens: 4096, ContextWindow: 131072,
			Capabilities: []string{models.CapabilitySimple, models.CapabilityGeneral, models.CapabilityLocal},
		}},
	}
}

// Default returns the built-in catalog
func Default() *Catalog {
	return MustNew(defaultEntries())
}

// DefaultEntries returns a fresh copy of the built-in entries
func DefaultEntries() []Entry {
	return defaultEntries()
}
