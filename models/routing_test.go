package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sonnet = &ModelDescriptor{Provider: ProviderAnthropic, Name: "claude-sonnet-4-20250514", CostPer1K: 0.009, Capabilities: []string{CapabilityCoding, CapabilityBalanced}}
	haiku  = &ModelDescriptor{Provider: ProviderAnthropic, Name: "claude-3-5-haiku-20241022", CostPer1K: 0.0024}
	mini   = &ModelDescriptor{Provider: ProviderOpenAI, Name: "gpt-4o-mini", CostPer1K: 0.00036}
	phi    = &ModelDescriptor{Provider: ProviderOllama, Name: "phi3:mini"}
	llama  = &ModelDescriptor{Provider: ProviderOllama, Name: "llama3.2:3b"}
)

func names(list []*ModelDescriptor) []string {
	out := make([]string, len(list))
	for i, m := range list {
		out[i] = m.Name
	}
	return out
}

func TestProvider(t *testing.T) {
	for _, p := range Providers {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Provider("azure").Valid())

	assert.True(t, ProviderOllama.IsLocal())
	assert.False(t, ProviderAnthropic.IsLocal())
}

func TestModelDescriptor(t *testing.T) {
	assert.True(t, sonnet.HasCapability(CapabilityCoding))
	assert.False(t, sonnet.HasCapability(CapabilityVision))

	assert.True(t, llama.IsFree())
	assert.False(t, haiku.IsFree())

	copyOfSonnet := *sonnet
	assert.True(t, sonnet.Same(&copyOfSonnet))
	assert.False(t, sonnet.Same(haiku))
	assert.False(t, sonnet.Same(nil))
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name  string
		model *ModelDescriptor
		want  float64
	}{
		{"paid model", sonnet, 0.018},
		{"cheap model", mini, 0.00072},
		{"free model", llama, 0},
		{"nil model", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EstimateCost(tt.model), 1e-12)
		})
	}
}

func TestFilterFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		chosen     *ModelDescriptor
		candidates []*ModelDescriptor
		want       []string
	}{
		{
			name:       "drops chosen model",
			chosen:     haiku,
			candidates: []*ModelDescriptor{haiku, mini, llama},
			want:       []string{"gpt-4o-mini", "llama3.2:3b"},
		},
		{
			name:       "drops duplicates and nils",
			chosen:     sonnet,
			candidates: []*ModelDescriptor{mini, nil, mini, phi},
			want:       []string{"gpt-4o-mini", "phi3:mini"},
		},
		{
			name:       "caps length",
			chosen:     sonnet,
			candidates: []*ModelDescriptor{haiku, mini, phi, llama},
			want:       []string{"claude-3-5-haiku-20241022", "gpt-4o-mini", "phi3:mini"},
		},
		{
			name:   "empty input",
			chosen: sonnet,
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterFallbacks(tt.chosen, tt.candidates)
			assert.Equal(t, tt.want, names(got))
			assert.LessOrEqual(t, len(got), MaxFallbacks)
		})
	}
}

func TestNewRoutingDecision(t *testing.T) {
	d := NewRoutingDecision(haiku, 1.4, "test", []*ModelDescriptor{haiku, llama})

	assert.Equal(t, 1.0, d.Confidence)
	assert.InDelta(t, 0.0048, d.EstimatedCost, 1e-12)
	assert.Equal(t, []string{"llama3.2:3b"}, names(d.Fallbacks))

	assert.Equal(t, 0.0, NewRoutingDecision(llama, -0.2, "", nil).Confidence)
	assert.NotNil(t, NewRoutingDecision(llama, 0.5, "", nil).Fallbacks)
}

func TestRoutingDecision_WithoutFallbacks(t *testing.T) {
	d := NewRoutingDecision(sonnet, 0.7, "balanced", []*ModelDescriptor{haiku, mini})

	stripped := d.WithoutFallbacks()

	assert.Empty(t, stripped.Fallbacks)
	assert.Len(t, d.Fallbacks, 2, "original must be untouched")
	assert.Equal(t, d.Model, stripped.Model)
}

func TestRoutingDecision_JSON(t *testing.T) {
	d := NewRoutingDecision(llama, 0.99, "heartbeat/status check", nil)
	d.Engine = "heuristic"

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "heuristic", body["engine"])
	assert.Equal(t, []interface{}{}, body["fallbacks"])
	assert.Contains(t, body, "id")
}

func TestUserPreference_FallbackAllowed(t *testing.T) {
	allow, deny := true, false

	tests := []struct {
		name string
		pref *UserPreference
		want bool
	}{
		{"nil preference", nil, true},
		{"unset", &UserPreference{}, true},
		{"allowed", &UserPreference{AllowFallback: &allow}, true},
		{"denied", &UserPreference{AllowFallback: &deny}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pref.FallbackAllowed())
		})
	}
}

func TestRoutingContext_PreferredProvider(t *testing.T) {
	var nilCtx *RoutingContext
	assert.Equal(t, Provider(""), nilCtx.PreferredProvider())
	assert.Equal(t, Provider(""), (&RoutingContext{}).PreferredProvider())

	rc := &RoutingContext{Preference: &UserPreference{PreferredProvider: ProviderOpenAI}}
	assert.Equal(t, ProviderOpenAI, rc.PreferredProvider())
}

func TestTier_Valid(t *testing.T) {
	for _, tier := range []Tier{TierSimple, TierMedium, TierComplex, TierReasoning} {
		assert.True(t, tier.Valid(), tier)
	}
	assert.False(t, Tier("trivial").Valid())
	assert.False(t, Tier("").Valid())
}
