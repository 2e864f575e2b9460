package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// AssumedTokenBudget is the fixed token count used for cost estimates.
	// Estimates do not look at the actual prompt or response size.
	AssumedTokenBudget = 2000

	// MaxFallbacks caps the length of a decision's fallback chain
	MaxFallbacks = 3
)

// UserPreference carries optional per-request routing preferences.
// The classifiers act on PreferredProvider and AllowFallback only. MaxCost
// and MinQuality are advisory: they are carried to downstream collaborators
// and never enforced by a classifier.
type UserPreference struct {
	PreferredProvider Provider `json:"preferred_provider,omitempty"`
	MaxCost           float64  `json:"max_cost,omitempty"`
	MinQuality        float64  `json:"min_quality,omitempty"`
	AllowFallback     *bool    `json:"allow_fallback,omitempty"`
}

// FallbackAllowed reports whether a fallback chain may be proposed
func (p *UserPreference) FallbackAllowed() bool {
	if p == nil || p.AllowFallback == nil {
		return true
	}
	return *p.AllowFallback
}

// RoutingContext is the per-request input to every classifier.
// Classifiers must treat it as read-only.
type RoutingContext struct {
	Prompt        string            `json:"prompt"`
	ExplicitModel string            `json:"model,omitempty"`
	History       []string          `json:"history,omitempty"`
	Preference    *UserPreference   `json:"preference,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// PreferredProvider returns the preferred provider, or "" when none is set
func (rc *RoutingContext) PreferredProvider() Provider {
	if rc == nil || rc.Preference == nil {
		return ""
	}
	return rc.Preference.PreferredProvider
}

// Tier is the complexity bucket assigned by the two-stage classifier
type Tier string

const (
	TierSimple    Tier = "simple"
	TierMedium    Tier = "medium"
	TierComplex   Tier = "complex"
	TierReasoning Tier = "reasoning"
)

// Valid reports whether t is one of the four known tiers
func (t Tier) Valid() bool {
	switch t {
	case TierSimple, TierMedium, TierComplex, TierReasoning:
		return true
	}
	return false
}

// ClassificationResult is the outcome of a single tier classification
type ClassificationResult struct {
	Tier       Tier     `json:"tier"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Indicators []string `json:"indicators"`
}

// RoutingDecision is the output of a classifier
type RoutingDecision struct {
	ID            uuid.UUID          `json:"id"`
	Model         *ModelDescriptor   `json:"model"`
	Confidence    float64            `json:"confidence"`
	Rationale     string             `json:"rationale"`
	EstimatedCost float64            `json:"estimated_cost"`
	Fallbacks     []*ModelDescriptor `json:"fallbacks"`

	// Engine is the name of the classifier that produced the decision
	Engine  string        `json:"engine,omitempty"`
	Latency time.Duration `json:"latency_ns,omitempty"`
}

// NewRoutingDecision builds a decision for model. The fallback chain is
// filtered so it never contains model or duplicates and is capped at
// MaxFallbacks entries. Confidence is clamped to [0,1].
func NewRoutingDecision(model *ModelDescriptor, confidence float64, rationale string, fallbacks []*ModelDescriptor) *RoutingDecision {
	return &RoutingDecision{
		Model:         model,
		Confidence:    clamp01(confidence),
		Rationale:     rationale,
		EstimatedCost: EstimateCost(model),
		Fallbacks:     FilterFallbacks(model, fallbacks),
	}
}

// EstimateCost returns the cost of AssumedTokenBudget tokens on model
func EstimateCost(model *ModelDescriptor) float64 {
	if model == nil {
		return 0
	}
	return model.CostPer1K * AssumedTokenBudget / 1000
}

// FilterFallbacks drops nil entries, the chosen model and duplicates, and
// caps the result at MaxFallbacks.
func FilterFallbacks(chosen *ModelDescriptor, candidates []*ModelDescriptor) []*ModelDescriptor {
	out := make([]*ModelDescriptor, 0, MaxFallbacks)
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if len(out) == MaxFallbacks {
			break
		}
		if c == nil || c.Same(chosen) || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return out
}

// WithoutFallbacks returns a copy of d with an empty fallback chain
func (d *RoutingDecision) WithoutFallbacks() *RoutingDecision {
	cp := *d
	cp.Fallbacks = []*ModelDescriptor{}
	return &cp
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
