package classification

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/catalog"
)

// HeuristicName is the registry name of the heuristic classifier
const HeuristicName = "heuristic"

// Catalog is the read-only model catalog the classifiers select from
type Catalog interface {
	Lookup(aliasOrName string) (*models.ModelDescriptor, bool)
	ByProvider(p models.Provider) []*models.ModelDescriptor
	ByCapability(tag string) []*models.ModelDescriptor
	Cheapest(tag string, preferFree bool) (*models.ModelDescriptor, bool)
}

// HeuristicRoles names the catalog alias used for each selection outcome
type HeuristicRoles struct {
	CodingSpecialist string
	BalancedCoding   string
	TopReasoning     string
	BalancedGeneral  string
	FastCheap        string
	Local            string
	CheapCloud       string
}

// DefaultHeuristicRoles binds the roles to the built-in catalog
func DefaultHeuristicRoles() HeuristicRoles {
	return HeuristicRoles{
		CodingSpecialist: catalog.AliasClaudeSonnet,
		BalancedCoding:   catalog.AliasDeepSeekCoder,
		TopReasoning:     catalog.AliasClaudeOpus,
		BalancedGeneral:  catalog.AliasGPT4o,
		FastCheap:        catalog.AliasClaudeHaiku,
		Local:            catalog.AliasLlamaLocal,
		CheapCloud:       catalog.AliasGPT4oMini,
	}
}

const (
	heartbeatConfidence = 0.99
	greetingConfidence  = 0.90
	explicitConfidence  = 1.0
	minScoreConfidence  = 0.5
)

// HeuristicClassifier maps a prompt to a model using regular expressions
// and a complexity score. It performs no I/O and always returns a
// decision for a non-empty catalog.
type HeuristicClassifier struct {
	catalog Catalog
	roles   HeuristicRoles
}

// NewHeuristicClassifier creates a HeuristicClassifier
func NewHeuristicClassifier(c Catalog, roles HeuristicRoles) *HeuristicClassifier {
	return &HeuristicClassifier{catalog: c, roles: roles}
}

// Name returns the classifier name
func (h *HeuristicClassifier) Name() string {
	return HeuristicName
}

// Decide returns a routing decision for rc. The error is always nil.
func (h *HeuristicClassifier) Decide(_ context.Context, rc *models.RoutingContext) (*models.RoutingDecision, error) {
	return h.decide(rc), nil
}

func (h *HeuristicClassifier) decide(rc *models.RoutingContext) *models.RoutingDecision {
	if rc == nil {
		rc = &models.RoutingContext{}
	}

	if explicit, ok := resolveExplicit(h.catalog, rc); ok {
		return h.decision(explicit, explicitConfidence, "explicit request", h.fallbacksFor(explicit))
	}

	prompt := rc.Prompt

	if IsHeartbeat(prompt) {
		local := h.role(h.roles.Local, true)
		if local == nil {
			return nil
		}
		return h.decision(local, heartbeatConfidence, "heartbeat/status check", nil)
	}

	if IsGreeting(prompt) {
		local := h.role(h.roles.Local, true)
		if local == nil {
			return nil
		}
		var fallbacks []*models.ModelDescriptor
		if cloud, ok := h.catalog.Lookup(h.roles.CheapCloud); ok {
			fallbacks = append(fallbacks, cloud)
		}
		return h.decision(local, greetingConfidence, "short greeting or acknowledgment", fallbacks)
	}

	a := Analyze(prompt)
	alias, reason := h.selectRole(a)
	model := h.role(alias, false)
	if model == nil {
		return nil
	}
	rationale := fmt.Sprintf("%s (complexity %.0f)", reason, a.Score)

	if preferred := rc.PreferredProvider(); preferred != "" && preferred != model.Provider {
		if substitute := cheapestOf(h.catalog.ByProvider(preferred)); substitute != nil {
			rationale += fmt.Sprintf("; preferred provider %s: using %s instead of %s", preferred, substitute.Name, model.Name)
			model = substitute
		}
	}

	confidence := math.Max(minScoreConfidence, 1-a.Score/200)
	return h.decision(model, confidence, rationale, h.fallbacksFor(model))
}

// selectRole applies the selection table. Branch order and the strict
// boundaries are significant.
func (h *HeuristicClassifier) selectRole(a Analysis) (string, string) {
	switch {
	case a.IsCodeQuery && a.Score > 50:
		return h.roles.CodingSpecialist, "complex code query"
	case a.IsCodeQuery:
		return h.roles.BalancedCoding, "code query"
	case a.Score > 70:
		return h.roles.TopReasoning, "high complexity reasoning"
	case a.Score > 40:
		return h.roles.BalancedGeneral, "moderate complexity"
	case a.Score > 20:
		return h.roles.FastCheap, "low complexity"
	default:
		return h.roles.Local, "simple prompt"
	}
}

// role resolves alias, degrading to the cheapest catalog model
func (h *HeuristicClassifier) role(alias string, preferFree bool) *models.ModelDescriptor {
	if m, ok := h.catalog.Lookup(alias); ok {
		return m
	}
	if m, ok := h.catalog.Cheapest("", preferFree); ok {
		return m
	}
	return nil
}

// fallbacksFor proposes up to two cheaper models from the same provider,
// nearest price first, then up to two free local models.
func (h *HeuristicClassifier) fallbacksFor(chosen *models.ModelDescriptor) []*models.ModelDescriptor {
	cheaper := make([]*models.ModelDescriptor, 0)
	for _, m := range h.catalog.ByProvider(chosen.Provider) {
		if m.CostPer1K < chosen.CostPer1K && !m.Same(chosen) {
			cheaper = append(cheaper, m)
		}
	}
	sort.SliceStable(cheaper, func(i, j int) bool {
		return cheaper[i].CostPer1K > cheaper[j].CostPer1K
	})
	if len(cheaper) > 2 {
		cheaper = cheaper[:2]
	}

	local := make([]*models.ModelDescriptor, 0, 2)
	for _, p := range models.Providers {
		if !p.IsLocal() {
			continue
		}
		for _, m := range h.catalog.ByProvider(p) {
			if len(local) == 2 {
				break
			}
			if m.IsFree() && !m.Same(chosen) && !contains(cheaper, m) {
				local = append(local, m)
			}
		}
	}

	return append(cheaper, local...)
}

func (h *HeuristicClassifier) decision(model *models.ModelDescriptor, confidence float64, rationale string, fallbacks []*models.ModelDescriptor) *models.RoutingDecision {
	d := models.NewRoutingDecision(model, confidence, rationale, fallbacks)
	d.Engine = HeuristicName
	return d
}

// resolveExplicit returns the explicitly requested model when the catalog knows it
func resolveExplicit(c Catalog, rc *models.RoutingContext) (*models.ModelDescriptor, bool) {
	if rc == nil || rc.ExplicitModel == "" {
		return nil, false
	}
	return c.Lookup(rc.ExplicitModel)
}

func cheapestOf(candidates []*models.ModelDescriptor) *models.ModelDescriptor {
	var best *models.ModelDescriptor
	for _, m := range candidates {
		if best == nil || m.CostPer1K < best.CostPer1K {
			best = m
		}
	}
	return best
}

func contains(list []*models.ModelDescriptor, m *models.ModelDescriptor) bool {
	for _, x := range list {
		if x.Same(m) {
			return true
		}
	}
	return false
}
