package classification

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/llm-router/models"
)

// PrivacyName is the registry name of the privacy classifier
const PrivacyName = "privacy"

const (
	privacyConfidence = 0.95
	privacyHintNone   = 0.0
)

// PrivacyClassifier keeps prompts carrying personal data or credentials on
// a local model. Its confidence hint is zero for ordinary prompts, so
// arbitration skips it unless something sensitive is present.
type PrivacyClassifier struct {
	catalog Catalog
}

// NewPrivacyClassifier creates a PrivacyClassifier
func NewPrivacyClassifier(c Catalog) *PrivacyClassifier {
	return &PrivacyClassifier{catalog: c}
}

// Name returns the classifier name
func (p *PrivacyClassifier) Name() string {
	return PrivacyName
}

// Confidence returns 0.95 when the prompt or history holds sensitive content
func (p *PrivacyClassifier) Confidence(rc *models.RoutingContext) float64 {
	if len(p.scan(rc)) > 0 {
		return privacyConfidence
	}
	return privacyHintNone
}

// Decide routes sensitive prompts to the cheapest local model. It returns
// a nil decision when nothing sensitive is found or no local model exists.
func (p *PrivacyClassifier) Decide(_ context.Context, rc *models.RoutingContext) (*models.RoutingDecision, error) {
	kinds := p.scan(rc)
	if len(kinds) == 0 {
		return nil, nil
	}

	var local []*models.ModelDescriptor
	for _, provider := range models.Providers {
		if !provider.IsLocal() {
			continue
		}
		for _, m := range p.catalog.ByProvider(provider) {
			if m.IsFree() {
				local = append(local, m)
			}
		}
	}
	if len(local) == 0 {
		return nil, nil
	}

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}

	d := models.NewRoutingDecision(local[0], privacyConfidence,
		fmt.Sprintf("sensitive content detected (%s): keeping request on a local model", strings.Join(names, ", ")),
		local[1:])
	d.Engine = PrivacyName
	return d, nil
}

func (p *PrivacyClassifier) scan(rc *models.RoutingContext) []SensitiveKind {
	if rc == nil {
		return nil
	}
	if kinds := DetectSensitive(rc.Prompt); len(kinds) > 0 {
		return kinds
	}
	for _, turn := range rc.History {
		if kinds := DetectSensitive(turn); len(kinds) > 0 {
			return kinds
		}
	}
	return nil
}
