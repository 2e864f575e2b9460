package classification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/catalog"
	"github.com/upb/llm-router/services/providers"
)

// TwoStageName is the registry name of the two-stage classifier
const TwoStageName = "two-stage"

const (
	tierConfidencePenalty = 0.9
	maxTemplatePrompt     = 2000
	classifierTemperature = 0.1
	defaultNumPredict     = 150
	defaultFastTimeout    = 5 * time.Second
)

var (
	// ErrFastModelRateLimited is returned when the call budget is exhausted
	ErrFastModelRateLimited = errors.New("fast model call budget exhausted")

	// ErrNoGenerator is returned when no fast model is configured
	ErrNoGenerator = errors.New("no fast model configured")
)

const classificationTemplate = `You are a request classifier for a model router. Classify the user request into exactly one tier:
- simple: greetings, acknowledgments, short factual lookups, trivial formatting
- medium: ordinary questions, explanations, short code snippets
- complex: multi-step coding, debugging, refactoring, long documents
- reasoning: proofs, deep analysis, research, architecture trade-offs

Reply with a single JSON object and nothing else:
{"tier": "simple|medium|complex|reasoning", "confidence": 0.0-1.0, "reasoning": "one short sentence", "indicators": ["short", "signals"]}

Request: "%s"`

var tracer = otel.Tracer("github.com/upb/llm-router/services/classification")

// TierModel binds a tier to a primary alias and an in-catalog secondary.
// The secondary is Secondary when set, otherwise the cheapest model with
// Capability.
type TierModel struct {
	Primary    string
	Secondary  string
	Capability string
	PreferFree bool
}

// TierModels maps every tier to its models
type TierModels map[models.Tier]TierModel

// DefaultTierModels binds the tiers to the built-in catalog
func DefaultTierModels() TierModels {
	return TierModels{
		models.TierSimple:    {Primary: catalog.AliasLlamaLocal, Capability: models.CapabilitySimple, PreferFree: true},
		models.TierMedium:    {Primary: catalog.AliasClaudeHaiku, Capability: models.CapabilityFast},
		models.TierComplex:   {Primary: catalog.AliasClaudeSonnet, Secondary: catalog.AliasGPT4o},
		models.TierReasoning: {Primary: catalog.AliasClaudeOpus, Secondary: catalog.AliasO1},
	}
}

// DefaultTwoStageFallbacks is the fixed fallback preference order
func DefaultTwoStageFallbacks() []string {
	return []string{
		catalog.AliasGPT4oMini,
		catalog.AliasGeminiFlash,
		catalog.AliasPhiLocal,
		catalog.AliasLlamaLocal,
	}
}

// TwoStageOptions configures a TwoStageClassifier
type TwoStageOptions struct {
	// FastModel is the backend model name used for classification
	FastModel string

	// Timeout bounds each fast model call
	Timeout time.Duration

	// CacheEnabled turns the classification cache on
	CacheEnabled bool

	// PrefixLength is the number of prompt characters fingerprinted
	PrefixLength int

	// NumPredict caps generated tokens
	NumPredict int

	// Limiter, when set, bounds the rate of fast model calls
	Limiter *rate.Limiter

	Tiers     TierModels
	Fallbacks []string
}

// TwoStageClassifier asks a small local model for a complexity tier and
// maps the tier to a catalog model. Classification failures degrade to
// the medium tier and are never returned to the caller.
type TwoStageClassifier struct {
	catalog   Catalog
	generator providers.Generator
	cache     *Cache
	opts      TwoStageOptions
	group     singleflight.Group
	logger    *zap.Logger
}

// NewTwoStageClassifier creates a TwoStageClassifier. cache may be nil
// when caching is disabled.
func NewTwoStageClassifier(c Catalog, generator providers.Generator, cache *Cache, opts TwoStageOptions, logger *zap.Logger) *TwoStageClassifier {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFastTimeout
	}
	if opts.PrefixLength <= 0 {
		opts.PrefixLength = DefaultPrefixLength
	}
	if opts.NumPredict <= 0 {
		opts.NumPredict = defaultNumPredict
	}
	if opts.Tiers == nil {
		opts.Tiers = DefaultTierModels()
	}
	if opts.Fallbacks == nil {
		opts.Fallbacks = DefaultTwoStageFallbacks()
	}
	if !opts.CacheEnabled {
		cache = nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TwoStageClassifier{
		catalog:   c,
		generator: generator,
		cache:     cache,
		opts:      opts,
		logger:    logger,
	}
}

// Name returns the classifier name
func (t *TwoStageClassifier) Name() string {
	return TwoStageName
}

// Confidence is a cheap pre-check used by arbitration to avoid the
// network call on very short prompts
func (t *TwoStageClassifier) Confidence(rc *models.RoutingContext) float64 {
	if rc == nil {
		return 0.3
	}
	switch n := utf8.RuneCountInString(rc.Prompt); {
	case n < 20:
		return 0.3
	case n < 100:
		return 0.6
	default:
		return 0.85
	}
}

// Decide classifies the prompt and maps the tier to a model. The error
// is always nil; a nil decision means the catalog has no usable model.
func (t *TwoStageClassifier) Decide(ctx context.Context, rc *models.RoutingContext) (*models.RoutingDecision, error) {
	if rc == nil {
		rc = &models.RoutingContext{}
	}

	if explicit, ok := resolveExplicit(t.catalog, rc); ok {
		return t.decision(explicit, explicitConfidence, "explicit request"), nil
	}

	start := time.Now()
	result := t.Classify(ctx, rc.Prompt)
	latency := time.Since(start)

	model := t.modelForTier(result.Tier)
	if model == nil {
		return nil, nil
	}

	indicators := "none"
	if len(result.Indicators) > 0 {
		indicators = strings.Join(result.Indicators, ", ")
	}
	rationale := fmt.Sprintf("tier %s (confidence %.2f): %s; classified in %dms; indicators: %s",
		result.Tier, result.Confidence, result.Rationale, latency.Milliseconds(), indicators)

	return t.decision(model, result.Confidence*tierConfidencePenalty, rationale), nil
}

// Classify returns the tier classification for prompt, from the cache when
// possible. It always returns a result.
func (t *TwoStageClassifier) Classify(ctx context.Context, prompt string) models.ClassificationResult {
	key := Fingerprint(prompt, t.opts.PrefixLength)

	if t.cache != nil {
		if result, ok := t.cache.Get(key); ok {
			t.logger.Debug("classification cache hit", zap.String("fingerprint", key[:12]))
			return result
		}
	}

	// The shared call outlives any single caller; each caller still stops
	// waiting when its own context ends.
	callCtx := context.WithoutCancel(ctx)
	ch := t.group.DoChan(key, func() (interface{}, error) {
		result, err := t.callFastModel(callCtx, prompt)
		if err != nil {
			return nil, err
		}
		if t.cache != nil {
			t.cache.Set(key, result)
		}
		return result, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res = singleflight.Result{Err: ctx.Err()}
	}
	if res.Err != nil {
		t.logger.Warn("classification failed, using fallback tier",
			zap.String("fast_model", t.opts.FastModel),
			zap.Error(res.Err),
		)
		return FallbackResult()
	}
	if res.Shared {
		t.logger.Debug("classification shared with concurrent request", zap.String("fingerprint", key[:12]))
	}

	v := res.Val
	return copyResult(v.(models.ClassificationResult))
}

// CacheStats reports cache statistics, false when caching is disabled
func (t *TwoStageClassifier) CacheStats() (CacheStats, bool) {
	if t.cache == nil {
		return CacheStats{}, false
	}
	return t.cache.Stats(), true
}

func (t *TwoStageClassifier) callFastModel(ctx context.Context, prompt string) (models.ClassificationResult, error) {
	if t.generator == nil {
		return models.ClassificationResult{}, ErrNoGenerator
	}
	if t.opts.Limiter != nil && !t.opts.Limiter.Allow() {
		return models.ClassificationResult{}, ErrFastModelRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "classification.fast_model",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.fast_model.backend", t.generator.Name()),
			attribute.String("llm.fast_model.name", t.opts.FastModel),
		),
	)
	defer span.End()

	resp, err := t.generator.Generate(ctx, &providers.GenerateRequest{
		Model:  t.opts.FastModel,
		Prompt: BuildClassificationPrompt(prompt),
		Options: providers.GenerateOptions{
			Temperature: classifierTemperature,
			NumPredict:  t.opts.NumPredict,
		},
		Stream: false,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fast model call failed")
		return models.ClassificationResult{}, err
	}

	result, err := ParseClassification(resp.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unparseable classification")
		return models.ClassificationResult{}, err
	}

	span.SetAttributes(
		attribute.String("llm.tier", string(result.Tier)),
		attribute.Float64("llm.tier_confidence", result.Confidence),
	)
	return result, nil
}

// BuildClassificationPrompt interpolates prompt into the instruction
// template, truncated to 2000 characters with double quotes escaped
func BuildClassificationPrompt(prompt string) string {
	if utf8.RuneCountInString(prompt) > maxTemplatePrompt {
		prompt = string([]rune(prompt)[:maxTemplatePrompt])
	}
	return fmt.Sprintf(classificationTemplate, strings.ReplaceAll(prompt, `"`, `\"`))
}

func (t *TwoStageClassifier) modelForTier(tier models.Tier) *models.ModelDescriptor {
	binding, ok := t.opts.Tiers[tier]
	if !ok {
		binding = t.opts.Tiers[models.TierMedium]
	}

	if m, ok := t.catalog.Lookup(binding.Primary); ok {
		return m
	}
	if binding.Secondary != "" {
		if m, ok := t.catalog.Lookup(binding.Secondary); ok {
			return m
		}
	}
	if m, ok := t.catalog.Cheapest(binding.Capability, binding.PreferFree); ok {
		return m
	}
	if m, ok := t.catalog.Cheapest("", true); ok {
		return m
	}
	return nil
}

func (t *TwoStageClassifier) fallbacks() []*models.ModelDescriptor {
	out := make([]*models.ModelDescriptor, 0, len(t.opts.Fallbacks))
	for _, alias := range t.opts.Fallbacks {
		if m, ok := t.catalog.Lookup(alias); ok {
			out = append(out, m)
		}
	}
	return out
}

func (t *TwoStageClassifier) decision(model *models.ModelDescriptor, confidence float64, rationale string) *models.RoutingDecision {
	d := models.NewRoutingDecision(model, confidence, rationale, t.fallbacks())
	d.Engine = TwoStageName
	return d
}
