package routing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/services/audit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/upb/llm-router/services/routing")

// DecisionRecorder receives every decision the service returns
type DecisionRecorder interface {
	RecordDecision(event *audit.DecisionEvent) error
}

// Service is the request-facing entry point for routing. It validates the
// context, delegates to the registry and records the outcome.
type Service struct {
	registry *Registry
	recorder DecisionRecorder
	logger   *zap.Logger
}

// NewService creates a routing service. recorder may be nil.
func NewService(registry *Registry, recorder DecisionRecorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: registry,
		recorder: recorder,
		logger:   logger,
	}
}

// Registry returns the engine registry
func (s *Service) Registry() *Registry {
	return s.registry
}

// AutoRoute arbitrates across all enabled engines
func (s *Service) AutoRoute(ctx context.Context, rc *models.RoutingContext) (*models.RoutingDecision, error) {
	ctx, span := tracer.Start(ctx, "routing.auto_route")
	defer span.End()

	return s.run(ctx, span, rc, func(ctx context.Context) (*models.RoutingDecision, error) {
		return s.registry.AutoRoute(ctx, rc)
	})
}

// Route invokes exactly the named engine
func (s *Service) Route(ctx context.Context, rc *models.RoutingContext, engine string) (*models.RoutingDecision, error) {
	ctx, span := tracer.Start(ctx, "routing.route", trace.WithAttributes(
		attribute.String("routing.engine.requested", engine),
	))
	defer span.End()

	return s.run(ctx, span, rc, func(ctx context.Context) (*models.RoutingDecision, error) {
		return s.registry.Route(ctx, rc, engine)
	})
}

func (s *Service) run(
	ctx context.Context,
	span trace.Span,
	rc *models.RoutingContext,
	decide func(context.Context) (*models.RoutingDecision, error),
) (*models.RoutingDecision, error) {
	if err := validateContext(rc); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	d, err := decide(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("routing failed", zap.Error(err))
		return nil, err
	}

	if !rc.Preference.FallbackAllowed() {
		d = d.WithoutFallbacks()
	}
	d.ID = uuid.New()
	d.Latency = time.Since(start)

	span.SetAttributes(
		attribute.String("routing.engine", d.Engine),
		attribute.String("routing.model", d.Model.Name),
		attribute.String("routing.provider", string(d.Model.Provider)),
		attribute.Float64("routing.confidence", d.Confidence),
		attribute.Float64("routing.estimated_cost", d.EstimatedCost),
	)

	s.logger.Info("routing decision",
		zap.String("decision_id", d.ID.String()),
		zap.String("engine", d.Engine),
		zap.String("model", d.Model.Name),
		zap.Float64("confidence", d.Confidence),
		zap.Duration("latency", d.Latency))

	if s.recorder != nil {
		if err := s.recorder.RecordDecision(audit.NewDecisionEvent(d.ID, d)); err != nil {
			s.logger.Warn("failed to record routing decision",
				zap.String("decision_id", d.ID.String()), zap.Error(err))
		}
	}

	return d, nil
}

func validateContext(rc *models.RoutingContext) error {
	if rc == nil {
		return services.ErrInvalidInput.With(nil).WithDetail("field", "context")
	}
	if strings.TrimSpace(rc.Prompt) == "" && rc.ExplicitModel == "" {
		return services.ErrEmptyPrompt
	}
	return nil
}
