package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/llm-router/internal/observability"
	"github.com/upb/llm-router/middleware"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// RouteRequest is the body of POST /api/v1/route
type RouteRequest struct {
	Prompt     string             `json:"prompt" validate:"required_without=Model,max=100000"`
	Model      string             `json:"model,omitempty"`
	History    []string           `json:"history,omitempty" validate:"omitempty,max=50"`
	Preference *PreferenceRequest `json:"preference,omitempty"`
	Metadata   map[string]string  `json:"metadata,omitempty"`
}

// PreferenceRequest carries optional routing preferences. MaxCost and
// MinQuality are passed through to the routing context unenforced.
type PreferenceRequest struct {
	PreferredProvider string  `json:"preferred_provider,omitempty" validate:"omitempty,provider"`
	MaxCost           float64 `json:"max_cost,omitempty" validate:"gte=0"`
	MinQuality        float64 `json:"min_quality,omitempty" validate:"gte=0,lte=1"`
	AllowFallback     *bool   `json:"allow_fallback,omitempty"`
}

// RoutingService defines the routing operations used by the API
type RoutingService interface {
	AutoRoute(ctx context.Context, rc *models.RoutingContext) (*models.RoutingDecision, error)
	Route(ctx context.Context, rc *models.RoutingContext, engine string) (*models.RoutingDecision, error)
}

// RouteHandler handles routing decision requests
type RouteHandler struct {
	service RoutingService
	logger  *zap.Logger
}

// NewRouteHandler creates a new RouteHandler
func NewRouteHandler(service RoutingService, logger *zap.Logger) *RouteHandler {
	return &RouteHandler{
		service: service,
		logger:  logger,
	}
}

// HandleAutoRoute handles POST /api/v1/route
func (h *RouteHandler) HandleAutoRoute(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "")
}

// HandleEngineRoute handles POST /api/v1/route/{engine}
func (h *RouteHandler) HandleEngineRoute(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, chi.URLParam(r, "engine"))
}

func (h *RouteHandler) handle(w http.ResponseWriter, r *http.Request, engine string) {
	ctx := r.Context()
	logger := observability.WithRequestID(ctx, h.logger)

	var req RouteRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		logger.Debug("failed to decode route request", zap.Error(err))
		HandleValidationError(w, err, logger)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	rc := req.toRoutingContext(middleware.GetRequestIDFromContext(ctx))

	var (
		decision *models.RoutingDecision
		err      error
	)
	if engine == "" {
		decision, err = h.service.AutoRoute(ctx, rc)
	} else {
		decision, err = h.service.Route(ctx, rc, engine)
	}
	if err != nil {
		logger.Info("routing failed",
			zap.String("engine", engine),
			zap.Error(err))
		HandleServiceError(w, err, logger)
		return
	}

	if err := utils.WriteOK(w, decision); err != nil {
		logger.Error("failed to write route response", zap.Error(err))
	}
}

func (req *RouteRequest) toRoutingContext(requestID string) *models.RoutingContext {
	rc := &models.RoutingContext{
		Prompt:        req.Prompt,
		ExplicitModel: req.Model,
		History:       req.History,
		Metadata:      req.Metadata,
	}

	if req.Preference != nil {
		rc.Preference = &models.UserPreference{
			PreferredProvider: models.Provider(req.Preference.PreferredProvider),
			MaxCost:           req.Preference.MaxCost,
			MinQuality:        req.Preference.MinQuality,
			AllowFallback:     req.Preference.AllowFallback,
		}
	}

	if requestID != "" {
		if rc.Metadata == nil {
			rc.Metadata = make(map[string]string, 1)
		}
		rc.Metadata["request_id"] = requestID
	}

	return rc
}
