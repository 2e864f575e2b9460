package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/llm-router/internal/observability"
	"github.com/upb/llm-router/middleware"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// EngineRegistry defines the registry operations exposed over HTTP
type EngineRegistry interface {
	List() []routing.EngineInfo
	SetEnabled(name string, enabled bool) error
}

// UpdateEngineRequest is the body of PATCH /api/v1/engines/{name}
type UpdateEngineRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// EngineHandler handles engine administration requests
type EngineHandler struct {
	registry EngineRegistry
	logger   *zap.Logger
}

// NewEngineHandler creates a new EngineHandler
func NewEngineHandler(registry EngineRegistry, logger *zap.Logger) *EngineHandler {
	return &EngineHandler{
		registry: registry,
		logger:   logger,
	}
}

// HandleList handles GET /api/v1/engines
func (h *EngineHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.registry.List()); err != nil {
		h.logger.Error("failed to write engine list", zap.Error(err))
	}
}

// HandleUpdate handles PATCH /api/v1/engines/{name}
func (h *EngineHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	logger := observability.WithRequestID(r.Context(), h.logger)
	name := chi.URLParam(r, "name")

	var req UpdateEngineRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, logger)
		return
	}

	if err := h.registry.SetEnabled(name, *req.Enabled); err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	actor := ""
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		actor = claims.Sub
	}
	logger.Info("engine state changed",
		zap.String("engine", name),
		zap.Bool("enabled", *req.Enabled),
		zap.String("actor", actor))

	for _, info := range h.registry.List() {
		if info.Name == name {
			if err := utils.WriteOK(w, info); err != nil {
				logger.Error("failed to write engine response", zap.Error(err))
			}
			return
		}
	}

	// Unregistered between the update and the listing
	HandleServiceError(w, services.ErrEngineNotFound.With(nil).WithDetail("engine", name), logger)
}
