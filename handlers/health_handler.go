package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

const (
	statusHealthy       = "healthy"
	statusUnhealthy     = "unhealthy"
	statusDegraded      = "degraded"
	statusNotConfigured = "not_configured"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db        *sql.DB
	fastModel Pinger
	timeout   time.Duration
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and fastModel may be nil
// when the catalog is not database backed or two-stage classification is off.
func NewHealthHandler(db *sql.DB, fastModel Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		fastModel: fastModel,
		timeout:   5 * time.Second,
		logger:    logger,
	}
}

// HandleHealth handles GET /healthz
// Basic liveness check - always returns 200 if the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// A failed database makes the service unready. An unreachable fast model
// only degrades it, since classification falls back to heuristics.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, 2)
	var failures map[string]string
	status := statusHealthy
	httpStatus := http.StatusOK

	switch err := h.checkDatabase(ctx); {
	case h.db == nil:
		checks["database"] = statusNotConfigured
	case err != nil:
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = statusUnhealthy
		status = statusUnhealthy
		httpStatus = http.StatusServiceUnavailable
	default:
		checks["database"] = statusHealthy
	}

	switch {
	case h.fastModel == nil:
		checks["fast_model"] = statusNotConfigured
	default:
		if err := h.fastModel.Ping(ctx); err != nil {
			err = services.ErrFastModelUnavailable.With(err)
			h.logger.Warn("fast model health check failed", zap.Error(err))
			checks["fast_model"] = statusUnhealthy
			failures = map[string]string{"fast_model": err.Error()}
			if status == statusHealthy {
				status = statusDegraded
			}
		} else {
			checks["fast_model"] = statusHealthy
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Errors:    failures,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return nil
	}

	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
