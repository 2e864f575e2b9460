package handlers

import (
	"net/http"

	"github.com/upb/llm-router/services/audit"
	"github.com/upb/llm-router/services/classification"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// DecisionStatsSource provides aggregated decision totals
type DecisionStatsSource interface {
	Snapshot() audit.DecisionStats
}

// RecorderStatsSource provides decision recorder health
type RecorderStatsSource interface {
	GetStats() audit.Stats
}

// CacheStatsSource provides classification cache statistics
type CacheStatsSource interface {
	Stats() classification.CacheStats
}

// StatsResponse is the body of GET /api/v1/stats
type StatsResponse struct {
	Decisions audit.DecisionStats        `json:"decisions"`
	Recorder  *audit.Stats               `json:"recorder,omitempty"`
	Cache     *classification.CacheStats `json:"cache,omitempty"`
}

// StatsHandler reports routing statistics
type StatsHandler struct {
	decisions DecisionStatsSource
	recorder  RecorderStatsSource
	cache     CacheStatsSource
	logger    *zap.Logger
}

// NewStatsHandler creates a new StatsHandler. recorder and cache may be nil.
func NewStatsHandler(decisions DecisionStatsSource, recorder RecorderStatsSource, cache CacheStatsSource, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		decisions: decisions,
		recorder:  recorder,
		cache:     cache,
		logger:    logger,
	}
}

// HandleStats handles GET /api/v1/stats
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{
		Decisions: h.decisions.Snapshot(),
	}
	if h.recorder != nil {
		stats := h.recorder.GetStats()
		response.Recorder = &stats
	}
	if h.cache != nil {
		stats := h.cache.Stats()
		response.Cache = &stats
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write stats response", zap.Error(err))
	}
}
