package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/audit"
	"github.com/upb/llm-router/services/classification"
	"go.uber.org/zap"
)

type staticRecorderStats audit.Stats

func (s staticRecorderStats) GetStats() audit.Stats { return audit.Stats(s) }

func TestHandleStats(t *testing.T) {
	agg := audit.NewAggregator()
	require.NoError(t, agg.Record(context.Background(), &audit.DecisionEvent{
		Timestamp:     time.Now().UTC(),
		Engine:        "heuristic",
		Model:         "llama3.2:3b",
		Provider:      models.ProviderOllama,
		Confidence:    0.99,
		EstimatedCost: 0,
		BaselineCost:  0.09,
	}))

	cache := classification.NewCache(10, time.Minute)
	cache.Set("k", models.ClassificationResult{Tier: models.TierSimple})
	_, _ = cache.Get("k")
	_, _ = cache.Get("missing")

	t.Run("all sources", func(t *testing.T) {
		h := NewStatsHandler(agg, staticRecorderStats{BufferSize: 100, WorkerCount: 2, Started: true}, cache, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data StatsResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

		assert.Equal(t, int64(1), response.Data.Decisions.TotalDecisions)
		assert.Equal(t, int64(1), response.Data.Decisions.ByEngine["heuristic"])
		assert.InDelta(t, 0.09, response.Data.Decisions.Savings, 1e-9)
		assert.InDelta(t, 100, response.Data.Decisions.SavingsPercent, 1e-9)

		require.NotNil(t, response.Data.Recorder)
		assert.True(t, response.Data.Recorder.Started)

		require.NotNil(t, response.Data.Cache)
		assert.Equal(t, 1, response.Data.Cache.Size)
		assert.Equal(t, uint64(1), response.Data.Cache.Hits)
		assert.Equal(t, uint64(1), response.Data.Cache.Misses)
	})

	t.Run("cache disabled", func(t *testing.T) {
		h := NewStatsHandler(agg, nil, nil, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

		var response map[string]map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.NotContains(t, response["data"], "cache")
		assert.NotContains(t, response["data"], "recorder")
	})
}
