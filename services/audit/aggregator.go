package audit

import (
	"context"
	"sync"
	"time"
)

// Aggregator is an in-memory Sink keeping running totals of routed
// decisions. Nothing is persisted.
type Aggregator struct {
	mu           sync.RWMutex
	total        int64
	estimated    float64
	baseline     float64
	confidence   float64
	latency      time.Duration
	byModel      map[string]int64
	byEngine     map[string]int64
	lastDecision time.Time
}

// NewAggregator creates an empty Aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		byModel:  make(map[string]int64),
		byEngine: make(map[string]int64),
	}
}

// Record adds event to the totals
func (a *Aggregator) Record(_ context.Context, event *DecisionEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.estimated += event.EstimatedCost
	a.baseline += event.BaselineCost
	a.confidence += event.Confidence
	a.latency += event.Latency
	a.byModel[event.Model]++
	a.byEngine[event.Engine]++
	if event.Timestamp.After(a.lastDecision) {
		a.lastDecision = event.Timestamp
	}

	return nil
}

// DecisionStats summarises recorded decisions
type DecisionStats struct {
	TotalDecisions     int64            `json:"total_decisions"`
	TotalEstimatedCost float64          `json:"total_estimated_cost"`
	TotalBaselineCost  float64          `json:"total_baseline_cost"`
	Savings            float64          `json:"savings"`
	SavingsPercent     float64          `json:"savings_percent"`
	AvgConfidence      float64          `json:"avg_confidence"`
	AvgLatencyMs       float64          `json:"avg_latency_ms"`
	ByModel            map[string]int64 `json:"by_model"`
	ByEngine           map[string]int64 `json:"by_engine"`
	LastDecision       *time.Time       `json:"last_decision,omitempty"`
}

// Snapshot returns a copy of the current totals
func (a *Aggregator) Snapshot() DecisionStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := DecisionStats{
		TotalDecisions:     a.total,
		TotalEstimatedCost: a.estimated,
		TotalBaselineCost:  a.baseline,
		Savings:            a.baseline - a.estimated,
		ByModel:            make(map[string]int64, len(a.byModel)),
		ByEngine:           make(map[string]int64, len(a.byEngine)),
	}
	for k, v := range a.byModel {
		stats.ByModel[k] = v
	}
	for k, v := range a.byEngine {
		stats.ByEngine[k] = v
	}
	if a.baseline > 0 {
		stats.SavingsPercent = stats.Savings / a.baseline * 100
	}
	if a.total > 0 {
		stats.AvgConfidence = a.confidence / float64(a.total)
		stats.AvgLatencyMs = float64(a.latency.Microseconds()) / 1000 / float64(a.total)
		last := a.lastDecision
		stats.LastDecision = &last
	}

	return stats
}

// Reset clears all totals
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total = 0
	a.estimated = 0
	a.baseline = 0
	a.confidence = 0
	a.latency = 0
	a.byModel = make(map[string]int64)
	a.byEngine = make(map[string]int64)
	a.lastDecision = time.Time{}
}
