package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-router/models"
	"go.uber.org/zap"
)

var (
	// ErrNotStarted is returned when recording on a stopped service
	ErrNotStarted = errors.New("audit service not started")

	// ErrBufferFull is returned when the event buffer cannot accept more events
	ErrBufferFull = errors.New("audit event buffer full")
)

// Sink consumes decision events. Implementations must be safe for
// concurrent use by the worker pool.
type Sink interface {
	Record(ctx context.Context, event *DecisionEvent) error
}

// DecisionEvent is one routing decision as seen by the recorder
type DecisionEvent struct {
	ID            uuid.UUID       `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Engine        string          `json:"engine"`
	Model         string          `json:"model"`
	Provider      models.Provider `json:"provider"`
	Confidence    float64         `json:"confidence"`
	EstimatedCost float64         `json:"estimated_cost"`
	BaselineCost  float64         `json:"baseline_cost"`
	Latency       time.Duration   `json:"latency_ns"`
	Fallbacks     int             `json:"fallbacks"`
}

// NewDecisionEvent builds an event from a decision
func NewDecisionEvent(id uuid.UUID, d *models.RoutingDecision) *DecisionEvent {
	event := &DecisionEvent{
		ID:            id,
		Timestamp:     time.Now().UTC(),
		Engine:        d.Engine,
		Confidence:    d.Confidence,
		EstimatedCost: d.EstimatedCost,
		Latency:       d.Latency,
		Fallbacks:     len(d.Fallbacks),
	}
	if d.Model != nil {
		event.Model = d.Model.Name
		event.Provider = d.Model.Provider
	}
	return event
}

// AuditService records routing decisions asynchronously. Recording never
// blocks the request path; when the buffer is full the event is dropped.
type AuditService struct {
	sink        Sink
	baseline    *models.ModelDescriptor
	logger      *zap.Logger
	eventChan   chan *DecisionEvent
	workerCount int
	bufferSize  int
	dropped     uint64
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers

	// Baseline is the model savings are measured against
	Baseline *models.ModelDescriptor
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 2,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(sink Sink, logger *zap.Logger, config Config) *AuditService {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}

	return &AuditService{
		sink:        sink,
		baseline:    config.Baseline,
		logger:      logger,
		eventChan:   make(chan *DecisionEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}
	if s.eventChan == nil {
		return fmt.Errorf("audit service cannot be restarted")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(s.eventChan, i)
	}

	s.started = true
	s.logger.Info("started decision recorder",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service.
// Waits for all pending events to be processed.
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	pending := len(s.eventChan)
	close(s.eventChan)
	s.eventChan = nil
	s.mu.Unlock()

	s.logger.Info("stopping decision recorder", zap.Int("pending_events", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("decision recorder stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// RecordDecision queues an event (non-blocking). A zero BaselineCost is
// filled from the configured baseline model.
func (s *AuditService) RecordDecision(event *DecisionEvent) error {
	if event.BaselineCost == 0 && s.baseline != nil {
		event.BaselineCost = models.EstimateCost(s.baseline)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.dropped++
		s.logger.Warn("decision event buffer full, dropping event",
			zap.String("decision_id", event.ID.String()),
			zap.String("model", event.Model))
		return ErrBufferFull
	}
}

func (s *AuditService) worker(events <-chan *DecisionEvent, id int) {
	defer s.wg.Done()

	for event := range events {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to record decision",
				zap.Int("worker_id", id),
				zap.String("decision_id", event.ID.String()),
				zap.Error(err))
		}
	}
}

func (s *AuditService) processEvent(event *DecisionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.sink.Record(ctx, event); err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Dropped:       s.dropped,
		Started:       s.started,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int    `json:"buffer_size"`
	PendingEvents int    `json:"pending_events"`
	WorkerCount   int    `json:"worker_count"`
	Dropped       uint64 `json:"dropped"`
	Started       bool   `json:"started"`
}
