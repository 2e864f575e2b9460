package routing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services"
	"go.uber.org/zap"
)

// MinHintConfidence is the confidence hint below which arbitration skips
// a classifier without calling Decide
const MinHintConfidence = 0.3

// Classifier turns a routing context into a decision. A nil decision with
// a nil error means the classifier declines the request.
type Classifier interface {
	Name() string
	Decide(ctx context.Context, rc *models.RoutingContext) (*models.RoutingDecision, error)
}

// ConfidenceHinter is implemented by classifiers that can cheaply predict
// whether they are suited to a request
type ConfidenceHinter interface {
	Confidence(rc *models.RoutingContext) float64
}

// Factory lazily constructs a classifier
type Factory func() (Classifier, error)

var errFactoryReturnedNil = errors.New("factory returned a nil classifier")

// registration holds one named engine. Construction through the factory
// is serialised by mu; the priority and enabled fields are guarded by the
// registry lock.
type registration struct {
	name     string
	priority int
	enabled  bool
	seq      uint64

	mu       sync.Mutex
	instance Classifier
	factory  Factory
}

// resolve returns the instance, constructing it on first use. A failed
// construction is not cached and is retried on the next lookup.
func (r *registration) resolve() (Classifier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.instance != nil {
		return r.instance, nil
	}
	if r.factory == nil {
		return nil, errFactoryReturnedNil
	}

	c, err := r.factory()
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errFactoryReturnedNil
	}
	r.instance = c
	return c, nil
}

func (r *registration) instantiated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instance != nil
}

// EngineInfo describes a registered engine
type EngineInfo struct {
	Name         string `json:"name"`
	Priority     int    `json:"priority"`
	Enabled      bool   `json:"enabled"`
	Instantiated bool   `json:"instantiated"`
}

// Registry holds named classifiers and arbitrates between them
type Registry struct {
	mu       sync.RWMutex
	engines  map[string]*registration
	seq      uint64
	fallback Classifier
	logger   *zap.Logger
}

// NewRegistry creates a registry. fallback is consulted when no registered
// engine produces a decision, whether or not it is also registered.
func NewRegistry(fallback Classifier, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		engines:  make(map[string]*registration),
		fallback: fallback,
		logger:   logger,
	}
}

// Register inserts or replaces a constructed classifier
func (r *Registry) Register(name string, c Classifier, priority int) error {
	if name == "" || c == nil {
		return services.ErrInvalidEngine.With(fmt.Errorf("name %q", name))
	}
	r.put(&registration{name: name, priority: priority, enabled: true, instance: c})
	return nil
}

// RegisterFactory inserts or replaces a lazily constructed classifier. The
// factory runs at most once successfully, on first lookup.
func (r *Registry) RegisterFactory(name string, factory Factory, priority int) error {
	if name == "" || factory == nil {
		return services.ErrInvalidEngine.With(fmt.Errorf("name %q", name))
	}
	r.put(&registration{name: name, priority: priority, enabled: true, factory: factory})
	return nil
}

// put stores reg. A replacement keeps the original registration order.
func (r *Registry) put(reg *registration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.engines[reg.name]; ok {
		reg.seq = existing.seq
	} else {
		r.seq++
		reg.seq = r.seq
	}
	r.engines[reg.name] = reg

	r.logger.Debug("registered routing engine",
		zap.String("engine", reg.name),
		zap.Int("priority", reg.priority),
		zap.Bool("lazy", reg.factory != nil))
}

// Unregister removes an engine. It reports whether the name was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.engines[name]; !ok {
		return false
	}
	delete(r.engines, name)
	return true
}

// Get resolves a classifier by name, constructing it if needed
func (r *Registry) Get(name string) (Classifier, bool) {
	r.mu.RLock()
	reg, ok := r.engines[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	c, err := reg.resolve()
	if err != nil {
		r.logger.Warn("failed to construct routing engine", zap.String("engine", name), zap.Error(err))
		return nil, false
	}
	return c, true
}

// SetEnabled enables or disables an engine
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.engines[name]
	if !ok {
		return services.ErrEngineNotFound.With(nil).WithDetail("engine", name)
	}
	reg.enabled = enabled
	return nil
}

// List describes every engine in arbitration order
func (r *Registry) List() []EngineInfo {
	snapshot := r.snapshot(false)
	out := make([]EngineInfo, len(snapshot))
	for i, s := range snapshot {
		out[i] = EngineInfo{
			Name:         s.reg.name,
			Priority:     s.priority,
			Enabled:      s.enabled,
			Instantiated: s.reg.instantiated(),
		}
	}
	return out
}

// Route invokes exactly the named engine
func (r *Registry) Route(ctx context.Context, rc *models.RoutingContext, name string) (*models.RoutingDecision, error) {
	r.mu.RLock()
	reg, ok := r.engines[name]
	enabled := ok && reg.enabled
	r.mu.RUnlock()

	if !ok {
		return nil, services.ErrEngineNotFound.With(nil).WithDetail("engine", name)
	}
	if !enabled {
		return nil, services.ErrEngineDisabled.With(nil).WithDetail("engine", name)
	}

	c, err := reg.resolve()
	if err != nil {
		return nil, services.ErrNoDecision.With(err).WithDetail("engine", name)
	}

	d, err := c.Decide(ctx, rc)
	if err != nil {
		return nil, services.ErrNoDecision.With(err).WithDetail("engine", name)
	}
	if d == nil || d.Model == nil {
		return nil, services.ErrNoDecision.With(nil).WithDetail("engine", name)
	}

	d.Engine = name
	return d, nil
}

// AutoRoute consults enabled engines in descending priority and returns
// the first decision. Engines whose confidence hint is below
// MinHintConfidence are skipped without calling Decide. When no engine
// decides, the fallback classifier is used.
func (r *Registry) AutoRoute(ctx context.Context, rc *models.RoutingContext) (*models.RoutingDecision, error) {
	for _, s := range r.snapshot(true) {
		c, err := s.reg.resolve()
		if err != nil {
			r.logger.Warn("skipping routing engine that failed to construct",
				zap.String("engine", s.reg.name), zap.Error(err))
			continue
		}

		if h, ok := c.(ConfidenceHinter); ok {
			if hint := h.Confidence(rc); hint < MinHintConfidence {
				r.logger.Debug("routing engine gated by confidence hint",
					zap.String("engine", s.reg.name), zap.Float64("hint", hint))
				continue
			}
		}

		d, err := c.Decide(ctx, rc)
		if err != nil {
			r.logger.Warn("routing engine failed", zap.String("engine", s.reg.name), zap.Error(err))
			continue
		}
		if d != nil && d.Model != nil {
			d.Engine = s.reg.name
			return d, nil
		}
	}

	if r.fallback != nil {
		d, err := r.fallback.Decide(ctx, rc)
		if err == nil && d != nil && d.Model != nil {
			if d.Engine == "" {
				d.Engine = r.fallback.Name()
			}
			return d, nil
		}
		r.logger.Error("fallback routing engine produced no decision", zap.Error(err))
	}

	return nil, services.ErrArbitrationFailed
}

type snapshotEntry struct {
	reg      *registration
	priority int
	enabled  bool
}

// snapshot copies the registrations sorted by descending priority, then
// registration order
func (r *Registry) snapshot(enabledOnly bool) []snapshotEntry {
	r.mu.RLock()
	out := make([]snapshotEntry, 0, len(r.engines))
	for _, reg := range r.engines {
		if enabledOnly && !reg.enabled {
			continue
		}
		out = append(out, snapshotEntry{reg: reg, priority: reg.priority, enabled: reg.enabled})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority > out[j].priority
		}
		return out[i].reg.seq < out[j].reg.seq
	})
	return out
}
