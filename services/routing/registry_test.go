package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/services/catalog"
	"github.com/upb/llm-router/services/classification"
	"go.uber.org/zap"
)

var (
	sonnet = &models.ModelDescriptor{Provider: models.ProviderAnthropic, Name: "claude-sonnet-4-20250514", CostPer1K: 0.009}
	mini   = &models.ModelDescriptor{Provider: models.ProviderOpenAI, Name: "gpt-4o-mini", CostPer1K: 0.00036}
)

// stubClassifier counts invocations and returns a fixed outcome
type stubClassifier struct {
	name     string
	model    *models.ModelDescriptor
	err      error
	hint     float64
	calls    atomic.Int32
	hintHits atomic.Int32
}

func (s *stubClassifier) Name() string { return s.name }

func (s *stubClassifier) Decide(_ context.Context, _ *models.RoutingContext) (*models.RoutingDecision, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if s.model == nil {
		return nil, nil
	}
	return models.NewRoutingDecision(s.model, 0.8, s.name, nil), nil
}

// hintedClassifier adds a confidence hint to stubClassifier
type hintedClassifier struct {
	*stubClassifier
}

func (h hintedClassifier) Confidence(_ *models.RoutingContext) float64 {
	h.hintHits.Add(1)
	return h.hint
}

func newRegistry(fallback Classifier) *Registry {
	return NewRegistry(fallback, zap.NewNop())
}

func heuristic() *classification.HeuristicClassifier {
	return classification.NewHeuristicClassifier(catalog.Default(), classification.DefaultHeuristicRoles())
}

func prompt(text string) *models.RoutingContext {
	return &models.RoutingContext{Prompt: text}
}

func TestRegistry_Register(t *testing.T) {
	r := newRegistry(nil)

	t.Run("rejects empty name", func(t *testing.T) {
		err := r.Register("", &stubClassifier{name: "x"}, 1)
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("rejects nil classifier", func(t *testing.T) {
		err := r.Register("x", nil, 1)
		assert.ErrorIs(t, err, services.ErrInvalidEngine)
	})

	t.Run("rejects nil factory", func(t *testing.T) {
		err := r.RegisterFactory("x", nil, 1)
		assert.ErrorIs(t, err, services.ErrInvalidEngine)
	})

	t.Run("replaces existing registration", func(t *testing.T) {
		first := &stubClassifier{name: "a", model: sonnet}
		second := &stubClassifier{name: "a", model: mini}
		require.NoError(t, r.Register("a", first, 10))
		require.NoError(t, r.Register("a", second, 20))

		got, ok := r.Get("a")
		require.True(t, ok)
		assert.Same(t, second, got)

		list := r.List()
		require.Len(t, list, 1)
		assert.Equal(t, 20, list[0].Priority)
	})
}

func TestRegistry_Get(t *testing.T) {
	r := newRegistry(nil)

	_, ok := r.Get("missing")
	assert.False(t, ok)

	c := &stubClassifier{name: "a", model: sonnet}
	require.NoError(t, r.Register("a", c, 1))

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestRegistry_FactoryIsLazySingleton(t *testing.T) {
	r := newRegistry(nil)

	var built atomic.Int32
	require.NoError(t, r.RegisterFactory("lazy", func() (Classifier, error) {
		built.Add(1)
		return &stubClassifier{name: "lazy", model: sonnet}, nil
	}, 1))

	assert.Zero(t, built.Load(), "factory must not run at registration")
	assert.False(t, r.List()[0].Instantiated)

	var wg sync.WaitGroup
	instances := make([]Classifier, 20)
	for i := range instances {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			instances[i], _ = r.Get("lazy")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), built.Load())
	for _, c := range instances {
		assert.Same(t, instances[0], c)
	}
	assert.True(t, r.List()[0].Instantiated)
}

func TestRegistry_FactoryFailureIsRetried(t *testing.T) {
	r := newRegistry(nil)

	var attempts atomic.Int32
	require.NoError(t, r.RegisterFactory("flaky", func() (Classifier, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("model server not ready")
		}
		return &stubClassifier{name: "flaky", model: mini}, nil
	}, 1))

	_, ok := r.Get("flaky")
	assert.False(t, ok)

	_, ok = r.Get("flaky")
	assert.True(t, ok)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestRegistry_Unregister(t *testing.T) {
	r := newRegistry(nil)
	require.NoError(t, r.Register("a", &stubClassifier{name: "a", model: sonnet}, 1))

	assert.True(t, r.Unregister("a"))
	assert.False(t, r.Unregister("a"))

	_, ok := r.Get("a")
	assert.False(t, ok)
	assert.Empty(t, r.List())

	_, err := r.Route(context.Background(), prompt("hello"), "a")
	assert.ErrorIs(t, err, services.ErrEngineNotFound)
}

func TestRegistry_List(t *testing.T) {
	r := newRegistry(nil)
	require.NoError(t, r.Register("low", &stubClassifier{name: "low"}, 10))
	require.NoError(t, r.Register("high", &stubClassifier{name: "high"}, 100))
	require.NoError(t, r.Register("tie-first", &stubClassifier{name: "tie-first"}, 50))
	require.NoError(t, r.Register("tie-second", &stubClassifier{name: "tie-second"}, 50))
	require.NoError(t, r.SetEnabled("low", false))

	list := r.List()

	names := make([]string, len(list))
	for i, e := range list {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"high", "tie-first", "tie-second", "low"}, names)
	assert.False(t, list[3].Enabled)
}

func TestRegistry_Route(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		classifier *stubClassifier
		disable    bool
		engine     string
		wantErr    error
	}{
		{name: "returns decision", classifier: &stubClassifier{name: "a", model: sonnet}, engine: "a"},
		{name: "unknown engine", classifier: &stubClassifier{name: "a", model: sonnet}, engine: "b", wantErr: services.ErrEngineNotFound},
		{name: "disabled engine", classifier: &stubClassifier{name: "a", model: sonnet}, disable: true, engine: "a", wantErr: services.ErrEngineDisabled},
		{name: "nil decision", classifier: &stubClassifier{name: "a"}, engine: "a", wantErr: services.ErrNoDecision},
		{name: "classifier error", classifier: &stubClassifier{name: "a", err: errors.New("boom")}, engine: "a", wantErr: services.ErrNoDecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRegistry(heuristic())
			require.NoError(t, r.Register("a", tt.classifier, 1))
			if tt.disable {
				require.NoError(t, r.SetEnabled("a", false))
			}

			d, err := r.Route(ctx, prompt("hello world"), tt.engine)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, d)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, sonnet, d.Model)
			assert.Equal(t, "a", d.Engine)
		})
	}
}

func TestRegistry_SetEnabledUnknown(t *testing.T) {
	err := newRegistry(nil).SetEnabled("missing", true)
	assert.True(t, services.IsNotFoundError(err))
}

func TestRegistry_AutoRoute_PriorityOrder(t *testing.T) {
	high := &stubClassifier{name: "high", model: sonnet}
	low := &stubClassifier{name: "low", model: mini}

	r := newRegistry(nil)
	require.NoError(t, r.Register("low", low, 50))
	require.NoError(t, r.Register("high", high, 100))

	for i := 0; i < 5; i++ {
		d, err := r.AutoRoute(context.Background(), prompt("design a distributed cache"))
		require.NoError(t, err)
		assert.Equal(t, sonnet, d.Model)
		assert.Equal(t, "high", d.Engine)
	}

	assert.Equal(t, int32(5), high.calls.Load())
	assert.Zero(t, low.calls.Load(), "lower priority classifier must not be consulted")
}

func TestRegistry_AutoRoute_ConfidenceGating(t *testing.T) {
	gated := hintedClassifier{&stubClassifier{name: "gated", model: sonnet, hint: 0.1}}
	next := &stubClassifier{name: "next", model: mini}

	r := newRegistry(nil)
	require.NoError(t, r.Register("gated", gated, 100))
	require.NoError(t, r.Register("next", next, 50))

	d, err := r.AutoRoute(context.Background(), prompt("hi"))
	require.NoError(t, err)

	assert.Equal(t, "next", d.Engine)
	assert.Equal(t, int32(1), gated.hintHits.Load())
	assert.Zero(t, gated.calls.Load(), "gated classifier must not decide")
}

func TestRegistry_AutoRoute_HintAtThresholdIsConsulted(t *testing.T) {
	edge := hintedClassifier{&stubClassifier{name: "edge", model: sonnet, hint: MinHintConfidence}}

	r := newRegistry(nil)
	require.NoError(t, r.Register("edge", edge, 1))

	d, err := r.AutoRoute(context.Background(), prompt("hi"))
	require.NoError(t, err)
	assert.Equal(t, "edge", d.Engine)
}

func TestRegistry_AutoRoute_SkipsDeclinedFailedAndDisabled(t *testing.T) {
	declines := &stubClassifier{name: "declines"}
	fails := &stubClassifier{name: "fails", err: errors.New("timeout")}
	disabled := &stubClassifier{name: "disabled", model: sonnet}
	winner := &stubClassifier{name: "winner", model: mini}

	r := newRegistry(nil)
	require.NoError(t, r.Register("declines", declines, 40))
	require.NoError(t, r.Register("fails", fails, 30))
	require.NoError(t, r.Register("disabled", disabled, 20))
	require.NoError(t, r.Register("winner", winner, 10))
	require.NoError(t, r.SetEnabled("disabled", false))

	d, err := r.AutoRoute(context.Background(), prompt("summarise this"))
	require.NoError(t, err)

	assert.Equal(t, "winner", d.Engine)
	assert.Equal(t, int32(1), declines.calls.Load())
	assert.Equal(t, int32(1), fails.calls.Load())
	assert.Zero(t, disabled.calls.Load())
}

func TestRegistry_AutoRoute_FallsBackToHeuristic(t *testing.T) {
	r := newRegistry(heuristic())
	require.NoError(t, r.Register("declines", &stubClassifier{name: "declines"}, 10))

	d, err := r.AutoRoute(context.Background(), prompt("HEARTBEAT_OK"))
	require.NoError(t, err)

	assert.Equal(t, classification.HeuristicName, d.Engine)
	assert.Equal(t, "llama3.2:3b", d.Model.Name)
}

func TestRegistry_AutoRoute_ArbitrationFailure(t *testing.T) {
	r := newRegistry(&stubClassifier{name: "broken"})

	_, err := r.AutoRoute(context.Background(), prompt("anything"))
	assert.ErrorIs(t, err, services.ErrArbitrationFailed)
	assert.True(t, services.IsInternalError(err))
}

func TestRegistry_AutoRoute_EmptyRegistryUsesFallback(t *testing.T) {
	d, err := newRegistry(heuristic()).AutoRoute(context.Background(), prompt(""))
	require.NoError(t, err)
	assert.NotNil(t, d.Model)
}

func TestRegistry_ConcurrentMutation(t *testing.T) {
	r := newRegistry(heuristic())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("engine-%d", i)
			_ = r.Register(name, &stubClassifier{name: name, model: mini}, i)
			r.Unregister(name)
		}(i)
		go func() {
			defer wg.Done()
			d, err := r.AutoRoute(ctx, prompt("what is the capital of France?"))
			assert.NoError(t, err)
			assert.NotNil(t, d)
		}()
	}
	wg.Wait()
}
