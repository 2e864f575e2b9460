package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/models"
	"go.uber.org/zap"
)

func TestCatalog_Lookup(t *testing.T) {
	c := Default()

	t.Run("by alias", func(t *testing.T) {
		m, ok := c.Lookup(AliasClaudeOpus)
		require.True(t, ok)
		assert.Equal(t, models.ProviderAnthropic, m.Provider)
	})

	t.Run("by wire name", func(t *testing.T) {
		m, ok := c.Lookup("gpt-4o-mini")
		require.True(t, ok)
		assert.Equal(t, models.ProviderOpenAI, m.Provider)
	})

	t.Run("miss", func(t *testing.T) {
		m, ok := c.Lookup("no-such-model")
		assert.False(t, ok)
		assert.Nil(t, m)
	})
}

func TestCatalog_ByProviderAndCapability(t *testing.T) {
	c := Default()

	local := c.ByProvider(models.ProviderOllama)
	assert.Len(t, local, 3)
	for _, m := range local {
		assert.True(t, m.IsFree())
	}

	reasoning := c.ByCapability(models.CapabilityReasoning)
	names := make([]string, 0, len(reasoning))
	for _, m := range reasoning {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"claude-opus-4-20250514", "o1"}, names)

	assert.Empty(t, c.ByCapability("teleportation"))
}

func TestCatalog_Cheapest(t *testing.T) {
	c := Default()

	t.Run("prefer free", func(t *testing.T) {
		m, ok := c.Cheapest(models.CapabilitySimple, true)
		require.True(t, ok)
		assert.Equal(t, "phi3:mini", m.Name)
	})

	t.Run("paid only when not preferring free", func(t *testing.T) {
		m, ok := c.Cheapest(models.CapabilityReasoning, false)
		require.True(t, ok)
		assert.Equal(t, "o1", m.Name)
	})

	t.Run("empty tag matches all", func(t *testing.T) {
		m, ok := c.Cheapest("", false)
		require.True(t, ok)
		assert.Equal(t, 0.0, m.CostPer1K)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, ok := c.Cheapest("teleportation", true)
		assert.False(t, ok)
	})
}

func TestNew_Validation(t *testing.T) {
	model := &models.ModelDescriptor{Provider: models.ProviderOpenAI, Name: "gpt-4o"}

	tests := []struct {
		name    string
		entries []Entry
		wantErr error
	}{
		{name: "empty", entries: nil, wantErr: ErrEmptyCatalog},
		{
			name:    "duplicate alias",
			entries: []Entry{{Alias: "a", Model: model}, {Alias: "a", Model: model}},
			wantErr: ErrDuplicateAlias,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New([]Entry{{Alias: "x", Model: &models.ModelDescriptor{Provider: "acme", Name: "x"}}})
		assert.Error(t, err)
	})

	t.Run("negative cost", func(t *testing.T) {
		_, err := New([]Entry{{Alias: "x", Model: &models.ModelDescriptor{Provider: models.ProviderOpenAI, Name: "x", CostPer1K: -1}}})
		assert.Error(t, err)
	})
}

func TestLoadReader(t *testing.T) {
	data := `
[models.fast]
provider = "openai"
name = "gpt-4o-mini"
cost_per_1k = 0.000375
max_output_tokens = 16384
context_window = 128000
capabilities = ["fast", "cheap"]

[models.local]
provider = "ollama"
name = "llama3.2:3b"
cost_per_1k = 0.0
capabilities = ["local", "simple"]
`
	c, err := LoadReader(strings.NewReader(data))
	require.NoError(t, err)

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "fast", entries[0].Alias)
	assert.Equal(t, "local", entries[1].Alias)

	m, ok := c.Lookup("local")
	require.True(t, ok)
	assert.True(t, m.HasCapability("simple"))

	t.Run("unknown keys rejected", func(t *testing.T) {
		_, err := LoadReader(strings.NewReader(`
[models.x]
provider = "openai"
name = "x"
colour = "blue"
`))
		assert.Error(t, err)
	})
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) List(ctx context.Context) ([]models.CatalogEntry, error) {
	args := m.Called(ctx)
	if entries := args.Get(0); entries != nil {
		return entries.([]models.CatalogEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Seed(ctx context.Context, entries []models.CatalogEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func TestLoadFromStore(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("seeds an empty store", func(t *testing.T) {
		store := &mockStore{}
		store.On("List", ctx).Return([]models.CatalogEntry{}, nil)
		store.On("Seed", ctx, mock.Anything).Return(nil)

		c, err := LoadFromStore(ctx, store, logger)
		require.NoError(t, err)
		assert.Equal(t, len(DefaultEntries()), c.Len())
		store.AssertExpectations(t)
	})

	t.Run("uses stored entries", func(t *testing.T) {
		store := &mockStore{}
		store.On("List", ctx).Return([]models.CatalogEntry{
			{Alias: "only", Model: &models.ModelDescriptor{Provider: models.ProviderOllama, Name: "llama3.2:3b"}},
		}, nil)

		c, err := LoadFromStore(ctx, store, logger)
		require.NoError(t, err)
		assert.Equal(t, 1, c.Len())
		store.AssertNotCalled(t, "Seed", mock.Anything, mock.Anything)
	})

	t.Run("list failure", func(t *testing.T) {
		store := &mockStore{}
		store.On("List", ctx).Return(nil, errors.New("connection refused"))

		_, err := LoadFromStore(ctx, store, logger)
		assert.Error(t, err)
	})
}

func TestLoad_Sources(t *testing.T) {
	logger := zap.NewNop()

	c, err := Load(context.Background(), SourceBuiltin, "", nil, logger)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultEntries()), c.Len())

	_, err = Load(context.Background(), SourcePostgres, "", nil, logger)
	assert.Error(t, err)

	_, err = Load(context.Background(), Source("s3"), "", nil, logger)
	assert.Error(t, err)
}
