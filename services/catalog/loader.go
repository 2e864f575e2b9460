package catalog

import (
	"context"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/upb/llm-router/models"
	"go.uber.org/zap"
)

// Source selects where the catalog is loaded from
type Source string

const (
	SourceBuiltin  Source = "builtin"
	SourceFile     Source = "file"
	SourcePostgres Source = "postgres"
)

// Store persists catalog entries
type Store interface {
	List(ctx context.Context) ([]models.CatalogEntry, error)
	Seed(ctx context.Context, entries []models.CatalogEntry) error
}

// fileFormat mirrors a catalog file:
//
//	[models.claude-opus]
//	provider = "anthropic"
//	name = "claude-opus-4-20250514"
//	cost_per_1k = 0.045
//	capabilities = ["reasoning", "coding"]
type fileFormat struct {
	Models map[string]models.ModelDescriptor `toml:"models"`
}

// LoadFile reads a TOML catalog from path
func LoadFile(path string) (*Catalog, error) {
	var f fileFormat
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode catalog file %s: %w", path, err)
	}
	return fromDecoded(f, md)
}

// LoadReader reads a TOML catalog from r
func LoadReader(r io.Reader) (*Catalog, error) {
	var f fileFormat
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return fromDecoded(f, md)
}

// fromDecoded rebuilds declaration order from the TOML metadata; the
// decoded map alone would lose it.
func fromDecoded(f fileFormat, md toml.MetaData) (*Catalog, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown catalog keys: %v", undecoded)
	}

	entries := make([]Entry, 0, len(f.Models))
	for _, key := range md.Keys() {
		if len(key) != 2 || key[0] != "models" {
			continue
		}
		alias := key[1]
		m, ok := f.Models[alias]
		if !ok {
			continue
		}
		desc := m
		entries = append(entries, Entry{Alias: alias, Model: &desc})
	}

	return New(entries)
}

// LoadFromStore reads the catalog from store. An empty store is seeded
// with the built-in entries first.
func LoadFromStore(ctx context.Context, store Store, logger *zap.Logger) (*Catalog, error) {
	entries, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}

	if len(entries) == 0 {
		entries = DefaultEntries()
		if err := store.Seed(ctx, entries); err != nil {
			return nil, fmt.Errorf("failed to seed catalog: %w", err)
		}
		logger.Info("seeded empty catalog store with built-in models",
			zap.Int("models", len(entries)))
	}

	return New(entries)
}

// Load builds the catalog for source
func Load(ctx context.Context, source Source, path string, store Store, logger *zap.Logger) (*Catalog, error) {
	var (
		c   *Catalog
		err error
	)

	switch source {
	case SourceBuiltin, "":
		c = Default()
	case SourceFile:
		c, err = LoadFile(path)
	case SourcePostgres:
		if store == nil {
			return nil, fmt.Errorf("catalog source %q requires a store", source)
		}
		c, err = LoadFromStore(ctx, store, logger)
	default:
		return nil, fmt.Errorf("unknown catalog source %q", source)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("model catalog loaded",
		zap.String("source", string(source)),
		zap.Int("models", c.Len()))
	return c, nil
}
