package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/upb/llm-router/models"
)

var (
	// ErrEmptyCatalog is returned when a catalog is built without entries
	ErrEmptyCatalog = errors.New("catalog has no models")

	// ErrDuplicateAlias is returned when an alias is declared twice
	ErrDuplicateAlias = errors.New("duplicate model alias")
)

// Entry binds an alias to a model descriptor
type Entry = models.CatalogEntry

// Catalog is the static table of known models. It is built once and
// never mutated afterwards, so lookups need no locking.
type Catalog struct {
	byAlias map[string]*models.ModelDescriptor
	byName  map[string]*models.ModelDescriptor
	aliases []string // declaration order
}

// New builds a catalog from entries. Aliases must be unique; wire names
// may be shared between aliases.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		byAlias: make(map[string]*models.ModelDescriptor, len(entries)),
		byName:  make(map[string]*models.ModelDescriptor, len(entries)),
		aliases: make([]string, 0, len(entries)),
	}

	for _, e := range entries {
		if e.Alias == "" || e.Model == nil {
			return nil, fmt.Errorf("invalid catalog entry %q", e.Alias)
		}
		if _, exists := c.byAlias[e.Alias]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAlias, e.Alias)
		}
		if !e.Model.Provider.Valid() {
			return nil, fmt.Errorf("model %s: unknown provider %q", e.Alias, e.Model.Provider)
		}
		if e.Model.CostPer1K < 0 {
			return nil, fmt.Errorf("model %s: negative cost", e.Alias)
		}
		c.byAlias[e.Alias] = e.Model
		if _, exists := c.byName[e.Model.Name]; !exists {
			c.byName[e.Model.Name] = e.Model
		}
		c.aliases = append(c.aliases, e.Alias)
	}

	return c, nil
}

// MustNew is like New but panics on error. Intended for static tables.
func MustNew(entries []Entry) *Catalog {
	c, err := New(entries)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup resolves an alias or a wire model name
func (c *Catalog) Lookup(aliasOrName string) (*models.ModelDescriptor, bool) {
	if m, ok := c.byAlias[aliasOrName]; ok {
		return m, true
	}
	m, ok := c.byName[aliasOrName]
	return m, ok
}

// ByProvider returns every model served by p, in declaration order
func (c *Catalog) ByProvider(p models.Provider) []*models.ModelDescriptor {
	return c.filter(func(m *models.ModelDescriptor) bool { return m.Provider == p })
}

// ByCapability returns every model tagged with tag, in declaration order
func (c *Catalog) ByCapability(tag string) []*models.ModelDescriptor {
	return c.filter(func(m *models.ModelDescriptor) bool { return m.HasCapability(tag) })
}

// Cheapest returns the lowest-cost model tagged with tag. An empty tag
// matches every model. With preferFree, a free model wins over any paid
// one even when it is not the first declared; otherwise ties keep
// declaration order.
func (c *Catalog) Cheapest(tag string, preferFree bool) (*models.ModelDescriptor, bool) {
	var best *models.ModelDescriptor
	for _, m := range c.All() {
		if tag != "" && !m.HasCapability(tag) {
			continue
		}
		if preferFree && m.IsFree() {
			return m, true
		}
		if best == nil || m.CostPer1K < best.CostPer1K {
			best = m
		}
	}
	return best, best != nil
}

// All returns every distinct model, in declaration order
func (c *Catalog) All() []*models.ModelDescriptor {
	return c.filter(func(*models.ModelDescriptor) bool { return true })
}

// Aliases returns every alias, sorted
func (c *Catalog) Aliases() []string {
	out := make([]string, len(c.aliases))
	copy(out, c.aliases)
	sort.Strings(out)
	return out
}

// Entries returns every alias/model pair in declaration order
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.aliases))
	for _, alias := range c.aliases {
		out = append(out, Entry{Alias: alias, Model: c.byAlias[alias]})
	}
	return out
}

// Len returns the number of aliases
func (c *Catalog) Len() int {
	return len(c.aliases)
}

func (c *Catalog) filter(keep func(*models.ModelDescriptor) bool) []*models.ModelDescriptor {
	out := make([]*models.ModelDescriptor, 0)
	seen := make(map[string]bool, len(c.aliases))
	for _, alias := range c.aliases {
		m := c.byAlias[alias]
		if seen[m.Name] || !keep(m) {
			continue
		}
		seen[m.Name] = true
		out = append(out, m)
	}
	return out
}
