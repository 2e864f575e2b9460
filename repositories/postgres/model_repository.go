package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"go.uber.org/zap"
)

// ModelRepository implements repositories.ModelRepository on the
// model_catalog table
type ModelRepository struct {
	db     *DB
	tx     repositories.TransactionManager
	logger *zap.Logger
}

// NewModelRepository creates a new model repository
func NewModelRepository(db *DB, tx repositories.TransactionManager, logger *zap.Logger) *ModelRepository {
	return &ModelRepository{
		db:     db,
		tx:     tx,
		logger: logger,
	}
}

// List returns every catalog entry in declaration order
func (r *ModelRepository) List(ctx context.Context) ([]models.CatalogEntry, error) {
	query := `
		SELECT alias, provider, name, cost_per_1k, max_output_tokens, context_window, capabilities
		FROM model_catalog
		ORDER BY position ASC
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var entries []models.CatalogEntry
	for rows.Next() {
		var (
			alias string
			m     models.ModelDescriptor
			caps  []string
		)
		if err := rows.Scan(
			&alias,
			&m.Provider,
			&m.Name,
			&m.CostPer1K,
			&m.MaxOutputTokens,
			&m.ContextWindow,
			pq.Array(&caps),
		); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		m.Capabilities = caps
		entries = append(entries, models.CatalogEntry{Alias: alias, Model: &m})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}

	return entries, nil
}

// Seed inserts entries in declaration order inside one transaction.
// Aliases already present are left untouched.
func (r *ModelRepository) Seed(ctx context.Context, entries []models.CatalogEntry) error {
	query := `
		INSERT INTO model_catalog (alias, provider, name, cost_per_1k, max_output_tokens, context_window, capabilities)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (alias) DO NOTHING
	`

	return r.tx.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		executor := GetExecutor(ctx, r.db)
		for _, e := range entries {
			if e.Model == nil {
				return fmt.Errorf("catalog entry %q has no model", e.Alias)
			}
			if _, err := executor.ExecContext(ctx, query, modelArgs(e)...); err != nil {
				return fmt.Errorf("failed to seed model %s: %w", e.Alias, err)
			}
		}
		r.logger.Debug("catalog seeded", zap.Int("models", len(entries)))
		return nil
	})
}

// Upsert inserts or replaces a single entry
func (r *ModelRepository) Upsert(ctx context.Context, entry models.CatalogEntry) error {
	if entry.Model == nil {
		return fmt.Errorf("catalog entry %q has no model", entry.Alias)
	}

	query := `
		INSERT INTO model_catalog (alias, provider, name, cost_per_1k, max_output_tokens, context_window, capabilities)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (alias) DO UPDATE SET
			provider = EXCLUDED.provider,
			name = EXCLUDED.name,
			cost_per_1k = EXCLUDED.cost_per_1k,
			max_output_tokens = EXCLUDED.max_output_tokens,
			context_window = EXCLUDED.context_window,
			capabilities = EXCLUDED.capabilities,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, modelArgs(entry)...); err != nil {
		return fmt.Errorf("failed to upsert model %s: %w", entry.Alias, err)
	}

	r.logger.Debug("model upserted", zap.String("alias", entry.Alias))
	return nil
}

// Delete removes an alias
func (r *ModelRepository) Delete(ctx context.Context, alias string) error {
	query := `DELETE FROM model_catalog WHERE alias = $1`

	if _, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, alias); err != nil {
		return fmt.Errorf("failed to delete model %s: %w", alias, err)
	}
	return nil
}

func modelArgs(e models.CatalogEntry) []interface{} {
	caps := e.Model.Capabilities
	if caps == nil {
		caps = []string{}
	}
	return []interface{}{
		e.Alias,
		string(e.Model.Provider),
		e.Model.Name,
		e.Model.CostPer1K,
		e.Model.MaxOutputTokens,
		e.Model.ContextWindow,
		pq.Array(caps),
	}
}
