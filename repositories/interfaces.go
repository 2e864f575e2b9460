package repositories

import (
	"context"

	"github.com/upb/llm-router/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// It commits if fn succeeds and rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// ModelRepository persists the model catalog. It satisfies catalog.Store.
type ModelRepository interface {
	// List returns every entry in declaration order
	List(ctx context.Context) ([]models.CatalogEntry, error)

	// Seed inserts entries in a single transaction. Existing aliases are kept.
	Seed(ctx context.Context, entries []models.CatalogEntry) error

	// Upsert inserts or replaces a single entry
	Upsert(ctx context.Context, entry models.CatalogEntry) error

	// Delete removes an alias. Deleting a missing alias is not an error.
	Delete(ctx context.Context, alias string) error
}

// Repositories holds all repository instances
type Repositories struct {
	Models ModelRepository
}
