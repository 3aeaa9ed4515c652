package storage

import (
	"context"
	"errors"

	"github.com/aevon-lab/stats-indexer/internal/core/stats"
)

// ErrNotFound is returned when no counter row exists for an item id.
var ErrNotFound = errors.New("item counter not found")

// Counter is the materialized usage of one item.
type Counter struct {
	ID        string
	Views     int64
	Downloads int64
}

// CounterStore persists per-item counters.
type CounterStore interface {
	// OpenSession acquires a connection scoped to one dimension run.
	// The caller must Close the session on every exit path.
	OpenSession(ctx context.Context) (CounterSession, error)

	// Get returns the counter for one item id, or ErrNotFound.
	Get(ctx context.Context, id string) (Counter, error)

	// Count returns the number of item rows.
	Count(ctx context.Context) (int64, error)
}

// CounterSession merges facet pages into the store.
type CounterSession interface {
	// UpsertPage inserts unseen ids and updates only dim's column for existing
	// ids, committing the page as one unit. It returns the rows affected.
	// Ids within one call must be unique.
	UpsertPage(ctx context.Context, dim stats.Dimension, counts []stats.FacetCount) (int64, error)

	Close() error
}
