package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aevon-lab/stats-indexer/internal/core/stats"
	"github.com/aevon-lab/stats-indexer/internal/core/storage"
)

// CounterStore is an in-memory storage.CounterStore with the same column-wise
// merge semantics as the PostgreSQL adapter.
// Useful for testing and development.
type CounterStore struct {
	mu    sync.RWMutex
	items map[string]storage.Counter

	// FailAfter makes the Nth upserted page (1-based) fail. Zero disables it.
	FailAfter int
	pages     int

	openSessions int
	commits      int
}

// NewCounterStore creates an empty store.
func NewCounterStore() *CounterStore {
	return &CounterStore{items: make(map[string]storage.Counter)}
}

func (s *CounterStore) OpenSession(ctx context.Context) (storage.CounterSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openSessions++
	return &session{store: s}, nil
}

func (s *CounterStore) Get(ctx context.Context, id string) (storage.Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.items[id]
	if !ok {
		return storage.Counter{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *CounterStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.items)), nil
}

// Snapshot returns a copy of every stored counter keyed by id.
func (s *CounterStore) Snapshot() map[string]storage.Counter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]storage.Counter, len(s.items))
	for id, c := range s.items {
		out[id] = c
	}
	return out
}

// OpenSessions is the number of sessions that have not been closed.
func (s *CounterStore) OpenSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openSessions
}

// Commits is the number of pages committed so far.
func (s *CounterStore) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

type session struct {
	store  *CounterStore
	closed bool
}

func (ss *session) UpsertPage(ctx context.Context, dim stats.Dimension, counts []stats.FacetCount) (int64, error) {
	if ss.closed {
		return 0, fmt.Errorf("memory session closed")
	}
	if err := dim.Validate(); err != nil {
		return 0, err
	}

	s := ss.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pages++
	if s.FailAfter > 0 && s.pages >= s.FailAfter {
		return 0, fmt.Errorf("memory upsert %s: injected failure on page %d", dim, s.pages)
	}
	if len(counts) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{}, len(counts))
	for _, c := range counts {
		if _, dup := seen[c.ID]; dup {
			// PostgreSQL refuses to update the same row twice in one statement.
			return 0, fmt.Errorf("memory upsert %s: duplicate id %s in page", dim, c.ID)
		}
		seen[c.ID] = struct{}{}
	}

	for _, c := range counts {
		row, ok := s.items[c.ID]
		if !ok {
			row = storage.Counter{ID: c.ID}
		}
		switch dim.Column {
		case stats.Views.Column:
			row.Views = c.Count
		case stats.Downloads.Column:
			row.Downloads = c.Count
		}
		s.items[c.ID] = row
	}
	s.commits++
	return int64(len(counts)), nil
}

func (ss *session) Close() error {
	if ss.closed {
		return nil
	}
	ss.closed = true

	ss.store.mu.Lock()
	defer ss.store.mu.Unlock()
	ss.store.openSessions--
	return nil
}
