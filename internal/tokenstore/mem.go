package tokenstore

import (
	"context"
	"sync"

	"github.com/openeventsys/sessiond/internal/token"
)

// MemStore holds the session record in process memory. Used in tests and
// as the backend for ephemeral sessions that should not outlive the
// process.
type MemStore struct {
	mu       sync.Mutex
	rec      *token.Record
	handlers []func(*token.Record)
}

// Compile-time check to ensure MemStore implements Store and Watcher.
var (
	_ Store   = (*MemStore)(nil)
	_ Watcher = (*MemStore)(nil)
)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Load returns the held record.
func (m *MemStore) Load(ctx context.Context) (*token.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec, nil
}

// Save replaces the held record. Does not notify watchers: those model
// foreign processes, see ExternalUpdate.
func (m *MemStore) Save(ctx context.Context, rec *token.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = rec
	return nil
}

// Watch registers a handler for external updates.
func (m *MemStore) Watch(ctx context.Context, handler func(*token.Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
	return nil
}

// ExternalUpdate stores the record as if a different process wrote it and
// notifies watchers.
func (m *MemStore) ExternalUpdate(rec *token.Record) {
	m.mu.Lock()
	m.rec = rec
	handlers := make([]func(*token.Record), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, h := range handlers {
		h(rec)
	}
}
