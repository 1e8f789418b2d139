package tokenstore

import (
	"context"

	"github.com/openeventsys/sessiond/internal/token"
)

// Store loads and saves the persisted token record.
type Store interface {
	// Load returns the stored record, or nil if nothing usable is stored.
	// Malformed or old-format data is reported as nil, never as an error;
	// errors are reserved for the storage backend itself failing.
	Load(ctx context.Context) (*token.Record, error)

	// Save persists the record, replacing any previous one. A nil record
	// clears the stored session. Returns an error if the backend is
	// read-only or the write fails.
	Save(ctx context.Context, rec *token.Record) error
}

// Watcher is implemented by stores that can observe mutations made by other
// processes sharing the same underlying storage.
type Watcher interface {
	// Watch invokes handler with the newly stored record (nil for a
	// cleared session) whenever a different process mutates the storage.
	// Writes made through this Store instance do not trigger the handler.
	// Watching stops when ctx is cancelled.
	Watch(ctx context.Context, handler func(*token.Record)) error
}
