package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openeventsys/sessiond/internal/regapi"
	"github.com/openeventsys/sessiond/internal/token"
	"github.com/openeventsys/sessiond/internal/tokenstore"
)

// ErrClosed is returned by operations issued after Close.
var ErrClosed = errors.New("session store closed")

// Refresher exchanges a refresh token for a new token record.
type Refresher interface {
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (*token.Record, error)
}

// Store holds the current token record and coordinates its lifecycle.
// It is the sole mutator of the record; the persistence layer only mirrors
// it. All methods are safe for concurrent use.
type Store struct {
	refresher Refresher
	persist   tokenstore.Store
	now       func() time.Time

	// ops is the serialized mailbox. Every operation that reads-then-writes
	// the current record is queued here and executed by a single consumer
	// goroutine, in submission order.
	ops    chan func()
	closed chan struct{}

	baseCtx context.Context
	cancel  context.CancelFunc
	once    sync.Once

	// snap is a lock-free read-only view for callers that don't need to
	// observe-then-act.
	snap atomic.Pointer[snapshot]

	// Mailbox-goroutine state. Only touched from inside ops.
	state       State
	current     *token.Record
	invalidated map[string]struct{}
}

type snapshot struct {
	state State
	rec   *token.Record
	// changed is closed when the snapshot is superseded.
	changed chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store. Both collaborators are required; a store without a
// refresher or persistence backend is a configuration error and fails fast
// here rather than misbehaving later.
func New(refresher Refresher, persist tokenstore.Store, opts ...Option) (*Store, error) {
	if refresher == nil {
		return nil, fmt.Errorf("missing refresher")
	}
	if persist == nil {
		return nil, fmt.Errorf("missing persistence store")
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		refresher:   refresher,
		persist:     persist,
		now:         time.Now,
		ops:         make(chan func()),
		closed:      make(chan struct{}),
		baseCtx:     baseCtx,
		cancel:      cancel,
		invalidated: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(&snapshot{state: StateUnauthenticated, changed: make(chan struct{})})

	go s.run()

	return s, nil
}

// run is the single mailbox consumer.
func (s *Store) run() {
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.closed:
			// Release any submitters that won the race with Close.
			for {
				select {
				case op := <-s.ops:
					op()
				default:
					return
				}
			}
		}
	}
}

// do queues fn on the mailbox and waits for it to complete. If ctx is
// cancelled after fn was queued, fn still runs but the caller stops
// waiting.
func (s *Store) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}

	select {
	case s.ops <- op:
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the mailbox and the cross-process watcher. Waiters receive
// ErrClosed or their context error.
func (s *Store) Close() {
	s.once.Do(func() {
		s.cancel()
		close(s.closed)
	})
}

// Status returns the store's current state without queuing.
func (s *Store) Status() State {
	return s.snap.Load().state
}

// Current returns the current record without queuing. The value is a
// snapshot and may be superseded immediately; callers that need a token
// that is actually valid must use GetValidToken.
func (s *Store) Current() *token.Record {
	return s.snap.Load().rec
}

// publish replaces the read-only snapshot and wakes all waiters.
// Must be called from the mailbox goroutine.
func (s *Store) publish() {
	old := s.snap.Load()
	s.snap.Store(&snapshot{state: s.state, rec: s.current, changed: make(chan struct{})})
	close(old.changed)
}

// usable reports whether the current record can be handed out as-is.
// Must be called from the mailbox goroutine.
func (s *Store) usable() bool {
	if s.state != StateValid || s.current == nil {
		return false
	}
	if s.current.Expired(s.now()) {
		return false
	}
	_, invalid := s.invalidated[s.current.AccessToken]
	return !invalid
}

// apply replaces the current record, persists it (nil clears persisted
// storage), and wakes waiters. Must be called from the mailbox goroutine.
func (s *Store) apply(rec *token.Record) error {
	s.adopt(rec)
	if err := s.persist.Save(s.baseCtx, rec); err != nil {
		// The in-memory session stays usable, but the record is lost on
		// restart and invisible to other processes.
		slog.ErrorContext(s.baseCtx, "failed to persist session record", "error", err)
		return err
	}
	return nil
}

// adopt replaces the current record in memory only. Used by apply and when
// taking over a record another process already persisted.
// Must be called from the mailbox goroutine.
func (s *Store) adopt(rec *token.Record) {
	s.current = rec
	if rec == nil {
		s.state = StateUnauthenticated
	} else {
		s.state = StateValid
	}
	s.invalidated = make(map[string]struct{})
	s.publish()
}

// refresh performs one refresh exchange for the current record.
// Returns the new record, or nil when the session terminated in
// Unauthenticated: no refresh token, provider rejection, or transport
// failure. Refreshes are never retried automatically.
// Must be called from the mailbox goroutine.
func (s *Store) refresh() *token.Record {
	rec := s.current
	if rec == nil {
		return nil
	}
	if !rec.Refreshable() {
		_ = s.apply(nil)
		return nil
	}

	s.state = StateRefreshing
	s.publish()

	// The outcome is shared by every queued waiter, so the exchange must
	// not inherit any single caller's cancellation. The API client's
	// timeout bounds it.
	newRec, err := s.refresher.ExchangeRefreshToken(s.baseCtx, rec.RefreshToken)
	if err != nil {
		if regapi.IsProviderRejection(err) {
			slog.WarnContext(s.baseCtx, "refresh token rejected by provider", "error", err)
		} else {
			slog.WarnContext(s.baseCtx, "token refresh failed", "error", err)
		}
		_ = s.apply(nil)
		return nil
	}

	_ = s.apply(newRec)
	return newRec
}

// GetValidToken resolves once the store holds a valid, non-expired record,
// awaiting any in-flight refresh. If the store ends up unauthenticated it
// keeps waiting until some caller supplies a new record via SetAuthInfo, so
// callers must pass a cancellable context.
func (s *Store) GetValidToken(ctx context.Context) (*token.Record, error) {
	for {
		var rec *token.Record
		var wait chan struct{}

		err := s.do(ctx, func() {
			if s.usable() {
				rec = s.current
				return
			}
			if s.current != nil {
				if rec = s.refresh(); rec != nil {
					return
				}
			}
			wait = s.snap.Load().changed
		})
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.closed:
			return nil, ErrClosed
		}
	}
}

// SetAuthInfo atomically replaces the current record, persists it (or
// clears persisted storage for nil), and notifies waiters.
func (s *Store) SetAuthInfo(ctx context.Context, rec *token.Record) error {
	var persistErr error
	if err := s.do(ctx, func() {
		persistErr = s.apply(rec)
	}); err != nil {
		return err
	}
	return persistErr
}

// Refresh exchanges the current refresh token for a new record. Returns
// nil without error when the session terminated (no refresh token or the
// exchange failed); the store is then unauthenticated.
//
// Concurrent calls collapse into a single exchange: a queued refresh that
// finds a valid, unexpired, uninvalidated record adopted by a predecessor
// returns that record without touching the network.
func (s *Store) Refresh(ctx context.Context) (*token.Record, error) {
	var rec *token.Record
	if err := s.do(ctx, func() {
		if s.usable() {
			rec = s.current
			return
		}
		rec = s.refresh()
	}); err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkInvalid records that a specific access token value failed
// authorization. Returns true only for the first report of that value, so
// many requests failing on the same stale token trigger a single refresh.
func (s *Store) MarkInvalid(accessToken string) bool {
	var first bool
	_ = s.do(context.Background(), func() {
		if _, seen := s.invalidated[accessToken]; seen {
			return
		}
		s.invalidated[accessToken] = struct{}{}
		first = true
		if s.state == StateValid && s.current != nil && s.current.AccessToken == accessToken {
			s.state = StateInvalid
			s.publish()
		}
	})
	return first
}

// Load reads the persisted record and readies the store. An expired record
// with a refresh token gets one refresh attempt before Load returns; an
// expired record without one is discarded. When the backend supports change
// notification, Load also subscribes so records written by other processes
// are adopted (see onExternalChange).
func (s *Store) Load(ctx context.Context) error {
	stored, err := s.persist.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading persisted session: %w", err)
	}

	if err := s.do(ctx, func() {
		switch {
		case stored == nil:
			// no stored session
		case stored.Expired(s.now()) && stored.Refreshable():
			s.current = stored
			s.state = StateInvalid
			s.publish()
			s.refresh()
		case stored.Expired(s.now()):
			slog.InfoContext(ctx, "discarding expired session with no refresh token")
		default:
			s.adopt(stored)
		}
	}); err != nil {
		return err
	}

	if w, ok := s.persist.(tokenstore.Watcher); ok {
		if err := w.Watch(s.baseCtx, s.onExternalChange); err != nil {
			return fmt.Errorf("subscribing to storage changes: %w", err)
		}
	}
	return nil
}

// onExternalChange adopts a record another process persisted, unless the
// in-memory state already supersedes it.
func (s *Store) onExternalChange(rec *token.Record) {
	_ = s.do(s.baseCtx, func() {
		if !rec.Supersedes(s.current) {
			slog.DebugContext(s.baseCtx, "ignoring stale externally stored session record")
			return
		}
		slog.InfoContext(s.baseCtx, "adopting session record from another process",
			"authenticated", rec != nil)
		s.adopt(rec)
	})
}
