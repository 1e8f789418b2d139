package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openeventsys/sessiond/internal/session"
	"github.com/openeventsys/sessiond/internal/token"
)

// DefaultMaxFailures is how many consecutive ceremony failures a method may
// accumulate before the manager stops trying it for the rest of the session.
const DefaultMaxFailures = 2

// Manager coordinates the configured authentication methods. Methods are
// tried in priority order, strongest first; the first success wins and is
// handed to the session store.
type Manager struct {
	store       *session.Store
	methods     []Method
	maxFailures int

	mu       sync.Mutex
	failures map[string]int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxFailures overrides the per-method consecutive failure bound.
func WithMaxFailures(n int) ManagerOption {
	return func(m *Manager) {
		m.maxFailures = n
	}
}

// NewManager creates a Manager over the given methods, in priority order.
func NewManager(store *session.Store, methods []Method, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("missing session store")
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no authentication methods configured")
	}

	m := &Manager{
		store:       store,
		methods:     methods,
		maxFailures: DefaultMaxFailures,
		failures:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Authenticate attempts to resume an identity, short-circuiting on the
// first method that succeeds. Methods that failed maxFailures times in a
// row this session are skipped. Returns (nil, nil) when no method had
// anything to resume; returns an aggregate error when every applicable
// method failed.
func (m *Manager) Authenticate(ctx context.Context) (*token.Record, error) {
	var errs []error

	for _, method := range m.methods {
		if m.exhausted(method) {
			slog.DebugContext(ctx, "skipping exhausted authentication method", "method", method.Name())
			continue
		}
		if !method.Available(ctx) {
			continue
		}

		rec, err := method.Authenticate(ctx)
		if err != nil {
			m.recordFailure(ctx, method, err)
			errs = append(errs, fmt.Errorf("%s: %w", method.Name(), err))
			continue
		}
		if rec == nil {
			continue
		}

		m.recordSuccess(method)
		if err := m.store.SetAuthInfo(ctx, rec); err != nil {
			return nil, fmt.Errorf("storing authenticated session: %w", err)
		}
		slog.InfoContext(ctx, "authenticated", "method", method.Name(), "account_id", rec.AccountID)
		return rec, nil
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

// CreateAccount establishes a new identity, preferring the strongest
// available method and falling back down the priority order (which ends
// with the guest method in the default wiring). It either produces an
// identity or returns an aggregate error; there is no "not yet
// authenticated" outcome.
func (m *Manager) CreateAccount(ctx context.Context, opts CreateOptions) (*token.Record, error) {
	var errs []error

	for _, method := range m.methods {
		if m.exhausted(method) {
			slog.DebugContext(ctx, "skipping exhausted authentication method", "method", method.Name())
			continue
		}
		if !method.Available(ctx) {
			continue
		}

		rec, err := method.CreateAccount(ctx, opts)
		if err != nil {
			m.recordFailure(ctx, method, err)
			errs = append(errs, fmt.Errorf("%s: %w", method.Name(), err))
			continue
		}

		m.recordSuccess(method)
		if err := m.store.SetAuthInfo(ctx, rec); err != nil {
			return nil, fmt.Errorf("storing new session: %w", err)
		}
		slog.InfoContext(ctx, "account created", "method", method.Name(), "account_id", rec.AccountID)
		return rec, nil
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("all account creation methods failed: %w", errors.Join(errs...))
	}
	return nil, fmt.Errorf("no account creation method available")
}

// exhausted reports whether a method hit its consecutive failure bound.
func (m *Manager) exhausted(method Method) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[method.Name()] >= m.maxFailures
}

func (m *Manager) recordFailure(ctx context.Context, method Method, err error) {
	m.mu.Lock()
	m.failures[method.Name()]++
	count := m.failures[method.Name()]
	m.mu.Unlock()
	slog.WarnContext(ctx, "authentication method failed",
		"method", method.Name(), "consecutive_failures", count, "error", err)
}

func (m *Manager) recordSuccess(method Method) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method.Name()] = 0
}
