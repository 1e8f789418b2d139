// Package account establishes an identity through interchangeable
// authentication methods and feeds the result into the session store.
package account

import (
	"context"

	"github.com/openeventsys/sessiond/internal/token"
)

// CreateOptions carries inputs for account creation.
type CreateOptions struct {
	// Email to bind to the account. Methods that verify an address use it;
	// the guest method ignores it.
	Email string
}

// Method is one way of creating or resuming an identity. Implementations
// report ceremony failures (user cancelled, hardware unavailable, provider
// rejection) as errors; the manager counts those per method and stops
// retrying a persistently failing one.
type Method interface {
	// Name identifies the method in configuration and logs.
	Name() string

	// Available reports whether the method can run in this environment at
	// all (hardware present, prompter wired, ...).
	Available(ctx context.Context) bool

	// Authenticate resumes an existing identity. Returns (nil, nil) when
	// the method has nothing to resume here (e.g. no locally bound
	// credential); that is not a failure.
	Authenticate(ctx context.Context) (*token.Record, error)

	// CreateAccount establishes a new identity.
	CreateAccount(ctx context.Context, opts CreateOptions) (*token.Record, error)
}
