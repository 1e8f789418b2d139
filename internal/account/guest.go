package account

import (
	"context"
	"fmt"

	"github.com/openeventsys/sessiond/internal/regapi"
	"github.com/openeventsys/sessiond/internal/token"
)

// GuestMethod creates anonymous accounts. It presents no credentials and
// cannot resume anything, so it always sits last in the priority order as
// the fallback that cannot fail for local reasons.
type GuestMethod struct {
	api *regapi.Client
}

var _ Method = (*GuestMethod)(nil)

// NewGuestMethod creates a GuestMethod backed by the given API client.
func NewGuestMethod(api *regapi.Client) (*GuestMethod, error) {
	if api == nil {
		return nil, fmt.Errorf("missing API client")
	}
	return &GuestMethod{api: api}, nil
}

func (g *GuestMethod) Name() string { return "guest" }

func (g *GuestMethod) Available(ctx context.Context) bool { return true }

// Authenticate has nothing to resume: guest identities live entirely in the
// session store.
func (g *GuestMethod) Authenticate(ctx context.Context) (*token.Record, error) {
	return nil, nil
}

// CreateAccount creates an anonymous account with no credentials.
func (g *GuestMethod) CreateAccount(ctx context.Context, opts CreateOptions) (*token.Record, error) {
	return g.api.CreateAccount(ctx, "")
}
