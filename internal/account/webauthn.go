package account

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openeventsys/sessiond/internal/regapi"
	"github.com/openeventsys/sessiond/internal/token"
)

// Authenticator performs the local half of a WebAuthn ceremony: create a
// device-bound credential, or sign a challenge with an existing one. The
// ceremony options pass through verbatim; the server defines their shape.
type Authenticator interface {
	// Available reports whether an authenticator is usable on this device.
	Available(ctx context.Context) bool

	// Register creates a new credential for the ceremony described by
	// options. Returns the credential id and the serialized attestation
	// result the server expects.
	Register(ctx context.Context, options json.RawMessage) (credentialID, result string, err error)

	// Sign produces an assertion for the ceremony described by options
	// using the identified credential.
	Sign(ctx context.Context, credentialID string, options json.RawMessage) (result string, err error)
}

// CredentialStore remembers which credential id this device bound, so a
// later session can resume through the authentication ceremony.
type CredentialStore interface {
	CredentialID(ctx context.Context) (string, error)
	SaveCredentialID(ctx context.Context, id string) error
}

// WebAuthnMethod authenticates with a platform authenticator. Strongest
// method: first in the default priority order.
type WebAuthnMethod struct {
	api         *regapi.Client
	auth        Authenticator
	credentials CredentialStore
}

var _ Method = (*WebAuthnMethod)(nil)

// NewWebAuthnMethod creates a WebAuthnMethod.
func NewWebAuthnMethod(api *regapi.Client, auth Authenticator, credentials CredentialStore) (*WebAuthnMethod, error) {
	if api == nil {
		return nil, fmt.Errorf("missing API client")
	}
	if auth == nil {
		return nil, fmt.Errorf("missing authenticator")
	}
	if credentials == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	return &WebAuthnMethod{api: api, auth: auth, credentials: credentials}, nil
}

func (w *WebAuthnMethod) Name() string { return "webauthn" }

func (w *WebAuthnMethod) Available(ctx context.Context) bool {
	return w.auth.Available(ctx)
}

// Authenticate resumes the identity bound to this device's credential:
// challenge fetch, local signature, server verification. Returns (nil, nil)
// when no credential was ever bound here.
func (w *WebAuthnMethod) Authenticate(ctx context.Context) (*token.Record, error) {
	credentialID, err := w.credentials.CredentialID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading bound credential: %w", err)
	}
	if credentialID == "" {
		return nil, nil
	}

	challenge, err := w.api.WebAuthnAuthenticationChallenge(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	result, err := w.auth.Sign(ctx, credentialID, challenge.Options)
	if err != nil {
		return nil, fmt.Errorf("authenticator assertion: %w", err)
	}

	return w.api.CompleteWebAuthnAuthentication(ctx, credentialID, challenge.Challenge, result)
}

// CreateAccount performs the registration ceremony and remembers the new
// credential id for later sessions.
func (w *WebAuthnMethod) CreateAccount(ctx context.Context, opts CreateOptions) (*token.Record, error) {
	challenge, err := w.api.WebAuthnRegistrationChallenge(ctx)
	if err != nil {
		return nil, err
	}

	credentialID, result, err := w.auth.Register(ctx, challenge.Options)
	if err != nil {
		return nil, fmt.Errorf("authenticator registration: %w", err)
	}

	rec, err := w.api.CompleteWebAuthnRegistration(ctx, challenge.Challenge, result)
	if err != nil {
		return nil, err
	}

	if err := w.credentials.SaveCredentialID(ctx, credentialID); err != nil {
		// The account exists and the session is good; only resumption on
		// this device is lost.
		slog.WarnContext(ctx, "failed to remember webauthn credential id", "error", err)
	}
	return rec, nil
}
