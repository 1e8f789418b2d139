package regapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/openeventsys/sessiond/internal/token"
)

// WebAuthnChallenge is a server-issued ceremony challenge. Options carries
// the ceremony parameters verbatim for the authenticator; the challenge
// string itself is an opaque server token echoed back on completion.
type WebAuthnChallenge struct {
	Challenge string          `json:"challenge"`
	Options   json.RawMessage `json:"options"`
}

// webAuthnResult is the body completing either ceremony: the echoed
// challenge token plus the authenticator's serialized response.
type webAuthnResult struct {
	Challenge string `json:"challenge"`
	Result    string `json:"result"`
}

// WebAuthnRegistrationChallenge fetches a challenge for registering a new
// credential.
func (c *Client) WebAuthnRegistrationChallenge(ctx context.Context) (*WebAuthnChallenge, error) {
	var ch WebAuthnChallenge
	if err := c.doJSON(ctx, http.MethodGet, "/auth/webauthn/register", nil, &ch); err != nil {
		return nil, fmt.Errorf("fetching webauthn registration challenge: %w", err)
	}
	return &ch, nil
}

// CompleteWebAuthnRegistration submits the authenticator's registration
// result and returns the token record for the newly bound credential.
func (c *Client) CompleteWebAuthnRegistration(ctx context.Context, challenge, result string) (*token.Record, error) {
	var resp token.Response
	body := webAuthnResult{Challenge: challenge, Result: result}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/webauthn/register", body, &resp); err != nil {
		return nil, fmt.Errorf("completing webauthn registration: %w", err)
	}
	rec, err := resp.Record(time.Now())
	if err != nil {
		return nil, fmt.Errorf("completing webauthn registration: %w", err)
	}
	return rec, nil
}

// WebAuthnAuthenticationChallenge fetches a challenge for authenticating
// with a previously bound credential.
func (c *Client) WebAuthnAuthenticationChallenge(ctx context.Context, credentialID string) (*WebAuthnChallenge, error) {
	var ch WebAuthnChallenge
	path := "/auth/webauthn/authenticate/" + url.PathEscape(credentialID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &ch); err != nil {
		return nil, fmt.Errorf("fetching webauthn authentication challenge: %w", err)
	}
	return &ch, nil
}

// CompleteWebAuthnAuthentication submits the authenticator's assertion and
// returns a token record for the authenticated account.
func (c *Client) CompleteWebAuthnAuthentication(ctx context.Context, credentialID, challenge, result string) (*token.Record, error) {
	var resp token.Response
	body := webAuthnResult{Challenge: challenge, Result: result}
	path := "/auth/webauthn/authenticate/" + url.PathEscape(credentialID)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("completing webauthn authentication: %w", err)
	}
	rec, err := resp.Record(time.Now())
	if err != nil {
		return nil, fmt.Errorf("completing webauthn authentication: %w", err)
	}
	return rec, nil
}
