// Package authtransport injects bearer authorization into requests bound
// for the protected API origin and recovers from stale-token rejections.
package authtransport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/openeventsys/sessiond/internal/session"
)

// Transport wraps a base http.RoundTripper. Requests to the protected
// origin get an Authorization header from the session store; a 401 response
// marks the used token invalid, triggers (at most) one shared refresh, and
// retries the request with the replacement token. Requests to any other
// origin pass through untouched; the token must never leak to third
// parties.
//
// The retry loop has no fixed bound: it terminates when the store converges
// to a valid token (the retry is then expected to succeed) or to
// unauthenticated (the wait blocks until an external sign-in). The
// request's context is the caller's cancellation handle for that wait.
type Transport struct {
	store  *session.Store
	origin *url.URL
	base   http.RoundTripper
}

// Compile-time check that Transport implements http.RoundTripper.
var _ http.RoundTripper = (*Transport)(nil)

// New creates a Transport protecting the given API origin. A nil base uses
// http.DefaultTransport.
func New(store *session.Store, origin *url.URL, base http.RoundTripper) (*Transport, error) {
	if store == nil {
		return nil, fmt.Errorf("missing session store")
	}
	if origin == nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("missing protected origin")
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		store:  store,
		origin: origin,
		base:   base,
	}, nil
}

// Client returns an *http.Client using this transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.protectedOrigin(req.URL) {
		return t.base.RoundTrip(req)
	}

	// Retries need a rewindable body. Requests built through http.NewRequest
	// carry GetBody for the common reader types.
	replayable := req.Body == nil || req.GetBody != nil

	first := true
	for {
		rec, err := t.store.GetValidToken(req.Context())
		if err != nil {
			return nil, err
		}

		attempt, err := t.cloneRequest(req, first)
		first = false
		if err != nil {
			return nil, err
		}
		attempt.Header.Set("Authorization", rec.AuthorizationValue())

		resp, err := t.base.RoundTrip(attempt)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized {
			return resp, nil
		}

		if t.store.MarkInvalid(rec.AccessToken) {
			// First observer of this stale token kicks off the refresh;
			// everyone else shares its outcome through the store. Detached
			// from this request's context: the refresh result belongs to
			// all waiters, not just this call.
			refreshCtx := context.WithoutCancel(req.Context())
			go func() { _, _ = t.store.Refresh(refreshCtx) }()
		}

		if !replayable {
			// Cannot resend the consumed body; surface the 401 as-is.
			return resp, nil
		}

		// Drain so the connection can be reused before retrying.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}
}

// cloneRequest prepares an attempt. The first attempt consumes the
// original body; retries rewind through GetBody.
func (t *Transport) cloneRequest(req *http.Request, first bool) (*http.Request, error) {
	attempt := req.Clone(req.Context())
	if !first && req.Body != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		attempt.Body = body
	}
	return attempt, nil
}

// protectedOrigin reports whether u shares scheme and host with the
// protected API origin.
func (t *Transport) protectedOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, t.origin.Scheme) &&
		strings.EqualFold(u.Host, t.origin.Host)
}
