package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Record is one access/refresh token pair with its metadata.
//
// A Record is immutable once constructed: any "update" produces a new Record.
// Callers must not mutate fields after handing a Record to another component.
type Record struct {
	// TokenType is the authorization scheme, e.g. "Bearer".
	TokenType string `json:"tokenType"`

	// AccessToken is the opaque credential presented on each API call.
	AccessToken string `json:"accessToken"`

	// RefreshToken renews the access token without re-authenticating.
	// Empty means the session cannot be silently renewed.
	RefreshToken string `json:"refreshToken,omitempty"`

	// ExpiresAt is the absolute expiry of the access token. Zero means
	// "assume valid until the server says otherwise".
	ExpiresAt time.Time `json:"-"`

	// Scope is the space-delimited scope string echoed by the provider.
	Scope string `json:"scope,omitempty"`

	// Identity fields the provider embeds in the access token.
	AccountID string `json:"accountId,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Expired reports whether the record's access token is known to be expired
// at the given instant. Records without an expiry never report expired.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Refreshable reports whether the record carries a refresh token.
func (r *Record) Refreshable() bool {
	return r.RefreshToken != ""
}

// AuthorizationValue returns the value for the Authorization header,
// defaulting the scheme to Bearer when the provider omitted a token type.
func (r *Record) AuthorizationValue() string {
	typ := r.TokenType
	if typ == "" {
		typ = "Bearer"
	}
	return typ + " " + r.AccessToken
}

// Equal reports whether two records hold the same credentials. Either side
// may be nil. Identity fields are derived from the access token and do not
// participate in the comparison.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.AccessToken == other.AccessToken &&
		r.RefreshToken == other.RefreshToken &&
		r.ExpiresAt.Equal(other.ExpiresAt)
}

// Supersedes reports whether this record should replace current when it
// arrives from another process sharing the same credential storage.
//
// A record identical to the current one is never adopted, and when both
// carry an expiry a strictly older record is never adopted; this keeps a
// lagging process from regressing past a local sign-out or a completed
// refresh. Everything else, including a nil record (an external sign-out),
// wins.
func (r *Record) Supersedes(current *Record) bool {
	if r.Equal(current) {
		return false
	}
	if r != nil && current != nil &&
		!r.ExpiresAt.IsZero() && !current.ExpiresAt.IsZero() &&
		r.ExpiresAt.Before(current.ExpiresAt) {
		return false
	}
	return true
}

// FromOAuth2 converts a token obtained through the x/oauth2 exchange into a
// Record, pulling identity fields out of the access token's claims.
func FromOAuth2(t *oauth2.Token) *Record {
	rec := &Record{
		TokenType:    t.TokenType,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
	}
	if scope, ok := t.Extra("scope").(string); ok {
		rec.Scope = scope
	}
	enrichFromClaims(rec)
	return rec
}

// identityClaims are the claims the provider embeds in its access tokens.
// The server signs them; the client only reads them for display and for an
// expiry when the token response omitted expires_in.
type identityClaims struct {
	Email string `json:"email,omitempty"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// enrichFromClaims fills identity fields from the access token when it is a
// JWT. Tokens that are not JWTs are left untouched; the access token is
// opaque as far as the protocol is concerned.
func enrichFromClaims(rec *Record) {
	var claims identityClaims
	if _, _, err := jwt.NewParser().ParseUnverified(rec.AccessToken, &claims); err != nil {
		return
	}
	if rec.AccountID == "" {
		rec.AccountID = claims.Subject
	}
	if rec.Email == "" {
		rec.Email = claims.Email
	}
	if rec.Scope == "" {
		rec.Scope = claims.Scope
	}
	if rec.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		rec.ExpiresAt = claims.ExpiresAt.Time
	}
}
