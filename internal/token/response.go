package token

import (
	"fmt"
	"time"
)

// Response is the provider's token endpoint response shape, shared by the
// refresh grant, account creation, and the WebAuthn verification endpoints.
type Response struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`

	// OAuth2 error body fields, set instead of the token fields on failure.
	ErrorCode        string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Err returns the provider error carried by the response, if any.
func (r *Response) Err() error {
	if r.ErrorCode == "" {
		return nil
	}
	if r.ErrorDescription != "" {
		return fmt.Errorf("provider rejected token request: %s: %s", r.ErrorCode, r.ErrorDescription)
	}
	return fmt.Errorf("provider rejected token request: %s", r.ErrorCode)
}

// Record converts the response into an immutable Record, resolving
// expires_in against now and enriching identity fields from the access
// token's claims.
func (r *Response) Record(now time.Time) (*Record, error) {
	if err := r.Err(); err != nil {
		return nil, err
	}
	if r.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	rec := &Record{
		TokenType:    r.TokenType,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Scope:        r.Scope,
	}
	if r.ExpiresIn > 0 {
		rec.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	enrichFromClaims(rec)
	return rec, nil
}
