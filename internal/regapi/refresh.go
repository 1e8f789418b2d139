package regapi

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/openeventsys/sessiond/internal/token"
)

// ExchangeRefreshToken performs one refresh-token grant against the token
// endpoint and returns the new record. The exchange is delegated to
// x/oauth2, which speaks the form-encoded grant the endpoint expects.
func (c *Client) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*token.Record, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("missing refresh token")
	}

	conf := &oauth2.Config{
		ClientID: c.clientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.endpoint("/auth/token"),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	// x/oauth2 injects custom HTTP clients via context (oauth2.HTTPClient key).
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	// A TokenSource seeded with only a refresh token performs exactly one
	// exchange on the first Token call.
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token exchange: %w", err)
	}

	return token.FromOAuth2(tok), nil
}

// IsProviderRejection reports whether err is an explicit rejection from the
// token endpoint (invalid or superseded refresh token, OAuth2 error body)
// as opposed to a transport-level failure.
func IsProviderRejection(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	return errors.As(err, &retrieveErr)
}
