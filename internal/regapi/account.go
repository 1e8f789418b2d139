package regapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openeventsys/sessiond/internal/token"
)

// createAccountRequest is the body for account creation. EmailToken carries
// the short-lived verification token from the email flow; omitted for guest
// accounts.
type createAccountRequest struct {
	EmailToken string `json:"email_token,omitempty"`
}

// CreateAccount creates a new account and returns its initial token record.
// An empty emailToken creates a guest account.
func (c *Client) CreateAccount(ctx context.Context, emailToken string) (*token.Record, error) {
	var resp token.Response
	req := createAccountRequest{EmailToken: emailToken}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/account/create", req, &resp); err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	rec, err := resp.Record(time.Now())
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return rec, nil
}

// AuthInfo is the provider's view of the currently authorized account.
type AuthInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Scope string `json:"scope"`
}

// CurrentAuth fetches the authentication info for the presented token. The
// configured HTTP client must attach authorization, so this is normally
// called with a client wrapping the authorizing transport.
func (c *Client) CurrentAuth(ctx context.Context) (*AuthInfo, error) {
	var info AuthInfo
	if err := c.doJSON(ctx, http.MethodGet, "/auth/current", nil, &info); err != nil {
		return nil, fmt.Errorf("fetching current auth info: %w", err)
	}
	return &info, nil
}
