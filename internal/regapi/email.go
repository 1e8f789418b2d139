package regapi

import (
	"context"
	"fmt"
	"net/http"
)

type sendEmailCodeRequest struct {
	Email string `json:"email"`
}

type verifyEmailCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type verifyEmailCodeResponse struct {
	Token string `json:"token"`
}

// SendEmailCode asks the provider to send a one-time code to the address.
func (c *Client) SendEmailCode(ctx context.Context, email string) error {
	if err := c.doJSON(ctx, http.MethodPost, "/auth/email/send", sendEmailCodeRequest{Email: email}, nil); err != nil {
		return fmt.Errorf("sending email auth code: %w", err)
	}
	return nil
}

// VerifyEmailCode exchanges the address and code for a short-lived email
// verification token consumable by account creation.
func (c *Client) VerifyEmailCode(ctx context.Context, email, code string) (string, error) {
	var resp verifyEmailCodeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/email/verify", verifyEmailCodeRequest{Email: email, Code: code}, &resp); err != nil {
		return "", fmt.Errorf("verifying email auth code: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("email verification returned no token")
	}
	return resp.Token, nil
}
