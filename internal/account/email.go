package account

import (
	"context"
	"fmt"

	"github.com/openeventsys/sessiond/internal/regapi"
	"github.com/openeventsys/sessiond/internal/token"
)

// EmailPrompter collects the address and one-time code from the user.
// The CLI implements it over the terminal; a UI would implement it with a
// form.
type EmailPrompter interface {
	// PromptEmail asks for the address to verify. Only called when the
	// caller didn't supply one.
	PromptEmail(ctx context.Context) (string, error)

	// PromptCode asks for the one-time code that was sent to email.
	PromptCode(ctx context.Context, email string) (string, error)
}

// EmailMethod establishes an identity through the two-phase email flow:
// request a one-time code, exchange (address, code) for a short-lived
// verification token, then create the account with that token.
type EmailMethod struct {
	api      *regapi.Client
	prompter EmailPrompter
}

var _ Method = (*EmailMethod)(nil)

// NewEmailMethod creates an EmailMethod. The prompter is required: without
// a way to collect the code the method reports itself unavailable.
func NewEmailMethod(api *regapi.Client, prompter EmailPrompter) (*EmailMethod, error) {
	if api == nil {
		return nil, fmt.Errorf("missing API client")
	}
	return &EmailMethod{api: api, prompter: prompter}, nil
}

func (e *EmailMethod) Name() string { return "email" }

func (e *EmailMethod) Available(ctx context.Context) bool {
	return e.prompter != nil
}

// Authenticate runs the same verification flow as CreateAccount; the
// provider resolves a verified address to its existing account.
func (e *EmailMethod) Authenticate(ctx context.Context) (*token.Record, error) {
	return e.CreateAccount(ctx, CreateOptions{})
}

// CreateAccount verifies the address and creates (or resumes) its account.
func (e *EmailMethod) CreateAccount(ctx context.Context, opts CreateOptions) (*token.Record, error) {
	email := opts.Email
	if email == "" {
		var err error
		if email, err = e.prompter.PromptEmail(ctx); err != nil {
			return nil, fmt.Errorf("collecting email address: %w", err)
		}
	}
	if email == "" {
		return nil, fmt.Errorf("no email address provided")
	}

	if err := e.api.SendEmailCode(ctx, email); err != nil {
		return nil, err
	}

	code, err := e.prompter.PromptCode(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("collecting verification code: %w", err)
	}

	emailToken, err := e.api.VerifyEmailCode(ctx, email, code)
	if err != nil {
		return nil, err
	}

	return e.api.CreateAccount(ctx, emailToken)
}
