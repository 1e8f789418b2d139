package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/openeventsys/sessiond/internal/account"
	"github.com/openeventsys/sessiond/internal/app"
	"github.com/openeventsys/sessiond/internal/observability"
	"github.com/openeventsys/sessiond/internal/regapi"
	"github.com/openeventsys/sessiond/internal/session"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "establish an identity and persist the session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "email",
				Usage: "email address to verify (email method)",
			},
			&cli.StringFlag{
				Name:  "method",
				Usage: "restrict to a single method (webauthn|email|guest)",
			},
			&cli.BoolFlag{
				Name:  "new",
				Usage: "create a new account instead of resuming one",
			},
		},
		Action: loginAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = observability.Shutdown(context.Background()) }()

	if method := cmd.String("method"); method != "" {
		cfg.Auth.Methods = []string{method}
	}

	core, err := app.NewCore(cfg, &terminalPrompter{})
	if err != nil {
		return fmt.Errorf("failed to create core: %w", err)
	}
	defer core.Close()

	if err := core.Load(ctx); err != nil {
		return err
	}

	if !cmd.Bool("new") {
		rec, err := core.Accounts.Authenticate(ctx)
		if err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		if rec != nil {
			fmt.Printf("signed in as %s\n", describeIdentity(rec.AccountID, rec.Email))
			return nil
		}
	}

	rec, err := core.Accounts.CreateAccount(ctx, account.CreateOptions{Email: cmd.String("email")})
	if err != nil {
		return err
	}
	fmt.Printf("account created: %s\n", describeIdentity(rec.AccountID, rec.Email))
	return nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "discard the current session",
		Action: logoutAction,
	}
}

func logoutAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = observability.Shutdown(context.Background()) }()

	core, err := app.NewCore(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create core: %w", err)
	}
	defer core.Close()

	if err := core.Store.SetAuthInfo(ctx, nil); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	fmt.Println("signed out")
	return nil
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:   "token",
		Usage:  "print a valid access token, refreshing if needed",
		Action: tokenAction,
	}
}

func tokenAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = observability.Shutdown(context.Background()) }()

	core, err := app.NewCore(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create core: %w", err)
	}
	defer core.Close()

	if err := core.Load(ctx); err != nil {
		return err
	}
	if core.Store.Status() == session.StateUnauthenticated {
		return fmt.Errorf("not signed in (run: sessiond login)")
	}

	// Bounded wait: without it an unrecoverable session would block forever.
	tokenCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rec, err := core.Store.GetValidToken(tokenCtx)
	if err != nil {
		return fmt.Errorf("no valid token available: %w", err)
	}
	fmt.Println(rec.AccessToken)
	return nil
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "show the current session and account",
		Action: statusAction,
	}
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = observability.Shutdown(context.Background()) }()

	core, err := app.NewCore(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create core: %w", err)
	}
	defer core.Close()

	if err := core.Load(ctx); err != nil {
		return err
	}

	state := core.Store.Status()
	fmt.Printf("session: %s\n", state)
	if state == session.StateUnauthenticated {
		return nil
	}

	// Ask the provider who we are, through the authorizing transport so the
	// answer reflects the token actually in use.
	authorized, err := regapi.NewClient(cfg.Provider.BaseURL, cfg.Provider.ClientID,
		regapi.WithHTTPClient(core.Transport.Client()))
	if err != nil {
		return err
	}

	infoCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	info, err := authorized.CurrentAuth(infoCtx)
	if err != nil {
		return fmt.Errorf("fetching account info: %w", err)
	}
	fmt.Printf("account: %s\n", describeIdentity(info.ID, info.Email))
	if info.Scope != "" {
		fmt.Printf("scope: %s\n", info.Scope)
	}
	return nil
}

func describeIdentity(accountID, email string) string {
	switch {
	case email != "" && accountID != "":
		return fmt.Sprintf("%s (%s)", email, accountID)
	case email != "":
		return email
	case accountID != "":
		return accountID
	default:
		return "guest"
	}
}
