package app

import (
	"context"
	"fmt"

	"github.com/openeventsys/sessiond/internal/account"
	"github.com/openeventsys/sessiond/internal/authtransport"
	"github.com/openeventsys/sessiond/internal/regapi"
	"github.com/openeventsys/sessiond/internal/session"
)

// Core wires the session components once at startup and passes explicit
// references around; nothing here is a package-level singleton.
type Core struct {
	Config    *Config
	API       *regapi.Client
	Store     *session.Store
	Transport *authtransport.Transport
	Accounts  *account.Manager
}

// NewCore builds the component graph from configuration. No I/O happens
// until Load. The prompter may be nil for non-interactive contexts; the
// email method then reports itself unavailable.
func NewCore(cfg *Config, prompter account.EmailPrompter) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	persist, err := cfg.Auth.NewSessionStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create session storage: %w", err)
	}

	api, err := regapi.NewClient(cfg.Provider.BaseURL, cfg.Provider.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	store, err := session.New(api, persist)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	transport, err := authtransport.New(store, api.Origin(), nil)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create authorizing transport: %w", err)
	}

	methods, err := buildMethods(cfg, api, prompter)
	if err != nil {
		store.Close()
		return nil, err
	}

	accounts, err := account.NewManager(store, methods, account.WithMaxFailures(cfg.Auth.MaxFailures))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create account manager: %w", err)
	}

	return &Core{
		Config:    cfg,
		API:       api,
		Store:     store,
		Transport: transport,
		Accounts:  accounts,
	}, nil
}

// buildMethods instantiates the configured methods in priority order.
func buildMethods(cfg *Config, api *regapi.Client, prompter account.EmailPrompter) ([]account.Method, error) {
	var methods []account.Method
	for _, name := range cfg.Auth.Methods {
		switch name {
		case MethodWebAuthn:
			authenticator, err := account.NewSoftwareAuthenticator(cfg.Auth.KeyDir)
			if err != nil {
				return nil, fmt.Errorf("failed to create authenticator: %w", err)
			}
			credentials, err := account.NewFileCredentialStore(cfg.Auth.CredentialFile)
			if err != nil {
				return nil, fmt.Errorf("failed to create credential store: %w", err)
			}
			method, err := account.NewWebAuthnMethod(api, authenticator, credentials)
			if err != nil {
				return nil, err
			}
			methods = append(methods, method)
		case MethodEmail:
			method, err := account.NewEmailMethod(api, prompter)
			if err != nil {
				return nil, err
			}
			methods = append(methods, method)
		case MethodGuest:
			method, err := account.NewGuestMethod(api)
			if err != nil {
				return nil, err
			}
			methods = append(methods, method)
		default:
			return nil, fmt.Errorf("unsupported authentication method: %s", name)
		}
	}
	return methods, nil
}

// Load reads the persisted session (refreshing an expired one once) and
// subscribes to storage changes from other processes.
func (c *Core) Load(ctx context.Context) error {
	return c.Store.Load(ctx)
}

// Close releases the session store and its watchers.
func (c *Core) Close() {
	c.Store.Close()
}
