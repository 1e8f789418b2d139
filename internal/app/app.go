package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/openeventsys/sessiond/internal/agent"
)

// App orchestrates the lifecycle of the local agent and related services.
type App struct {
	cfg   *Config
	core  *Core
	agent *agent.Agent
}

// New creates a new App instance around an already wired Core.
func New(cfg *Config, core *Core) (*App, error) {
	if core == nil {
		return nil, fmt.Errorf("missing core")
	}

	agentServer, err := agent.New(core.Transport, cfg.Provider.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	return &App{
		cfg:   cfg,
		core:  core,
		agent: agentServer,
	}, nil
}

// Start loads the persisted session, starts all services, and blocks until
// shutdown is triggered. Uses errgroup for runtime error monitoring and
// shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	if err := a.core.Load(ctx); err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	slog.InfoContext(ctx, "session loaded", "state", a.core.Store.Status().String())

	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting agent", "address", address)
	agentErrCh, err := a.agent.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("agent startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.agent.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-agentErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "agent runtime error", "error", err)
				return fmt.Errorf("agent: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	a.core.Close()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
