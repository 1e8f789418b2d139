// Package agent runs the local authorizing proxy: a loopback HTTP server
// that forwards requests to the registration API with bearer authorization
// injected and the stale-token retry protocol applied. Local tooling talks
// to the agent and never sees a credential.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"
)

// Agent is the local forward proxy for the protected API.
type Agent struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Agent implements http.Handler
var _ http.Handler = (*Agent)(nil)

// New creates an Agent forwarding to the API at baseURL through the given
// authorizing transport.
func New(transport http.RoundTripper, baseURL string) (*Agent, error) {
	upstream, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if transport == nil {
		return nil, fmt.Errorf("missing transport")
	}

	forwarder := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = upstream.Scheme
			pr.Out.URL.Host = upstream.Host
			pr.Out.Host = upstream.Host
			// The authorizing transport owns this header; whatever the
			// local client sent must not reach the API.
			pr.Out.Header.Del("Authorization")
		},
		Transport: transport,
	}

	mux := http.NewServeMux()
	mux.Handle("/", applyMiddlewares(forwarder,
		Logging(slog.Default()),
		Recovery,
	))

	return &Agent{mux: mux}, nil
}

// ServeHTTP implements http.Handler interface
func (a *Agent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (a *Agent) Start(ctx context.Context, address string) (<-chan error, error) {
	// Startup phase: Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	a.server = &http.Server{
		Handler:      a,
		ReadTimeout:  30 * time.Second, // Inbound: Read entire client request (DoS protection against slow clients)
		WriteTimeout: 2 * time.Minute,  // Inbound: bounded, but generous enough for a blocked token wait
		IdleTimeout:  90 * time.Second, // Inbound: Keep-alive wait for next request from client
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := a.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (a *Agent) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}

	if err := a.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = a.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
