// Package server owns the HTTP listener lifecycle and the route table.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// ShutdownFunc stops a component, giving up when ctx expires.
type ShutdownFunc func(ctx context.Context) error

// Config holds listener and timeout settings.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type component struct {
	name string
	stop ShutdownFunc
}

// Server runs the API until its context ends, then stops the listener and
// every registered component within one shutdown budget.
type Server struct {
	http    *http.Server
	budget  time.Duration
	logger  *slog.Logger
	mu      sync.Mutex
	members []component
}

func New(handler http.Handler, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       2 * cfg.WriteTimeout,
		},
		budget: cfg.ShutdownTimeout,
		logger: logger.With("component", "server"),
	}
}

// OnShutdown registers a component to stop after the HTTP server has
// drained. Components stop in reverse registration order.
func (s *Server) OnShutdown(name string, fn ShutdownFunc) {
	s.mu.Lock()
	s.members = append(s.members, component{name: name, stop: fn})
	s.mu.Unlock()
}

// Run listens on the configured port and calls Serve. If the port cannot be
// bound, registered components are still stopped.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return errors.Join(fmt.Errorf("listen: %w", err), s.shutdown())
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is done or the listener fails.
// Registered components are stopped in both cases.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	failed := make(chan error, 1)
	go func() {
		s.logger.Info("server_starting", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	select {
	case err := <-failed:
		return errors.Join(fmt.Errorf("server error: %w", err), s.shutdown())
	case <-ctx.Done():
		s.logger.Info("shutdown_requested", "reason", context.Cause(ctx).Error())
		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.budget)
	defer cancel()

	s.logger.Info("http_server_stopping", "timeout", s.budget)
	s.http.SetKeepAlivesEnabled(false)

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("http_server_shutdown_failed", "error", err)
		errs = append(errs, err)
	}

	s.mu.Lock()
	members := append([]component(nil), s.members...)
	s.mu.Unlock()

	for i := len(members) - 1; i >= 0; i-- {
		if err := s.stopComponent(ctx, members[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		s.logger.Error("shutdown_completed_with_errors", "error_count", len(errs))
		return errors.Join(errs...)
	}
	s.logger.Info("server_stopped")
	return nil
}

func (s *Server) stopComponent(ctx context.Context, c component) error {
	s.logger.Info("component_stopping", "name", c.name)
	if err := c.stop(ctx); err != nil {
		s.logger.Error("component_shutdown_failed", "name", c.name, "error", err)
		return fmt.Errorf("%s: %w", c.name, err)
	}
	s.logger.Info("component_stopped", "name", c.name)
	return nil
}
