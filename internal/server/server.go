package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/chatter/internal/config"
	"github.com/nfrund/chatter/internal/handlers"
	"github.com/nfrund/chatter/internal/metrics"
	"github.com/nfrund/chatter/internal/middleware"
	"github.com/nfrund/chatter/internal/module"
	"github.com/nfrund/chatter/internal/registry"
)

const shutdownTimeout = 10 * time.Second

// Server holds the dependencies for the HTTP server.
type Server struct {
	E        *echo.Echo
	Cfg      *config.Config
	Registry *registry.Registry
	modules  []module.Module
	booted   []module.Module
}

// New creates a server with the shared middleware stack. Modules are
// registered and booted by Boot.
func New(cfg *config.Config, reg *registry.Registry, modules []module.Module) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()

	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(echomw.Recover())
	setupErrorHandling(e)

	if m, ok := registry.Get(reg, registry.MetricsKey); ok && m != nil {
		setupMetrics(e, m)
	}

	return &Server{
		E:        e,
		Cfg:      cfg,
		Registry: reg,
		modules:  modules,
	}
}

func setupMetrics(e *echo.Echo, m *metrics.Metrics) {
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "chatter",
		Subsystem:  "http",
		Registerer: m.Registry(),
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/ws"
		},
	}))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: m.Registry(),
	}))
}

// Boot registers every module, then boots them in order. Modules that
// booted successfully are shut down by Shutdown.
func (s *Server) Boot(ctx context.Context) error {
	for _, m := range s.modules {
		slog.Info("Registering module", "module", m.Name())
		if err := m.Register(s.Registry); err != nil {
			return fmt.Errorf("register module %s: %w", m.Name(), err)
		}
	}
	slog.Info("Registry ready", "services", s.Registry.Keys())

	root := s.E.Group("")
	for _, m := range s.modules {
		if err := m.Boot(ctx, root, s.Registry); err != nil {
			return fmt.Errorf("boot module %s: %w", m.Name(), err)
		}
		s.booted = append(s.booted, m)
	}
	return nil
}

// Start boots the modules and serves until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Boot(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", s.Cfg.Addr())
		if err := s.E.Start(s.Cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the listener and then the modules in reverse boot order.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down server...")
	var errs []error
	if err := s.E.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	for i := len(s.booted) - 1; i >= 0; i-- {
		m := s.booted[i]
		if err := m.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown module %s: %w", m.Name(), err))
		}
	}
	s.booted = nil
	return errors.Join(errs...)
}
