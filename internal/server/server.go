// AngelaMos | 2026
// server.go

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

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/events-api/internal/config"
	"github.com/carterperez-dev/templates/events-api/internal/core"
	"github.com/carterperez-dev/templates/events-api/internal/health"
)

const (
	APIPrefix         = "/api/v1"
	readHeaderTimeout = 10 * time.Second
)

// Config composes the HTTP surface. Middleware wraps every route,
// APIMiddleware only the routes Mount adds under APIPrefix.
type Config struct {
	ServerConfig  config.ServerConfig
	HealthHandler *health.Handler
	Responder     *core.Responder
	Logger        *slog.Logger

	Middleware    []func(http.Handler) http.Handler
	APIMiddleware []func(http.Handler) http.Handler
	Mount         func(api chi.Router)
}

type Server struct {
	http   *http.Server
	router *chi.Mux
	health *health.Handler
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rs := cfg.Responder
	if rs == nil {
		rs = core.NewResponder(logger, false)
	}

	router := chi.NewRouter()
	router.Use(cfg.Middleware...)
	router.NotFound(rs.NotFound)
	router.MethodNotAllowed(rs.MethodNotAllowed)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(router)
	}

	if cfg.Mount != nil {
		router.Route(APIPrefix, func(r chi.Router) {
			r.Use(cfg.APIMiddleware...)
			cfg.Mount(r)
		})
	}

	return &Server{
		http: &http.Server{
			Addr:              cfg.ServerConfig.Address(),
			Handler:           router,
			ReadTimeout:       cfg.ServerConfig.ReadTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      cfg.ServerConfig.WriteTimeout,
			IdleTimeout:       cfg.ServerConfig.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
		router: router,
		health: cfg.HealthHandler,
		logger: logger,
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops. Readiness turns on once the
// listener is bound. A graceful Shutdown returns nil.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if s.health != nil {
		s.health.SetReady(true)
	}
	s.logger.Info("server listening", "addr", ln.Addr().String())

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Addr is the bound address once Start is listening, otherwise the
// configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.http.Addr
}

// Shutdown flips readiness off, waits drainDelay for load balancers to
// notice, then drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context, drainDelay time.Duration) error {
	if s.health != nil {
		s.health.SetShutdown(true)
	}

	if drainDelay > 0 {
		s.logger.Info("draining before shutdown", "delay", drainDelay)
		select {
		case <-time.After(drainDelay):
		case <-ctx.Done():
		}
	}

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
