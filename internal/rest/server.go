// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	passkeyhttp "github.com/jeremyhahn/go-passkey/pkg/passkey/http"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
)

// Server is the passkey HTTP server. It mounts the ceremony endpoints
// under /api/auth along with health probes and the metrics endpoint.
type Server struct {
	server   *http.Server
	addr     string
	certFile string
	keyFile  string
	checker  *health.Checker
	limiter  *ratelimit.Limiter
	logger   *logging.Logger
}

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the interface to bind (empty for all interfaces)
	Host string

	// Port is the port to listen on (default: 8080)
	Port int

	// Service is the ceremony engine (required)
	Service *passkey.Service

	// Logger is the structured logger (optional, defaults to the
	// redacting production logger)
	Logger *logging.Logger

	// Checker receives liveness/readiness probes (optional)
	Checker *health.Checker

	// RateLimiter throttles the ceremony endpoints (optional)
	RateLimiter *ratelimit.Limiter

	// MetricsEnabled exposes promhttp at MetricsPath
	MetricsEnabled bool
	MetricsPath    string

	// CertFile and KeyFile enable TLS when both are set
	CertFile string
	KeyFile  string

	// SecureCookies marks ceremony and session cookies Secure.
	// Enabled automatically when TLS is configured.
	SecureCookies bool

	// SessionTTL bounds the session cookie lifetime
	SessionTTL time.Duration

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new passkey HTTP server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("passkey service is required")
	}

	// Set defaults
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = logging.DefaultLogger()
	}

	secure := cfg.SecureCookies
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		secure = true
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	server := &Server{
		addr:     addr,
		certFile: cfg.CertFile,
		keyFile:  cfg.KeyFile,
		checker:  cfg.Checker,
		limiter:  cfg.RateLimiter,
		logger:   log,
	}

	handlerOpts := []passkeyhttp.HandlerOption{
		passkeyhttp.WithLogger(log),
		passkeyhttp.WithCeremonyRecorder(metrics.CeremonyRecorder{}),
		passkeyhttp.WithSecureCookies(secure),
	}
	if cfg.SessionTTL > 0 {
		handlerOpts = append(handlerOpts, passkeyhttp.WithSessionTTL(cfg.SessionTTL))
	}
	ceremonies := passkeyhttp.NewHandler(cfg.Service, handlerOpts...)

	router := server.setupRouter(ceremonies, cfg)

	server.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter(ceremonies *passkeyhttp.Handler, cfg *Config) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(s.RecoveryMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)

	// Kubernetes-style health probes (no rate limiting)
	r.Get("/healthz", s.LivenessHandler)
	r.Get("/readyz", s.ReadinessHandler)
	r.Get("/health/startup", s.StartupHandler)

	if cfg.MetricsEnabled {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	// Ceremony endpoints, rate limited per client IP
	r.Route("/api/auth", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(s.limiter))
		}
		passkeyhttp.MountChi(r, ceremonies)
	})

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	if s.checker != nil {
		s.checker.MarkStarted()
	}

	if s.certFile != "" && s.keyFile != "" {
		s.logger.Info("Starting HTTPS server", "addr", s.addr)
		if err := s.server.ListenAndServeTLS(s.certFile, s.keyFile); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
		return nil
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if s.checker != nil {
		s.checker.MarkNotStarted()
	}

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", "error", err)
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

// Handler exposes the configured router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
