// Package api provides the HTTP surface of portscope. It wires the
// scan coordinator, health endpoints, and Prometheus metrics behind a
// gorilla/mux router.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/portscope/portscope/internal/api/handlers"
	"github.com/portscope/portscope/internal/api/middleware"
	"github.com/portscope/portscope/internal/config"
	"github.com/portscope/portscope/internal/logging"
	"github.com/portscope/portscope/internal/metrics"
)

const defaultShutdownTimeout = 30 * time.Second

// Server represents the API server.
type Server struct {
	httpServer      *http.Server
	router          *mux.Router
	config          *config.Config
	logger          *logging.Logger
	metrics         *metrics.Metrics
	shutdownTimeout time.Duration
}

// New creates an API server around an already-assembled scanner.
func New(cfg *config.Config, scanner handlers.Scanner, m *metrics.Metrics) *Server {
	logger := logging.Default().WithComponent("api")
	router := mux.NewRouter()

	shutdown := cfg.API.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = defaultShutdownTimeout
	}

	server := &Server{
		router:          router,
		config:          cfg,
		logger:          logger,
		metrics:         m,
		shutdownTimeout: shutdown,
	}

	server.setupMiddleware()
	server.setupRoutes(scanner)

	server.httpServer = &http.Server{
		Addr:           net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port)),
		Handler:        router,
		ReadTimeout:    cfg.API.ReadTimeout,
		WriteTimeout:   cfg.API.WriteTimeout,
		IdleTimeout:    cfg.API.IdleTimeout,
		MaxHeaderBytes: cfg.API.MaxHeaderBytes,
	}

	return server
}

// Start runs the server until the context is canceled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server",
		"address", s.httpServer.Addr,
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped")
	return nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes(scanner handlers.Scanner) {
	scanHandler := handlers.NewScanHandler(scanner, s.logger)
	healthHandler := handlers.NewHealthHandler()

	apiRouter := s.router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/scan", scanHandler.CreateScan).Methods(http.MethodPost)
	apiRouter.HandleFunc("/liveness", healthHandler.Liveness).Methods(http.MethodGet)
	apiRouter.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	apiRouter.HandleFunc("/version", healthHandler.Version).Methods(http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
}

// setupMiddleware configures middleware for the API server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logging(s.logger))
	s.router.Use(middleware.SecurityHeaders())

	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}

	if s.config.API.EnableCORS {
		corsOrigins := gorillahandlers.AllowedOrigins(s.config.API.CORSOrigins)
		corsHeaders := gorillahandlers.AllowedHeaders([]string{"Content-Type"})
		corsMethods := gorillahandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"})
		s.router.Use(gorillahandlers.CORS(corsOrigins, corsHeaders, corsMethods))
	}

	s.router.Use(middleware.ContentType())

	if s.config.API.WriteTimeout > 0 {
		s.router.Use(middleware.RequestTimeout(s.config.API.WriteTimeout))
	}
}

// Router returns the configured router, mainly for tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Address returns the server listen address.
func (s *Server) Address() string {
	return s.httpServer.Addr
}
