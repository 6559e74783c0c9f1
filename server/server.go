// Package server provides HTTP server management and lifecycle handling for the lab reference API.
// It includes server setup, middleware configuration, route management, and graceful shutdown.
package server

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/giygas/labref-api/config"
	"github.com/giygas/labref-api/handlers"
	"github.com/giygas/labref-api/interfaces"
	"github.com/giygas/labref-api/logging"
	"github.com/giygas/labref-api/metrics"
)

const profilingAddr = "localhost:6060"

// Server represents the HTTP server
type Server struct {
	server  *http.Server
	router  chi.Router
	handler interfaces.HTTPHandler
	config  *config.Config
	limiter *RateLimiter
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, handler interfaces.HTTPHandler) *Server {
	router := chi.NewRouter()

	server := &Server{
		server: &http.Server{
			Handler:        router,
			Addr:           cfg.Address + ":" + cfg.Port,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: int(cfg.MaxHeaderSize),
		},
		router:  router,
		handler: handler,
		config:  cfg,
		limiter: NewRateLimiter(defaultRate, defaultCapacity),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler { return s.router }

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	allowDirect := s.config.Env == config.EnvDevelopment || s.config.Env == config.EnvTest
	s.router.Use(BlockDirectAccessMiddleware(allowDirect)) // Put BEFORE RealIPMiddleware to see original RemoteAddr
	s.router.Use(RealIPMiddleware)
	s.router.Use(metrics.Metrics)
	s.router.Use(logging.LoggingMiddleware(logging.Logger()))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(s.limiter.Handler)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	h := s.handler

	s.router.Get("/", s.serveIndex)
	s.router.Get("/health", h.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/types", h.ServeTestTypes)
	s.router.Get("/types/{type}", h.ServeCatalog)

	s.router.Route("/biomaterials", func(r chi.Router) {
		r.Get("/", h.ServeBiomaterials)
		r.Get("/{type}", h.ServeCatalog)
		r.Get("/{type}/tests/{test}/reference", h.ServeReference)
		r.Post("/{type}/check", h.CheckValues)
	})

	s.router.Route("/studies", func(r chi.Router) {
		r.Get("/", h.ServeStudies)
		r.Get("/search", h.SearchStudies)
		r.Get("/{name}", h.ServeStudy)
		r.Post("/{name}/results", h.EvaluateStudy)
	})
}

// serveIndex lists the API routes
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600") // 1 hour
	handlers.RespondWithJSON(w, http.StatusOK, map[string]any{
		"service": "labref-api",
		"endpoints": []string{
			"GET /health",
			"GET /metrics",
			"GET /types",
			"GET /types/{type}",
			"GET /biomaterials",
			"GET /biomaterials/{type}",
			"GET /biomaterials/{type}/tests/{test}/reference?sex=&age=",
			"POST /biomaterials/{type}/check",
			"GET /studies",
			"GET /studies/search?test=",
			"GET /studies/{name}",
			"POST /studies/{name}/results",
		},
	})
}

// Start starts the server and blocks until it stops
func (s *Server) Start() error {
	// Start profiling server if in development mode
	if s.config.Env == config.EnvDevelopment {
		s.startProfilingServer()
	}

	logging.Info("Starting server", "address", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")
	defer s.limiter.Stop()

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}

// startProfilingServer starts the pprof profiling server in development mode
func (s *Server) startProfilingServer() {
	go func() {
		logging.Info("Profiling server started", "url", "http://"+profilingAddr+"/debug/pprof/")
		if err := http.ListenAndServe(profilingAddr, nil); err != nil {
			logging.Warn("Profiling server failed", "error", err)
		}
	}()
}
