// Package api provides the HTTP API server and handlers for the TagVault application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tagvaultapp/tagvault-server/internal/ratelimit"
	"github.com/tagvaultapp/tagvault-server/internal/search"
	"github.com/tagvaultapp/tagvault-server/internal/store"
)

const apiVersion = "1.0.0"

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    store.Store
	index    *search.Index
	services *Services
	router   *chi.Mux
	api      huma.API
	limiter  *ratelimit.KeyedLimiter
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// The search index may be nil when full-text search is disabled.
func NewServer(st store.Store, index *search.Index, services *Services, limiter *ratelimit.KeyedLimiter, logger *slog.Logger) *Server {
	s := &Server{
		store:    st,
		index:    index,
		services: services,
		router:   chi.NewRouter(),
		limiter:  limiter,
		logger:   logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("TagVault API", apiVersion)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerTagRoutes()
	s.registerRepositoryRoutes()
	s.registerSubscriptionRoutes()
	s.registerSyncRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if s.limiter != nil {
		s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
	}
}
