// Package api provides the reference storefront HTTP server: the exact
// cart/favorites/revalidate contract the sync client consumes, backed by the
// BadgerDB backend. Session handling is out of scope; the caller's identity
// arrives in the X-User-ID header.
package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/solestoreapp/solestore-client/internal/api/backend"
	"github.com/solestoreapp/solestore-client/internal/errors"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	backend *backend.Backend
	router  *chi.Mux
	api     huma.API
	logger  *logger.Logger
}

// NewServer creates the reference server with all routes configured.
func NewServer(b *backend.Backend, log *logger.Logger) *Server {
	s := &Server{
		backend: b,
		router:  chi.NewRouter(),
		logger:  log,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Solestore Dev API", "1.0.0")
	s.api = humachi.New(s.router, humaConfig)

	s.registerCartRoutes()
	s.registerFavoritesRoutes()
	s.registerRevalidateRoutes()

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
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		MaxAge:         300,
	}))
}

// requireUser validates the X-User-ID header. The contract returns 401 for
// unauthenticated requests; anonymous affordances never reach the server.
func requireUser(userID int64) error {
	if userID <= 0 {
		return huma.Error401Unauthorized("missing or invalid user session")
	}
	return nil
}

// mapError translates backend domain errors onto huma status errors.
func mapError(err error) error {
	var domainErr *errors.Error
	if errors.As(err, &domainErr) {
		return huma.NewError(domainErr.HTTPStatus(), domainErr.Message)
	}
	return huma.Error500InternalServerError("internal error", err)
}
