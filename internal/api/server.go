// Package api exposes the state container over HTTP: flag CRUD, override
// management, segment updates and evaluation.
package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/flagdeck/internal/state"
	"github.com/TimurManjosov/flagdeck/internal/telemetry"
)

type Server struct {
	container   *state.Container
	adminAPIKey string
	ratePerIP   int
	log         zerolog.Logger
}

func NewServer(c *state.Container, adminKey string, ratePerIP int, log zerolog.Logger) *Server {
	return &Server{container: c, adminAPIKey: adminKey, ratePerIP: ratePerIP, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(telemetry.Middleware)
	if s.ratePerIP > 0 {
		r.Use(httprate.LimitByIP(s.ratePerIP, time.Minute))
	}

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// public: read and evaluate
	r.Get("/v1/flags", s.handleListFlags)
	r.Get("/v1/flags/{id}", s.handleGetFlag)
	r.Get("/v1/segments", s.handleListSegments)
	r.Post("/v1/evaluate", s.handleEvaluate)

	// admin (protected): mutations
	r.Post("/v1/flags", s.authAdmin(s.handleUpsertFlag))
	r.Delete("/v1/flags/{id}", s.authAdmin(s.handleDeleteFlag))
	r.Put("/v1/overrides/{id}", s.authAdmin(s.handleSetOverride))
	r.Delete("/v1/overrides/{id}", s.authAdmin(s.handleRemoveOverride))
	r.Delete("/v1/overrides", s.authAdmin(s.handleClearOverrides))
	r.Put("/v1/segments", s.authAdmin(s.handleSetSegments))
	r.Put("/v1/context", s.authAdmin(s.handleSetContext))

	return r
}

// authAdmin guards mutating endpoints with a constant-time API key check.
func (s *Server) authAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}
