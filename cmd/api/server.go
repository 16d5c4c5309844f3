package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hibaMouhoub2/prospection-app/auth"
	"github.com/hibaMouhoub2/prospection-app/prospection"
	"github.com/hibaMouhoub2/prospection-app/structure"
)

// Server holds the services behind the HTTP surface.
type Server struct {
	authService        *auth.Service
	gate               *auth.Gate
	prospectionService *prospection.Service
	structureService   *structure.Service
	corsOrigins        []string
	// health reports whether dependencies are reachable; nil means always healthy.
	health  func(ctx context.Context) error
	metrics http.Handler
}

// Handler builds the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(bodySizeLimitMiddleware)
	if s.gate != nil {
		r.Use(s.gate.Middleware)
	}

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	s.mountRoutes(r)
	r.Route("/api", s.mountRoutes)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})
	return r
}

func (s *Server) mountRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.Get("/ping", s.handlePing)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)

		r.With(auth.RequirePrincipal(http.HandlerFunc(writeUnauthenticated))).Get("/me", s.handleMe)
	})

	r.Route("/structure", func(r chi.Router) {
		r.Get("/regions", s.handleListRegions)
		r.Get("/supervisions", s.handleListSupervisions)
		r.Get("/branches", s.handleListBranches)
	})

	r.Route("/prospections", func(r chi.Router) {
		r.Use(auth.RequirePrincipal(http.HandlerFunc(writeUnauthenticated)))

		r.Get("/", s.handleListProspections)
		r.Post("/", s.handleCreateProspection)
		r.Get("/mine", s.handleListMyProspections)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProspection)
			r.Get("/history", s.handleProspectionHistory)
			r.Post("/assign", s.handleAssignProspection)
			r.Post("/status", s.handleTransitionProspection)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "dependency unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
