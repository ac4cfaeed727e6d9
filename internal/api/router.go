package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openlumen/lumen-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
// ctx is the server's run context; display sockets are torn down when it
// is cancelled.
func (s *Server) buildRouter(ctx context.Context) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.noStoreMiddleware)

		// Health check (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)

		// Auth endpoints. Logout accepts any token, even a revoked one.
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requirePermission(auth.PermAny))
			r.Get("/auth/me", s.handleMe)
		})

		// User management
		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermUserAdmin))
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
				r.Get("/{id}", s.handleGetUser)
				r.Patch("/{id}", s.handleUpdateUser)
				r.Delete("/{id}", s.handleDeleteUser)
				r.Delete("/{id}/sessions", s.handleInvalidateUserSessions)
			})

			// Password changes: admins for anyone, users for themselves.
			// The handler enforces the self-only restriction.
			r.Group(func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermModifySelf | auth.PermUserAdmin))
				r.Put("/{id}/password", s.handleChangePassword)
			})
		})

		// Audit trail
		r.Group(func(r chi.Router) {
			r.Use(s.requirePermission(auth.PermSystemAdmin))
			r.Get("/audit", s.handleListAudit)
		})

		// Display state socket. The connection starts unauthenticated;
		// writes authorise per message inside the protocol.
		r.Get("/display", func(w http.ResponseWriter, req *http.Request) {
			s.handleDisplaySocket(ctx, w, req)
		})
	})

	// Everything else serves the built web client.
	r.NotFound(s.handleStatic)

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"viewers": s.ViewerCount(),
	})
}

// handleVersion returns the server version.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}
