package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openlumen/lumen-core/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// handleLogin exchanges credentials for a bearer token.
//
// Every authentication failure returns the same 401 body, so the response
// cannot be used to probe which usernames exist or which accounts are
// disabled. The audit trail keeps the distinction.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	token, err := s.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound),
			errors.Is(err, auth.ErrUserDisabled),
			errors.Is(err, auth.ErrInvalidCredentials):
			if s.influx != nil {
				s.influx.CountAuthFailure("login")
			}
			writeUnauthorized(w, "invalid credentials")
		default:
			s.logger.Error("login failed", "error", err)
			writeInternalError(w, "login failed")
		}
		return
	}

	// Resolve the fresh token back to its user for the response body.
	user, err := s.auth.Authorize(r.Context(), token, auth.PermAny)
	if err != nil {
		s.logger.Error("resolving fresh session failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// handleLogout revokes the caller's session. Revoking an unknown or
// already-revoked token succeeds; the client's goal is a dead token
// either way.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeUnauthorized(w, "missing bearer token")
		return
	}

	if err := s.auth.Logout(r.Context(), token); err != nil {
		s.logger.Error("logout failed", "error", err)
		writeInternalError(w, "logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the authenticated caller's account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	writeJSON(w, http.StatusOK, id.user)
}
