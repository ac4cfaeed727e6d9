package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openlumen/lumen-core/internal/auth"
)

type createUserRequest struct {
	Username    string `json:"username"`
	Description string `json:"description"`
	Password    string `json:"password"`
	Enabled     *bool  `json:"enabled,omitempty"`
	Permissions int64  `json:"permissions"`
}

type updateUserRequest struct {
	Username    *string `json:"username,omitempty"`
	Description *string `json:"description,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
	Permissions *int64  `json:"permissions,omitempty"`
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

// minPasswordLength applies to API-created accounts and password changes.
// The first-boot seed is exempt; it warns instead.
const minPasswordLength = 8

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// handleCreateUser creates a new user account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	caller := identityFromContext(r.Context())
	user, err := s.auth.CreateUser(r.Context(), caller.user.ID, auth.CreateUserInput{
		Username:    req.Username,
		Description: req.Description,
		Password:    req.Password,
		Enabled:     enabled,
		Permissions: req.Permissions,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidUsername):
			writeBadRequest(w, "invalid username: letters, digits, dot, underscore and hyphen only")
		case errors.Is(err, auth.ErrUsernameExists):
			writeConflict(w, "username already exists")
		default:
			s.logger.Error("create user failed", "error", err)
			writeInternalError(w, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// handleGetUser returns a single user by ID.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := s.auth.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user failed", "error", err)
		writeInternalError(w, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUser modifies a user's mutable fields.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller := identityFromContext(r.Context())

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// Self-protection: cannot disable yourself
	if req.Enabled != nil && !*req.Enabled && id == caller.user.ID {
		writeForbidden(w, "cannot disable your own account")
		return
	}

	// Self-protection: cannot drop your own user administration bit
	if req.Permissions != nil && id == caller.user.ID && !auth.Satisfies(*req.Permissions, auth.PermUserAdmin) {
		writeForbidden(w, "cannot remove your own user administration permission")
		return
	}

	user, err := s.auth.UpdateUser(r.Context(), caller.user.ID, id, auth.UpdateUserInput{
		Username:    req.Username,
		Description: req.Description,
		Enabled:     req.Enabled,
		Permissions: req.Permissions,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			writeNotFound(w, "user not found")
		case errors.Is(err, auth.ErrInvalidUsername):
			writeBadRequest(w, "invalid username: letters, digits, dot, underscore and hyphen only")
		case errors.Is(err, auth.ErrUsernameExists):
			writeConflict(w, "username already exists")
		default:
			s.logger.Error("update user failed", "error", err)
			writeInternalError(w, "failed to update user")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// handleDeleteUser removes a user account and, via the schema cascade,
// every session it holds.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller := identityFromContext(r.Context())

	// Cannot delete yourself
	if id == caller.user.ID {
		writeForbidden(w, "cannot delete your own account")
		return
	}

	if err := s.auth.DeleteUser(r.Context(), caller.user.ID, id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("delete user failed", "error", err)
		writeInternalError(w, "failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleInvalidateUserSessions revokes all of a user's sessions.
func (s *Server) handleInvalidateUserSessions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller := identityFromContext(r.Context())

	count, err := s.auth.InvalidateUserSessions(r.Context(), caller.user.ID, id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("invalidate user sessions failed", "error", err)
		writeInternalError(w, "failed to invalidate sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"revoked": count})
}

// handleChangePassword sets a new password for a user and revokes their
// other sessions. Callers without the user administration bit may only
// change their own password, and their current session survives the
// revocation sweep.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller := identityFromContext(r.Context())

	if id != caller.user.ID && !auth.Satisfies(caller.user.Permissions, auth.PermUserAdmin) {
		writeForbidden(w, "cannot change another user's password")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	keepToken := ""
	if id == caller.user.ID {
		keepToken = caller.token
	}

	if err := s.auth.ChangePassword(r.Context(), caller.user.ID, id, req.Password, keepToken); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("change password failed", "error", err)
		writeInternalError(w, "failed to change password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}
