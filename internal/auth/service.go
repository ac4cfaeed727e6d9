package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openlumen/lumen-core/internal/audit"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

// ServiceConfig carries the session timing knobs.
type ServiceConfig struct {
	// MaxAge is how long a session may sit idle before it expires.
	MaxAge time.Duration

	// RenewThreshold is the minimum session age before last_activity is
	// rewritten on a successful authorisation. Capped at MaxAge/2 so
	// short-lived sessions still renew.
	RenewThreshold time.Duration
}

// Service is the session authority: it exchanges credentials for bearer
// tokens, resolves tokens back to users, and revokes sessions. Every
// failure is recorded in the audit trail with a machine-readable reason.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	recorder *audit.Recorder
	logger   *logging.Logger

	maxAge     time.Duration
	renewAfter time.Duration
}

// NewService creates the session authority.
func NewService(users UserRepository, sessions SessionRepository, recorder *audit.Recorder, logger *logging.Logger, cfg ServiceConfig) *Service {
	renewAfter := cfg.RenewThreshold
	if half := cfg.MaxAge / 2; half < renewAfter {
		renewAfter = half
	}

	return &Service{
		users:      users,
		sessions:   sessions,
		recorder:   recorder,
		logger:     logger.With("component", "auth"),
		maxAge:     cfg.MaxAge,
		renewAfter: renewAfter,
	}
}

// Authenticate verifies a username/password pair and, on success, opens a
// new session and returns its bearer token. A user may hold any number of
// concurrent sessions.
//
// Failures return ErrUserNotFound, ErrUserDisabled or
// ErrInvalidCredentials; callers presenting these to clients should
// collapse them into a single uniform rejection so usernames cannot be
// probed. The distinction is preserved in the audit trail.
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.recorder.RecordData("", audit.ActionLoginFailed,
				map[string]any{"username": username, "reason": "not_found"})
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("looking up user: %w", err)
	}

	if !user.Enabled {
		s.recorder.RecordData(user.ID, audit.ActionLoginFailed,
			map[string]any{"username": username, "reason": "user_disabled"})
		return "", ErrUserDisabled
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		s.recorder.RecordData(user.ID, audit.ActionLoginFailed,
			map[string]any{"username": username, "reason": "password_incorrect"})
		return "", ErrInvalidCredentials
	}

	token, err := NewSessionToken()
	if err != nil {
		return "", err
	}

	session := &Session{
		Token:  token,
		UserID: user.ID,
		Valid:  true,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", err
	}

	s.recorder.RecordData(user.ID, audit.ActionLoginSuccess,
		map[string]any{"username": username, "session_id": session.ID})
	s.logger.Info("login", "user_id", user.ID, "username", username)

	return token, nil
}

// Authorize resolves a bearer token to its user and checks that the user
// holds at least one of the required permission bits (see Satisfies).
//
// The session's activity timestamp is renewed lazily: only when the
// session is older than min(RenewThreshold, MaxAge/2), so a busy client
// does not rewrite the row on every request. Expiry is computed from
// last_activity at call time; nothing scans for stale sessions.
func (s *Service) Authorize(ctx context.Context, token string, required int64) (*User, error) {
	now := time.Now().UTC()

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			s.recorder.RecordData("", audit.ActionAuthorizeFailed,
				map[string]any{"reason": "not_found"})
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	if !session.Valid {
		s.recorder.RecordData(session.UserID, audit.ActionAuthorizeFailed,
			map[string]any{"reason": "session_invalid", "session_id": session.ID})
		return nil, ErrSessionInvalid
	}

	age := now.Sub(session.LastActivity)
	if age > s.maxAge {
		s.recorder.RecordData(session.UserID, audit.ActionAuthorizeFailed,
			map[string]any{"reason": "session_expired", "session_id": session.ID})
		return nil, ErrSessionExpired
	}

	if age > s.renewAfter {
		if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
			return nil, fmt.Errorf("renewing session: %w", err)
		}
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.recorder.RecordData("", audit.ActionAuthorizeFailed,
				map[string]any{"reason": "session_user_not_found", "session_id": session.ID})
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("looking up session user: %w", err)
	}

	if !user.Enabled {
		s.recorder.RecordData(user.ID, audit.ActionAuthorizeFailed,
			map[string]any{"reason": "user_disabled", "session_id": session.ID})
		return nil, ErrUserDisabled
	}

	if !Satisfies(user.Permissions, required) {
		s.recorder.RecordData(user.ID, audit.ActionAuthorizeFailed,
			map[string]any{"reason": "invalid_role", "session_id": session.ID})
		return nil, ErrForbidden
	}

	return user, nil
}

// Logout revokes the session behind the given token. Unknown tokens are a
// no-op; the event is still audited, unattributed.
func (s *Service) Logout(ctx context.Context, token string) error {
	userID := ""
	session, err := s.sessions.GetByToken(ctx, token)
	switch {
	case err == nil:
		userID = session.UserID
	case errors.Is(err, ErrSessionNotFound):
		// fall through, audit unattributed
	default:
		return fmt.Errorf("looking up session: %w", err)
	}

	if session != nil {
		if err := s.sessions.Invalidate(ctx, token); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return err
		}
	}

	s.recorder.Record(userID, audit.ActionLogout)
	return nil
}

// InvalidateSessions revokes every session belonging to the user. When
// exceptToken is non-empty that one session survives, which lets a user
// change their password without logging themselves out.
func (s *Service) InvalidateSessions(ctx context.Context, userID, exceptToken string) (int, error) {
	count, err := s.sessions.InvalidateAllForUser(ctx, userID, exceptToken)
	if err != nil {
		return 0, err
	}

	action := audit.ActionSessionInvalidateAll
	if exceptToken != "" {
		action = audit.ActionSessionInvalidateExcept
	}
	s.recorder.RecordData(userID, action, map[string]any{"revoked": count})

	return count, nil
}
