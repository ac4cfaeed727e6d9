package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionRepository defines the interface for bearer session persistence.
//
// Sessions are never deleted. Revocation flips the valid flag, which keeps
// historical tokens resolvable for the audit trail.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Invalidate(ctx context.Context, token string) error
	InvalidateAllForUser(ctx context.Context, userID, exceptToken string) (int, error)
}

// SQLiteSessionRepository implements SessionRepository using SQLite.
type SQLiteSessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SQLite-backed session repository.
func NewSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

// Create inserts a new session row. The ID is generated if empty and
// LastActivity defaults to now.
func (r *SQLiteSessionRepository) Create(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.LastActivity.IsZero() {
		session.LastActivity = time.Now().UTC().Truncate(time.Second)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, token, user_id, last_activity, valid)
		 VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.Token, session.UserID,
		session.LastActivity.Format(time.RFC3339), boolToInt(session.Valid),
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	return nil
}

// GetByToken retrieves a session by its bearer token. Invalid sessions are
// still returned; interpreting the valid flag is the service's job.
func (r *SQLiteSessionRepository) GetByToken(ctx context.Context, token string) (*Session, error) {
	var s Session
	var valid int
	var lastActivity string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, token, user_id, last_activity, valid FROM sessions WHERE token = ?",
		token,
	).Scan(&s.ID, &s.Token, &s.UserID, &lastActivity, &valid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}

	s.Valid = valid != 0
	s.LastActivity, err = time.Parse(time.RFC3339, lastActivity)
	if err != nil {
		return nil, fmt.Errorf("parsing session timestamp %q: %w", lastActivity, err)
	}

	return &s, nil
}

// Touch updates a session's last activity timestamp.
func (r *SQLiteSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Invalidate marks a single session as no longer valid.
func (r *SQLiteSessionRepository) Invalidate(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET valid = 0 WHERE token = ?", token,
	)
	if err != nil {
		return fmt.Errorf("invalidating session: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// InvalidateAllForUser marks every session belonging to the user as
// invalid, sparing exceptToken when non-empty. Returns the number of
// sessions revoked.
func (r *SQLiteSessionRepository) InvalidateAllForUser(ctx context.Context, userID, exceptToken string) (int, error) {
	var result sql.Result
	var err error

	if exceptToken == "" {
		result, err = r.db.ExecContext(ctx,
			"UPDATE sessions SET valid = 0 WHERE user_id = ? AND valid = 1", userID)
	} else {
		result, err = r.db.ExecContext(ctx,
			"UPDATE sessions SET valid = 0 WHERE user_id = ? AND valid = 1 AND token != ?",
			userID, exceptToken)
	}
	if err != nil {
		return 0, fmt.Errorf("invalidating sessions: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return int(rows), nil
}
