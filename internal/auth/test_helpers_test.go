package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openlumen/lumen-core/internal/audit"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

// testDB creates a temporary SQLite database with the auth schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "auth_test.db")
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		permissions INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE sessions (
		id TEXT PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		last_activity TEXT NOT NULL,
		valid INTEGER NOT NULL DEFAULT 1
	);
	CREATE TABLE audit_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		action TEXT NOT NULL,
		details TEXT,
		created_at TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying test schema: %v", err)
	}

	return db
}

// testService builds a Service backed by a fresh database. The recorder is
// closed (and therefore drained) during cleanup, so audit assertions after
// the test body must call drainAudit first.
func testService(t *testing.T, db *sql.DB, cfg ServiceConfig) (*Service, *audit.Recorder) {
	t.Helper()

	if cfg.MaxAge == 0 {
		cfg.MaxAge = time.Hour
	}
	if cfg.RenewThreshold == 0 {
		cfg.RenewThreshold = time.Minute
	}

	recorder := audit.NewRecorder(audit.NewSQLiteRepository(db), logging.Default())
	t.Cleanup(recorder.Close)

	svc := NewService(
		NewUserRepository(db),
		NewSessionRepository(db),
		recorder,
		logging.Default(),
		cfg,
	)
	return svc, recorder
}

// createTestUser inserts a user with a real password hash.
func createTestUser(t *testing.T, db *sql.DB, username, password string, enabled bool, perms int64) *User {
	t.Helper()

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &User{
		Username:     username,
		PasswordHash: hash,
		Enabled:      enabled,
		Permissions:  perms,
	}
	if err := NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return user
}

// backdateSession rewrites a session's last_activity so expiry and renewal
// paths can be exercised without a clock abstraction.
func backdateSession(t *testing.T, db *sql.DB, token string, age time.Duration) {
	t.Helper()

	past := time.Now().UTC().Add(-age).Format(time.RFC3339)
	result, err := db.Exec("UPDATE sessions SET last_activity = ? WHERE token = ?", past, token)
	if err != nil {
		t.Fatalf("backdating session: %v", err)
	}
	rows, _ := result.RowsAffected()
	if rows != 1 {
		t.Fatalf("backdating session: %d rows affected, want 1", rows)
	}
}

// auditActions drains the recorder and returns the recorded actions, oldest
// unordered (the audit table orders by timestamp which has second
// granularity in tests).
func auditActions(t *testing.T, db *sql.DB, recorder *audit.Recorder) []string {
	t.Helper()

	recorder.Close()

	rows, err := db.Query("SELECT action FROM audit_logs")
	if err != nil {
		t.Fatalf("querying audit actions: %v", err)
	}
	defer rows.Close()

	var actions []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			t.Fatalf("scanning audit action: %v", err)
		}
		actions = append(actions, a)
	}
	return actions
}

func hasAction(actions []string, want string) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}
