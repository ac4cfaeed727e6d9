package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openlumen/lumen-core/internal/audit"
	"github.com/openlumen/lumen-core/internal/auth"
	"github.com/openlumen/lumen-core/internal/display"
	"github.com/openlumen/lumen-core/internal/infrastructure/config"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

// testEnv bundles a running test server with handles into its backing
// stores.
type testEnv struct {
	srv      *Server
	ts       *httptest.Server
	db       *sql.DB
	recorder *audit.Recorder
	cell     *display.Cell
}

// newTestEnv builds a server backed by a temporary SQLite database and
// serves it over httptest.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "api_test.db")
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

	auditRepo := audit.NewSQLiteRepository(db)
	recorder := audit.NewRecorder(auditRepo, logging.Default())
	t.Cleanup(recorder.Close)

	authSvc := auth.NewService(
		auth.NewUserRepository(db),
		auth.NewSessionRepository(db),
		recorder,
		logging.Default(),
		auth.ServiceConfig{MaxAge: time.Hour, RenewThreshold: time.Minute},
	)

	cell := display.NewCell(display.NewState())

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS: config.WebSocketConfig{
			MaxMessageSize: 65536,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Static:  config.StaticConfig{Root: t.TempDir(), Index: "index.html", CacheMaxAge: 3600},
		Logger:  logging.Default(),
		Auth:    authSvc,
		Audit:   auditRepo,
		Cell:    cell,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ts := httptest.NewServer(srv.buildRouter(ctx))
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, ts: ts, db: db, recorder: recorder, cell: cell}
}

// createUser inserts a user with a real password hash, bypassing the API.
func (e *testEnv) createUser(t *testing.T, username, password string, perms int64) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &auth.User{
		Username:     username,
		PasswordHash: hash,
		Enabled:      true,
		Permissions:  perms,
	}
	if err := auth.NewUserRepository(e.db).Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return user
}

// login exchanges credentials for a bearer token via the API.
func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()

	status, body := e.request(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": username, "password": password})
	if status != http.StatusOK {
		t.Fatalf("login status = %d, body = %v", status, body)
	}
	token, ok := body["token"].(string)
	if !ok || token == "" {
		t.Fatalf("login response missing token: %v", body)
	}
	return token
}

// request performs a JSON request and decodes the response body.
// A nil body sends no payload; a nil JSON response yields a nil map.
func (e *testEnv) request(t *testing.T, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reqBody)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	data, _ := io.ReadAll(resp.Body) //nolint:errcheck // body errors surface as decode failures
	if len(data) > 0 {
		//nolint:errcheck // non-JSON bodies (static files) are fine as nil maps
		json.Unmarshal(data, &body)
	}
	return resp.StatusCode, body
}

func TestNewValidatesDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New(Deps{}) error = nil, want missing dependency error")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.request(t, http.MethodGet, "/api/v1/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("health status = %d, want 200", status)
	}
	if body["status"] != "ok" {
		t.Errorf("health status field = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("health version = %v, want test", body["version"])
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.request(t, http.MethodGet, "/api/v1/version", "", nil)
	if status != http.StatusOK {
		t.Fatalf("version status = %d, want 200", status)
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestAPIResponsesAreNoStore(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /api/v1/health: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestUnknownAPIRouteIsJSON404(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.request(t, http.MethodGet, "/api/v1/nonexistent", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if body["code"] != ErrCodeNotFound {
		t.Errorf("code = %v, want %s", body["code"], ErrCodeNotFound)
	}
}
