package api

import (
	"net/http"
	"testing"

	"github.com/openlumen/lumen-core/internal/auth"
)

func TestAuditRequiresSystemAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "operator", "password123", auth.PermOperation)
	token := env.login(t, "operator", "password123")

	status, _ := env.request(t, http.MethodGet, "/api/v1/audit", token, nil)
	if status != http.StatusForbidden {
		t.Errorf("audit as operator status = %d, want 403", status)
	}
}

func TestAuditList(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "sysadmin", "password123", auth.PermSystemAdmin)
	token := env.login(t, "sysadmin", "password123")

	// A failed login to have something attributable in the trail.
	env.request(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "sysadmin", "password": "wrong"})

	// Drain the async recorder so both events are visible.
	env.recorder.Close()

	status, body := env.request(t, http.MethodGet, "/api/v1/audit", token, nil)
	if status != http.StatusOK {
		t.Fatalf("audit status = %d, want 200", status)
	}

	entries, ok := body["entries"].([]any)
	if !ok || len(entries) < 2 {
		t.Fatalf("audit entries = %v, want at least login_success and login_failed", body["entries"])
	}

	actions := make(map[string]bool)
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			t.Fatalf("entry is not an object: %v", e)
		}
		action, _ := entry["action"].(string) //nolint:errcheck // missing action fails the checks below
		actions[action] = true
	}
	if !actions["login_success"] {
		t.Error("audit trail missing login_success")
	}
	if !actions["login_failed"] {
		t.Error("audit trail missing login_failed")
	}
}

func TestAuditFilterByAction(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "sysadmin", "password123", auth.PermSystemAdmin)
	token := env.login(t, "sysadmin", "password123")

	env.request(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "sysadmin", "password": "wrong"})
	env.recorder.Close()

	status, body := env.request(t, http.MethodGet, "/api/v1/audit?action=login_failed", token, nil)
	if status != http.StatusOK {
		t.Fatalf("audit status = %d, want 200", status)
	}

	entries, _ := body["entries"].([]any) //nolint:errcheck // nil slice fails the length check
	if len(entries) != 1 {
		t.Fatalf("filtered entries = %d, want 1", len(entries))
	}
	entry := entries[0].(map[string]any)
	if entry["action"] != "login_failed" {
		t.Errorf("action = %v, want login_failed", entry["action"])
	}
}

func TestAuditPaginationValidation(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "sysadmin", "password123", auth.PermSystemAdmin)
	token := env.login(t, "sysadmin", "password123")

	for _, q := range []string{"?limit=0", "?limit=abc", "?offset=-1"} {
		status, _ := env.request(t, http.MethodGet, "/api/v1/audit"+q, token, nil)
		if status != http.StatusBadRequest {
			t.Errorf("audit%s status = %d, want 400", q, status)
		}
	}
}
