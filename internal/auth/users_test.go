package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/openlumen/lumen-core/internal/audit"
)

func TestCreateUser(t *testing.T) {
	db := testDB(t)
	svc, recorder := testService(t, db, ServiceConfig{})
	admin := createTestUser(t, db, "admin", "admin", true, PermUserAdmin)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, admin.ID, CreateUserInput{
		Username:    "operator",
		Description: "Sunday operator",
		Password:    "pw",
		Enabled:     true,
		Permissions: PermModifySelf | PermOperation,
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	// The new account can log in straight away.
	if _, err := svc.Authenticate(ctx, "operator", "pw"); err != nil {
		t.Errorf("Authenticate(new user) error = %v", err)
	}
	if user.Permissions != PermModifySelf|PermOperation {
		t.Errorf("Permissions = %#x, want MODIFY_SELF|OPERATION", user.Permissions)
	}

	actions := auditActions(t, db, recorder)
	if !hasAction(actions, audit.ActionUserCreate) {
		t.Errorf("audit actions %v missing %s", actions, audit.ActionUserCreate)
	}
}

func TestCreateUserValidation(t *testing.T) {
	db := testDB(t)
	svc, _ := testService(t, db, ServiceConfig{})
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "", CreateUserInput{Username: "bad name", Password: "pw"}); !errors.Is(err, ErrInvalidUsername) {
		t.Errorf("CreateUser(bad username) error = %v, want ErrInvalidUsername", err)
	}
	if _, err := svc.CreateUser(ctx, "", CreateUserInput{Username: "ok", Password: ""}); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("CreateUser(empty password) error = %v, want ErrEmptyPassword", err)
	}
}

func TestUpdateUserPartial(t *testing.T) {
	db := testDB(t)
	svc, _ := testService(t, db, ServiceConfig{})
	user := createTestUser(t, db, "alice", "pw", true, PermOperation)
	ctx := context.Background()

	desc := "renamed"
	enabled := false
	updated, err := svc.UpdateUser(ctx, "actor", user.ID, UpdateUserInput{
		Description: &desc,
		Enabled:     &enabled,
	})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	if updated.Username != "alice" {
		t.Errorf("Username changed unexpectedly: %q", updated.Username)
	}
	if updated.Description != "renamed" || updated.Enabled {
		t.Errorf("UpdateUser() not applied: %+v", updated)
	}
	if updated.Permissions != PermOperation {
		t.Errorf("Permissions changed unexpectedly: %#x", updated.Permissions)
	}
}

func TestDeleteUserRevokesSessions(t *testing.T) {
	db := testDB(t)
	svc, _ := testService(t, db, ServiceConfig{})
	user := createTestUser(t, db, "alice", "pw", true, PermOperation)
	ctx := context.Background()

	token, err := svc.Authenticate(ctx, "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteUser(ctx, "actor", user.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	if _, err := svc.Authorize(ctx, token, PermAny); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Authorize() after delete error = %v, want ErrSessionNotFound", err)
	}
	if err := svc.DeleteUser(ctx, "actor", user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("DeleteUser(again) error = %v, want ErrUserNotFound", err)
	}
}

func TestChangePasswordKeepsCallerSession(t *testing.T) {
	db := testDB(t)
	svc, _ := testService(t, db, ServiceConfig{})
	user := createTestUser(t, db, "alice", "old", true, PermModifySelf)
	ctx := context.Background()

	keep, err := svc.Authenticate(ctx, "alice", "old")
	if err != nil {
		t.Fatal(err)
	}
	other, err := svc.Authenticate(ctx, "alice", "old")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.ChangePassword(ctx, user.ID, user.ID, "new", keep); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	// Old password out, new password in.
	if _, err := svc.Authenticate(ctx, "alice", "old"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate(old) error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate(ctx, "alice", "new"); err != nil {
		t.Errorf("Authenticate(new) error = %v", err)
	}

	// Caller's session survives; the other one is revoked.
	if _, err := svc.Authorize(ctx, keep, PermAny); err != nil {
		t.Errorf("caller session rejected after password change: %v", err)
	}
	if _, err := svc.Authorize(ctx, other, PermAny); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("other session error = %v, want ErrSessionInvalid", err)
	}
}

func TestInvalidateUserSessions(t *testing.T) {
	db := testDB(t)
	svc, recorder := testService(t, db, ServiceConfig{})
	user := createTestUser(t, db, "alice", "pw", true, PermOperation)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Authenticate(ctx, "alice", "pw"); err != nil {
			t.Fatal(err)
		}
	}

	count, err := svc.InvalidateUserSessions(ctx, "admin-actor", user.ID)
	if err != nil {
		t.Fatalf("InvalidateUserSessions() error = %v", err)
	}
	if count != 2 {
		t.Errorf("revoked = %d, want 2", count)
	}

	if _, err := svc.InvalidateUserSessions(ctx, "admin-actor", "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("InvalidateUserSessions(missing) error = %v, want ErrUserNotFound", err)
	}

	actions := auditActions(t, db, recorder)
	if !hasAction(actions, audit.ActionUserSessionsInvalidate) {
		t.Errorf("audit actions %v missing %s", actions, audit.ActionUserSessionsInvalidate)
	}
}
