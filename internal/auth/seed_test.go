package auth

import (
	"context"
	"testing"

	"github.com/openlumen/lumen-core/internal/audit"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

func TestSeedAdminOnEmptyDatabase(t *testing.T) {
	db := testDB(t)
	users := NewUserRepository(db)
	recorder := audit.NewRecorder(audit.NewSQLiteRepository(db), logging.Default())
	ctx := context.Background()

	created, err := SeedAdmin(ctx, users, recorder, logging.Default(), "admin", "admin")
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if !created {
		t.Fatal("SeedAdmin() = false on empty database, want true")
	}

	admin, err := users.GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetByUsername(admin) error = %v", err)
	}
	if !admin.Enabled {
		t.Error("seeded admin is disabled")
	}
	if admin.Permissions != PermModifySelf|PermUserAdmin {
		t.Errorf("seeded admin permissions = %#x, want MODIFY_SELF|USER_ADMIN", admin.Permissions)
	}

	ok, err := VerifyPassword("admin", admin.PasswordHash)
	if err != nil || !ok {
		t.Errorf("seeded admin password does not verify: ok=%v err=%v", ok, err)
	}

	recorder.Close()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM audit_logs WHERE action = ?", audit.ActionDefaultUserCreated).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("default_user_created audit entries = %d, want 1", count)
	}
}

func TestSeedAdminSkippedWhenUsersExist(t *testing.T) {
	db := testDB(t)
	createTestUser(t, db, "existing", "pw", true, 0)
	users := NewUserRepository(db)
	recorder := audit.NewRecorder(audit.NewSQLiteRepository(db), logging.Default())
	t.Cleanup(recorder.Close)

	created, err := SeedAdmin(context.Background(), users, recorder, logging.Default(), "admin", "admin")
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if created {
		t.Error("SeedAdmin() = true with existing users, want false")
	}
}
