package auth

import (
	"context"
	"fmt"

	"github.com/openlumen/lumen-core/internal/audit"
	"github.com/openlumen/lumen-core/internal/infrastructure/logging"
)

// SeedAdmin creates the configured default admin account on first boot if
// no users exist. The seeded account can change its own password and
// manage users; it deliberately does not get PermOperation, so driving the
// display requires an explicitly created operator account.
//
// Returns true when an account was created.
func SeedAdmin(ctx context.Context, users UserRepository, recorder *audit.Recorder, logger *logging.Logger, username, password string) (bool, error) {
	count, err := users.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &User{
		Username:     username,
		Description:  "Default administrator",
		PasswordHash: hash,
		Enabled:      true,
		Permissions:  PermModifySelf | PermUserAdmin,
	}

	if err := users.Create(ctx, admin); err != nil {
		return false, fmt.Errorf("creating seed admin: %w", err)
	}

	recorder.RecordData(admin.ID, audit.ActionDefaultUserCreated,
		map[string]any{"username": username})
	logger.Warn("default admin account created",
		"username", username,
		"action_required", "change this password immediately",
	)

	return true, nil
}
