package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/openlumen/lumen-core/internal/audit"
)

// ErrInvalidUsername is returned when a username fails format validation.
var ErrInvalidUsername = errors.New("invalid username")

// ErrEmptyPassword is returned when a create or password change carries an
// empty password.
var ErrEmptyPassword = errors.New("password must not be empty")

// CreateUserInput carries the fields for a new account.
type CreateUserInput struct {
	Username    string
	Description string
	Password    string
	Enabled     bool
	Permissions int64
}

// UpdateUserInput carries the mutable account fields. Nil pointers leave
// the current value untouched.
type UpdateUserInput struct {
	Username    *string
	Description *string
	Enabled     *bool
	Permissions *int64
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.users.List(ctx)
}

// GetUser returns a single account by ID.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateUser creates an account on behalf of actorID.
func (s *Service) CreateUser(ctx context.Context, actorID string, input CreateUserInput) (*User, error) {
	if !IsValidUsername(input.Username) {
		return nil, ErrInvalidUsername
	}
	if input.Password == "" {
		return nil, ErrEmptyPassword
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:     input.Username,
		Description:  input.Description,
		PasswordHash: hash,
		Enabled:      input.Enabled,
		Permissions:  input.Permissions,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.recorder.RecordData(actorID, audit.ActionUserCreate,
		map[string]any{"user_id": user.ID, "username": user.Username})
	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "actor", actorID)

	return user, nil
}

// UpdateUser modifies an account's mutable fields on behalf of actorID.
func (s *Service) UpdateUser(ctx context.Context, actorID, id string, input UpdateUserInput) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		if !IsValidUsername(*input.Username) {
			return nil, ErrInvalidUsername
		}
		user.Username = *input.Username
	}
	if input.Description != nil {
		user.Description = *input.Description
	}
	if input.Enabled != nil {
		user.Enabled = *input.Enabled
	}
	if input.Permissions != nil {
		user.Permissions = *input.Permissions
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.recorder.RecordData(actorID, audit.ActionUserUpdate,
		map[string]any{"user_id": user.ID, "username": user.Username})

	return user, nil
}

// DeleteUser removes an account on behalf of actorID. The account's
// sessions go with it via the schema's cascade.
func (s *Service) DeleteUser(ctx context.Context, actorID, id string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.recorder.RecordData(actorID, audit.ActionUserDelete,
		map[string]any{"user_id": id, "username": user.Username})
	s.logger.Info("user deleted", "user_id", id, "actor", actorID)

	return nil
}

// ChangePassword sets a new password for the user and revokes all their
// other sessions. keepToken (typically the caller's own session) survives,
// so changing your own password does not log you out.
func (s *Service) ChangePassword(ctx context.Context, actorID, userID, newPassword, keepToken string) error {
	if newPassword == "" {
		return ErrEmptyPassword
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	if _, err := s.InvalidateSessions(ctx, userID, keepToken); err != nil {
		return err
	}

	s.recorder.RecordData(actorID, audit.ActionUserPasswordChange,
		map[string]any{"user_id": userID})
	s.logger.Info("password changed", "user_id", userID, "actor", actorID)

	return nil
}

// InvalidateUserSessions revokes all of a user's sessions on behalf of an
// administrator.
func (s *Service) InvalidateUserSessions(ctx context.Context, actorID, userID string) (int, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return 0, err
	}

	count, err := s.sessions.InvalidateAllForUser(ctx, userID, "")
	if err != nil {
		return 0, err
	}

	s.recorder.RecordData(actorID, audit.ActionUserSessionsInvalidate,
		map[string]any{"user_id": userID, "revoked": count})

	return count, nil
}
