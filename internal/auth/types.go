package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
// Usernames must be 1-64 characters, alphanumeric with dots, hyphens, underscores.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// User represents an account that can authenticate against Lumen.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Description  string    `json:"description"`
	PasswordHash string    `json:"-"` // never serialised
	Enabled      bool      `json:"enabled"`
	Permissions  int64     `json:"permissions"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session represents a persisted bearer session. Token is the opaque
// credential presented by clients; LastActivity drives expiry.
type Session struct {
	ID           string    `json:"id"`
	Token        string    `json:"-"` // never serialised
	UserID       string    `json:"user_id"`
	LastActivity time.Time `json:"last_activity"`
	Valid        bool      `json:"valid"`
}

// Sentinel errors for auth operations.
var (
	// Authentication failures.
	ErrUserNotFound       = errors.New("user not found")
	ErrUserDisabled       = errors.New("user account is disabled")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameExists     = errors.New("username already exists")

	// Authorisation failures.
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionInvalid  = errors.New("session has been invalidated")
	ErrSessionExpired  = errors.New("session has expired")
	ErrForbidden       = errors.New("insufficient permissions")
)
