// Package auth implements Lumen's session authority and permission model.
//
// Users carry an int64 permission bitmask. Authentication exchanges a
// username/password pair for an opaque 255-character bearer token backed by
// a row in the sessions table; authorisation resolves a token back to its
// user, lazily renewing the session's activity timestamp, and checks the
// requested permissions against the user's bitmask.
//
// Sessions are never deleted, only marked invalid, so the audit trail can
// always resolve a historical token. Expiry is computed from last_activity
// at check time.
package auth
