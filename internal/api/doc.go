// Package api provides the HTTP and WebSocket surface of the Lumen
// display server.
//
// The REST API under /api/v1 covers authentication, user management and
// the audit trail; the WebSocket endpoint at /api/v1/display carries the
// live display state protocol. Everything outside /api serves the built
// web client from disk.
//
// All protected routes authorise through the session authority
// (internal/auth): a Bearer token in the Authorization header is resolved
// to a user on every request.
package api
