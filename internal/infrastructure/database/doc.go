// Package database provides SQLite connectivity for Lumen.
//
// It wraps database/sql with WAL-mode pragmas, a bounded connection pool,
// an embedded migrations runner, periodic maintenance helpers (optimize,
// WAL checkpoints) and health checks. All persistence in Lumen goes
// through the DB type defined here.
package database
