package database

import (
	"context"
	"fmt"
)

// Optimize runs SQLite's query-planner optimisation pass and reclaims a
// bounded number of free pages via incremental vacuum. Intended to be
// called periodically from a maintenance loop.
func (db *DB) Optimize(ctx context.Context) error {
	if _, err := db.DB.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("running PRAGMA optimize: %w", err)
	}
	// Reclaim up to 256 free pages per pass so the loop never stalls
	// behind a huge vacuum.
	if _, err := db.DB.ExecContext(ctx, "PRAGMA incremental_vacuum(256)"); err != nil {
		return fmt.Errorf("running incremental vacuum: %w", err)
	}
	return nil
}

// Checkpoint flushes the WAL into the main database file.
//
// A quick checkpoint (full=false) uses PASSIVE mode: it never blocks
// readers or writers and copies what it can. A full checkpoint uses
// TRUNCATE mode, which waits for readers and resets the WAL file to zero
// length; run it less often.
func (db *DB) Checkpoint(ctx context.Context, full bool) error {
	mode := "PASSIVE"
	if full {
		mode = "TRUNCATE"
	}

	var busy, logPages, checkpointed int
	err := db.DB.QueryRowContext(ctx,
		fmt.Sprintf("PRAGMA wal_checkpoint(%s)", mode),
	).Scan(&busy, &logPages, &checkpointed)
	if err != nil {
		return fmt.Errorf("running wal_checkpoint(%s): %w", mode, err)
	}
	if busy != 0 && full {
		return fmt.Errorf("wal_checkpoint(%s) could not complete: database busy", mode)
	}
	return nil
}
