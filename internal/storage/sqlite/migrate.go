package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrator applies the base schema for the operation history. Caller
// provides an opened *sql.DB.
type Migrator struct{}

func (m Migrator) Up(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS operations (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            description TEXT,
            started_at TEXT NOT NULL,
            ended_at TEXT,
            duration_ms INTEGER,
            mem_delta INTEGER,
            cpu_delta REAL,
            status TEXT NOT NULL,
            result TEXT
        );`,
		`CREATE INDEX IF NOT EXISTS idx_operations_started ON operations(started_at);`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
