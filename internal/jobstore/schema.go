package jobstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var baseSchema string

// migrations[i] moves a database from user_version i to i+1. Append only.
var migrations = []string{
	baseSchema,
	`ALTER TABLE jobs ADD COLUMN engine TEXT NOT NULL DEFAULT ''`,
}

// ErrSchemaMismatch reports a database written by a newer build.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func schemaVersion() int { return len(migrations) }

// initSchema brings the database up to schemaVersion, tracked in
// PRAGMA user_version. All pending migrations apply in one transaction.
func (s *Store) initSchema(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case current == schemaVersion():
		return nil
	case current > schemaVersion():
		return fmt.Errorf("%w: database has version %d, this build supports %d (delete %s to reset job history)",
			ErrSchemaMismatch, current, schemaVersion(), s.path)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for v := current; v < schemaVersion(); v++ {
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			return fmt.Errorf("migrate schema to version %d: %w", v+1, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion())); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
