package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"

	"emgreach/internal/errors"
)

// MigrationRunner creates the session schema. Statements are portable across
// sqlite3 and postgres.
type MigrationRunner struct{}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner() *MigrationRunner {
	return &MigrationRunner{}
}

// Run executes all migrations in order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createSessionsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create sessions table")
	}
	if err := r.createRecordsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create session_records table")
	}
	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}
	return nil
}

func (r *MigrationRunner) createSessionsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(64) NOT NULL,
			hits INTEGER NOT NULL DEFAULT 0,
			record_count INTEGER NOT NULL DEFAULT 0,
			noise_levels TEXT NOT NULL,
			max_contractions TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createRecordsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS session_records (
			session_id VARCHAR(64) NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			trial INTEGER NOT NULL,
			elapsed_ns BIGINT NOT NULL,
			signal_strength DOUBLE PRECISION NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (session_id, seq)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at)`,
		`CREATE INDEX IF NOT EXISTS idx_session_records_trial ON session_records(session_id, trial)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
