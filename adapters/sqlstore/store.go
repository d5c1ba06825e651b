// Package sqlstore keeps finished sessions in a SQL database so they can be
// listed and re-exported later.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"emgreach/domain/core"
	"emgreach/domain/session"
	"emgreach/internal"
	"emgreach/internal/errors"
)

// Store implements ports.SessionSinkPort on a sqlx database.
type Store struct {
	db     *sqlx.DB
	logger *internal.Logger
}

// StoredSession is one row of the session listing.
type StoredSession struct {
	ID          core.SessionID  `db:"id" json:"id"`
	Name        core.ExportName `db:"name" json:"name"`
	Hits        int             `db:"hits" json:"hits"`
	RecordCount int             `db:"record_count" json:"record_count"`
	StartedAt   time.Time       `db:"started_at" json:"started_at"`
	EndedAt     time.Time       `db:"ended_at" json:"ended_at"`
}

type sessionRow struct {
	StoredSession
	NoiseLevels     string `db:"noise_levels"`
	MaxContractions string `db:"max_contractions"`
}

// Open connects to the database and applies migrations. driver is sqlite3 or
// postgres.
func Open(ctx context.Context, driver, url string, logger *internal.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return nil, errors.PersistenceFailure(driver, err)
	}
	if driver == "sqlite3" {
		// One writer; the session saves from a single goroutine anyway.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, errors.PersistenceFailure(driver, err)
		}
	}
	if err := NewMigrationRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewStore(db, logger), nil
}

// NewStore wraps an already migrated connection.
func NewStore(db *sqlx.DB, logger *internal.Logger) *Store {
	return &Store{db: db, logger: internal.OrDefault(logger).With("sqlstore")}
}

// Close closes the connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Name() string { return "sql" }

// Save writes the session row and every record in one transaction.
func (s *Store) Save(ctx context.Context, export *session.Export) (string, error) {
	noise, err := json.Marshal(export.Noise)
	if err != nil {
		return "", err
	}
	max, err := json.Marshal(export.Max)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", errors.PersistenceFailure(s.Name(), err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO sessions (id, name, hits, record_count, noise_levels, max_contractions, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), export.SessionID.String(), export.Name.String(), export.Hits, len(export.Records),
		string(noise), string(max), export.StartedAt.Time().UTC(), export.EndedAt.Time().UTC())
	if err != nil {
		return "", errors.PersistenceFailure(s.Name(), err)
	}

	stmt, err := tx.PreparexContext(ctx, s.db.Rebind(`
		INSERT INTO session_records (session_id, seq, trial, elapsed_ns, signal_strength, x, y)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return "", errors.PersistenceFailure(s.Name(), err)
	}
	defer stmt.Close()

	for i, rec := range export.Records {
		if _, err := stmt.ExecContext(ctx, export.SessionID.String(), i, rec.Trial, int64(rec.Elapsed), rec.SignalStrength, rec.X, rec.Y); err != nil {
			return "", errors.PersistenceFailure(s.Name(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.PersistenceFailure(s.Name(), err)
	}
	s.logger.Debug("stored session %s with %d records", export.SessionID, len(export.Records))
	return fmt.Sprintf("sql://sessions/%s", export.SessionID), nil
}

// List returns stored sessions, newest first. A limit of zero lists all.
func (s *Store) List(ctx context.Context, limit int) ([]StoredSession, error) {
	query := `
		SELECT id, name, hits, record_count, started_at, ended_at
		FROM sessions
		ORDER BY ended_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var sessions []StoredSession
	if err := s.db.SelectContext(ctx, &sessions, s.db.Rebind(query), args...); err != nil {
		return nil, errors.PersistenceFailure(s.Name(), err)
	}
	return sessions, nil
}

// Load rebuilds the export for a stored session.
func (s *Store) Load(ctx context.Context, id core.SessionID) (*session.Export, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, name, hits, record_count, noise_levels, max_contractions, started_at, ended_at
		FROM sessions
		WHERE id = ?
	`), id.String())
	if err == sql.ErrNoRows {
		return nil, errors.InvalidInput(fmt.Sprintf("session %s not found", id))
	}
	if err != nil {
		return nil, errors.PersistenceFailure(s.Name(), err)
	}

	export := &session.Export{
		SessionID: row.ID,
		Name:      row.Name,
		Header:    append([]string(nil), session.Header...),
		Hits:      row.Hits,
		StartedAt: core.NewTimestamp(row.StartedAt),
		EndedAt:   core.NewTimestamp(row.EndedAt),
	}
	if err := json.Unmarshal([]byte(row.NoiseLevels), &export.Noise); err != nil {
		return nil, errors.Wrap(err, "decode noise levels")
	}
	if err := json.Unmarshal([]byte(row.MaxContractions), &export.Max); err != nil {
		return nil, errors.Wrap(err, "decode max contractions")
	}

	err = s.db.SelectContext(ctx, &export.Records, s.db.Rebind(`
		SELECT trial, elapsed_ns, signal_strength, x, y
		FROM session_records
		WHERE session_id = ?
		ORDER BY seq
	`), id.String())
	if err != nil {
		return nil, errors.PersistenceFailure(s.Name(), err)
	}
	return export, nil
}
