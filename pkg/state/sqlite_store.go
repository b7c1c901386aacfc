package state

import (
	"context"
	"database/sql"
	stderrors "errors"

	_ "modernc.org/sqlite"

	"github.com/ajitpratap0/formtap/pkg/errors"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS tap_state (
	tap_id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteStore keeps one row per tap id in a local SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	tapID string
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(ctx context.Context, path, tapID string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to open sqlite database").
			WithDetail("path", path)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to create state table")
	}
	return &SQLiteStore{db: db, tapID: tapID}, nil
}

// Load reads the row of the tap id. A missing row yields nil.
func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT state FROM tap_state WHERE tap_id = ?", s.tapID).Scan(&doc)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to read state from sqlite")
	}
	return []byte(doc), nil
}

// Save upserts the row of the tap id.
func (s *SQLiteStore) Save(ctx context.Context, doc []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO tap_state (tap_id, state, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (tap_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`, s.tapID, string(doc))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state to sqlite")
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
