package state

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ajitpratap0/formtap/pkg/errors"
)

// pgxQuerier is the subset of *pgxpool.Pool used by PostgresStore.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore keeps one row per tap id in a JSONB table.
type PostgresStore struct {
	db    pgxQuerier
	table string
	tapID string
}

// NewPostgresStore creates a store over db. EnsureTable must run once
// before the first Save.
func NewPostgresStore(db pgxQuerier, table, tapID string) *PostgresStore {
	return &PostgresStore{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
		tapID: tapID,
	}
}

// DialPostgres opens a pool for dsn and checks connectivity.
func DialPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse connection string")
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to postgres")
	}
	return pool, nil
}

// EnsureTable creates the state table if needed.
func (s *PostgresStore) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	tap_id TEXT PRIMARY KEY,
	state JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to create state table")
	}
	return nil
}

// Load reads the row of the tap id. A missing row yields nil.
func (s *PostgresStore) Load(ctx context.Context) ([]byte, error) {
	var doc string
	err := s.db.QueryRow(ctx,
		fmt.Sprintf("SELECT state::text FROM %s WHERE tap_id = $1", s.table), s.tapID).Scan(&doc)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "failed to read state from postgres")
	}
	return []byte(doc), nil
}

// Save upserts the row of the tap id.
func (s *PostgresStore) Save(ctx context.Context, doc []byte) error {
	query := fmt.Sprintf(`INSERT INTO %s (tap_id, state, updated_at) VALUES ($1, $2::jsonb, now())
ON CONFLICT (tap_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.db.Exec(ctx, query, s.tapID, string(doc)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to write state to postgres")
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
