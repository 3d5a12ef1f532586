// Package pgstore keeps artifacts as rows in a PostgreSQL table. Each
// resolved location maps to one row, and a write replaces the row in a single
// statement, so readers never observe a partially written artifact.
package pgstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vk/artiflow/internal/resource"
)

// DefaultTable is the table used when New is given an empty name.
const DefaultTable = "artiflow_artifacts"

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements resource.Store on top of a PostgreSQL table.
type Store struct {
	db    DB
	table string
}

// New returns a store writing into table (DefaultTable when empty).
func New(db DB, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: table}
}

// Connect opens a pool for dsn and pings it, retrying with exponential
// backoff until the database answers or maxWait elapses.
func Connect(ctx context.Context, dsn string, maxWait time.Duration) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait
	if err := backoff.Retry(func() error { return pool.Ping(ctx) }, backoff.WithContext(b, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the artifact table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	location   text PRIMARY KEY,
	data       bytea NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`, s.ident()))
	if err != nil {
		return fmt.Errorf("pgstore: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// Exists implements resource.Store.
func (s *Store) Exists(ctx context.Context, location string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE location = $1)`, s.ident()),
		location,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("pgstore: exists %q: %w", location, err)
	}
	return ok, nil
}

// Open implements resource.Store.
func (s *Store) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	var data []byte
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE location = $1`, s.ident()),
		location,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", resource.ErrNotFound, location)
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: open %q: %w", location, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Write implements resource.Store. The encoded bytes are buffered and stored
// with one upsert; if fn fails nothing is sent to the database.
func (s *Store) Write(ctx context.Context, location string, fn func(w io.Writer) error) error {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (location, data, updated_at) VALUES ($1, $2, now())
ON CONFLICT (location) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`, s.ident()),
		location, buf.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("pgstore: write %q: %w", location, err)
	}
	return nil
}

// Remove implements resource.Store.
func (s *Store) Remove(ctx context.Context, location string) error {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE location = $1`, s.ident()), location)
	if err != nil {
		return fmt.Errorf("pgstore: remove %q: %w", location, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", resource.ErrNotFound, location)
	}
	return nil
}

var _ resource.Store = (*Store)(nil)
