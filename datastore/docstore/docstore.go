// Package docstore persists operation results in a SQL table of
// (canonical key, JSON value) rows, one row per operation. It works with
// any database/sql driver that supports PostgreSQL placeholder syntax.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/opforge/memo-framework/datastore"
	"github.com/opforge/memo-framework/operations"
	"github.com/opforge/memo-framework/pkg/logger"
)

const (
	backendName = "document"

	// DefaultTable is the table used when WithTable is not given.
	DefaultTable = "operation_results"
)

// Store is a datastore.Store backed by a SQL table.
type Store struct {
	db    *sql.DB
	table string
	lggr  logger.Logger
}

var _ datastore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTable sets the table name. Defaults to DefaultTable.
func WithTable(table string) Option {
	return func(s *Store) {
		s.table = table
	}
}

// WithLogger sets the store's logger. Defaults to a no-op logger.
func WithLogger(lggr logger.Logger) Option {
	return func(s *Store) {
		s.lggr = lggr
	}
}

// New creates a store over db. The table must exist; create it with
// CreateSchema on first use.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, table: DefaultTable, lggr: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateSchema creates the results table. It fails if the table already
// exists, so callers decide whether an existing schema is expected.
func (s *Store) CreateSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE %s (
			op_key    text not null,
			value     text,

			PRIMARY KEY(op_key)
		);`, s.table)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return &datastore.BackendError{Backend: backendName, Op: "create schema", Err: err}
	}

	return nil
}

func (s *Store) Get(ctx context.Context, op *operations.Operation) (any, error) {
	query := fmt.Sprintf(`
		SELECT value FROM %s
		WHERE op_key = $1`, s.table)

	var raw string
	err := s.db.QueryRowContext(ctx, query, op.Key()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation %s: %w", op.Digest(), datastore.ErrKeyNotFound)
	}
	if err != nil {
		return nil, &datastore.BackendError{Backend: backendName, Op: "get", Err: err}
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, &datastore.BackendError{Backend: backendName, Op: "get", Err: err}
	}

	return value, nil
}

func (s *Store) Put(ctx context.Context, op *operations.Operation, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &datastore.BackendError{Backend: backendName, Op: "put", Err: err}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (op_key, value)
		VALUES ($1, $2)
		ON CONFLICT ON CONSTRAINT %s_pkey
			DO UPDATE SET value = excluded.value`, s.table, s.table)
	if _, err := s.db.ExecContext(ctx, query, op.Key(), string(data)); err != nil {
		return &datastore.BackendError{Backend: backendName, Op: "put", Err: err}
	}
	s.lggr.Debugw("Stored operation result", "tag", op.Tag(), "digest", op.Digest())

	return nil
}

func (s *Store) Contains(ctx context.Context, op *operations.Operation) (bool, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s
		WHERE op_key = $1`, s.table)

	var n int
	if err := s.db.QueryRowContext(ctx, query, op.Key()).Scan(&n); err != nil {
		return false, &datastore.BackendError{Backend: backendName, Op: "contains", Err: err}
	}

	return n > 0, nil
}

func (s *Store) Delete(ctx context.Context, op *operations.Operation) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE op_key = $1`, s.table)
	if _, err := s.db.ExecContext(ctx, query, op.Key()); err != nil {
		return &datastore.BackendError{Backend: backendName, Op: "delete", Err: err}
	}

	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return &datastore.BackendError{Backend: backendName, Op: "clear", Err: err}
	}

	return nil
}

// Keys streams canonical keys from the table, one row per iteration step.
func (s *Store) Keys(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		query := fmt.Sprintf(`SELECT op_key FROM %s`, s.table)
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			yield("", &datastore.BackendError{Backend: backendName, Op: "keys", Err: err})
			return
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				yield("", &datastore.BackendError{Backend: backendName, Op: "keys", Err: err})
				return
			}
			if !yield(key, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield("", &datastore.BackendError{Backend: backendName, Op: "keys", Err: err})
		}
	}
}
