/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package distrlock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acronis/go-dbmigrate"
)

// DefaultTableName is a default name for the table that stores locks.
const DefaultTableName = "schema_migration_locks"

// MaxKeyLength is the maximum length of a lock key.
const MaxKeyLength = 40

// SQLExecutor is implemented by *sql.DB, *sql.Tx and *sql.Conn.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SQLManager creates locks stored as rows of one SQL table.
type SQLManager struct {
	queries queries
}

// SQLManagerOption is an option for NewSQLManager.
type SQLManagerOption func(*sqlManagerOptions)

type sqlManagerOptions struct {
	tableName string
}

// WithTableName sets a custom name for the table that stores locks.
func WithTableName(tableName string) SQLManagerOption {
	return func(o *sqlManagerOptions) {
		o.tableName = tableName
	}
}

// NewSQLManager creates a new lock manager for the dialect.
// ErrUnsupportedDialect is returned for dialects without a lock implementation.
func NewSQLManager(dialect dbmigrate.Dialect, options ...SQLManagerOption) (*SQLManager, error) {
	opts := sqlManagerOptions{tableName: DefaultTableName}
	for _, opt := range options {
		opt(&opts)
	}
	q, err := newQueries(dialect, opts.tableName)
	if err != nil {
		return nil, err
	}
	return &SQLManager{queries: q}, nil
}

// CreateTableSQL returns SQL query for creating the table that stores locks.
func (m *SQLManager) CreateTableSQL() string {
	return m.queries.createTable
}

// EnsureTable creates the table that stores locks if it doesn't exist.
func (m *SQLManager) EnsureTable(ctx context.Context, executor SQLExecutor) error {
	if _, err := executor.ExecContext(ctx, m.queries.createTable); err != nil {
		return fmt.Errorf("create locks table: %w", err)
	}
	return nil
}

// NewLock makes sure the row for the key exists and returns a lock (not acquired yet) working on db.
func (m *SQLManager) NewLock(ctx context.Context, db *sql.DB, key string) (*SQLLock, error) {
	if key == "" {
		return nil, fmt.Errorf("lock key cannot be empty")
	}
	if len(key) > MaxKeyLength {
		return nil, fmt.Errorf("lock key cannot be longer than %d symbols", MaxKeyLength)
	}
	if _, err := db.ExecContext(ctx, m.queries.initLock, key); err != nil {
		return nil, fmt.Errorf("init lock with key %s: %w", key, err)
	}
	return &SQLLock{key: key, db: db, queries: &m.queries}, nil
}

// SQLLock is a Lock stored as a row of an SQL table. Every operation runs in its own transaction.
type SQLLock struct {
	key     string
	token   string
	ttl     time.Duration
	db      *sql.DB
	queries *queries
}

var _ Lock = (*SQLLock)(nil)

// Key returns the key of the lock.
func (l *SQLLock) Key() string {
	return l.key
}

// Token returns the token of the last acquisition.
func (l *SQLLock) Token() string {
	return l.token
}

// Acquire takes the lock for ttl with a new token.
func (l *SQLLock) Acquire(ctx context.Context, ttl time.Duration) error {
	token := uuid.NewString()
	if err := l.exec(ctx, l.queries.acquireLock, ErrLockAlreadyAcquired,
		l.queries.interval(ttl), token, l.key, token); err != nil {
		return err
	}
	l.token = token
	l.ttl = ttl
	return nil
}

// Extend prolongs the lock for the TTL it was acquired with.
func (l *SQLLock) Extend(ctx context.Context) error {
	return l.exec(ctx, l.queries.extendLock, ErrLockAlreadyReleased, l.queries.interval(l.ttl), l.key, l.token)
}

// Release gives the lock up.
func (l *SQLLock) Release(ctx context.Context) error {
	return l.exec(ctx, l.queries.releaseLock, ErrLockAlreadyReleased, l.key, l.token)
}

func (l *SQLLock) exec(ctx context.Context, query string, errOnNoAffectedRows error, args ...interface{}) error {
	return dbmigrate.DoInTx(ctx, l.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		// lib/pq may swallow cancellation of ctx shared by BeginTx and ExecContext.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return errOnNoAffectedRows
		}
		return nil
	})
}
