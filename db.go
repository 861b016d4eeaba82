/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package dbmigrate contains configuration, connection and error primitives shared by
// the migration engine and its storage adapters.
package dbmigrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Dialect defines possible values for planned supported database dialects.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite3"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectPgx      Dialect = "pgx"
	DialectMSSQL    Dialect = "mssql"
	DialectMongoDB  Dialect = "mongodb"
)

// IsSQL reports whether the dialect is served through database/sql.
func (d Dialect) IsSQL() bool {
	switch d {
	case DialectSQLite, DialectMySQL, DialectPostgres, DialectPgx, DialectMSSQL:
		return true
	}
	return false
}

// Default values of connection parameters.
const (
	DefaultMaxIdleConns    = 2
	DefaultMaxOpenConns    = 10
	DefaultConnMaxLifetime = 10 * time.Minute

	MySQLDefaultTxLevel    = sql.LevelReadCommitted
	PostgresDefaultTxLevel = sql.LevelReadCommitted
	MSSQLDefaultTxLevel    = sql.LevelReadCommitted
)

// PostgresSSLMode defines possible values for Postgres sslmode connection parameter.
type PostgresSSLMode string

// Postgres SSL modes.
const (
	PostgresSSLModeDisable    PostgresSSLMode = "disable"
	PostgresSSLModeRequire    PostgresSSLMode = "require"
	PostgresSSLModeVerifyCA   PostgresSSLMode = "verify-ca"
	PostgresSSLModeVerifyFull PostgresSSLMode = "verify-full"
)

// PostgresDefaultSSLMode contains Postgres SSL mode used by default.
const PostgresDefaultSSLMode = PostgresSSLModeVerifyCA

// Parameters for Patroni-aware connections (pgx only).
const (
	PgTargetSessionAttrs = "target_session_attrs"
	PgReadWriteParam     = "read-write"
)

// Open opens a database connection according to the passed config.
// If ping is true, the connection is checked (with retries when cfg.ConnectRetries > 0).
func Open(cfg *Config, ping bool) (*sql.DB, error) {
	return OpenContext(context.Background(), cfg, ping)
}

// OpenContext is Open with a context used for pinging.
func OpenContext(ctx context.Context, cfg *Config, ping bool) (*sql.DB, error) {
	if !cfg.Dialect.IsSQL() {
		return nil, fmt.Errorf("unsupported SQL dialect %q", cfg.Dialect)
	}
	driverName, dsn := cfg.DriverNameAndDSN()
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime))

	if ping {
		if err = PingWithRetries(ctx, cfg.ConnectRetries, func(ctx context.Context) error {
			return db.PingContext(ctx)
		}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
	}
	return db, nil
}

// PingWithRetries calls ping until it succeeds or retries are exhausted.
// Exponential backoff is used between attempts.
func PingWithRetries(ctx context.Context, retries int, ping func(ctx context.Context) error) error {
	if retries <= 0 {
		return ping(ctx)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	return backoff.Retry(func() error {
		return ping(ctx)
	}, policy)
}

// TxOption is a functional option for DoInTx.
type TxOption func(*sql.TxOptions)

// WithIsolationLevel sets the isolation level of the transaction started by DoInTx.
func WithIsolationLevel(level sql.IsolationLevel) TxOption {
	return func(o *sql.TxOptions) {
		o.Isolation = level
	}
}

// DoInTx begins a new transaction, calls passed function and do commit or rollback
// depending on whether the function returns an error or not.
func DoInTx(ctx context.Context, dbConn *sql.DB, fn func(tx *sql.Tx) error, options ...TxOption) (err error) {
	var txOpts *sql.TxOptions
	if len(options) != 0 {
		txOpts = &sql.TxOptions{}
		for _, opt := range options {
			opt(txOpts)
		}
	}

	var tx *sql.Tx
	if tx, err = dbConn.BeginTx(ctx, txOpts); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit tx: %w", err)
		}
	}()

	return fn(tx)
}
