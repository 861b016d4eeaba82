/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package sqladapter implements the migration adapter for databases accessed through database/sql:
// MySQL, PostgreSQL (lib/pq and pgx drivers), SQLite and MSSQL.
//
// Execution records are kept in one table per change kind. Change bodies are split into statements
// which are executed in a single transaction unless the definition disables it.
package sqladapter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"     // register goqu dialect
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"  // register goqu dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"   // register goqu dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlserver" // register goqu dialect

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/change"
)

// ScriptExtension is the extension of definition files executed by the adapter.
const ScriptExtension = ".sql"

// Adapter is the migration adapter for SQL databases.
type Adapter struct {
	cfg     *dbmigrate.Config
	dialect dbmigrate.Dialect
	logger  log.FieldLogger
	builder goqu.DialectWrapper
	now     func() time.Time

	db     *sql.DB
	ownsDB bool

	migrationsTable string
	seedsTable      string
	locksTable      string
}

// Option is a functional option for Adapter configuration.
type Option func(*Adapter)

// WithMigrationsTable sets a custom name of the table storing executed migrations.
func WithMigrationsTable(name string) Option {
	return func(a *Adapter) {
		a.migrationsTable = name
	}
}

// WithSeedsTable sets a custom name of the table storing executed seeds.
func WithSeedsTable(name string) Option {
	return func(a *Adapter) {
		a.seedsTable = name
	}
}

// WithLocksTable sets a custom name of the table storing advisory locks.
func WithLocksTable(name string) Option {
	return func(a *Adapter) {
		a.locksTable = name
	}
}

// New creates an adapter which opens its own connection on Connect.
func New(cfg *dbmigrate.Config, logger log.FieldLogger, opts ...Option) (*Adapter, error) {
	if cfg == nil {
		return nil, &dbmigrate.ConfigurationError{Err: fmt.Errorf("config cannot be nil")}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := newAdapter(cfg.Dialect, logger, opts)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	a.ownsDB = true
	return a, nil
}

// NewWithDB creates an adapter working on an already opened database.
// Disconnect doesn't close db, it stays owned by the caller.
func NewWithDB(db *sql.DB, dialect dbmigrate.Dialect, logger log.FieldLogger, opts ...Option) (*Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	a, err := newAdapter(dialect, logger, opts)
	if err != nil {
		return nil, err
	}
	a.db = db
	return a, nil
}

func newAdapter(dialect dbmigrate.Dialect, logger log.FieldLogger, opts []Option) (*Adapter, error) {
	goquDialect, err := goquDialectName(dialect)
	if err != nil {
		return nil, &dbmigrate.ConfigurationError{Key: "db.dialect", Err: err}
	}
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	a := &Adapter{
		dialect:         dialect,
		logger:          logger,
		builder:         goqu.Dialect(goquDialect),
		now:             time.Now,
		migrationsTable: DefaultMigrationsTable,
		seedsTable:      DefaultSeedsTable,
		locksTable:      DefaultLocksTable,
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, table := range []string{a.migrationsTable, a.seedsTable, a.locksTable} {
		if err = validateTableName(table); err != nil {
			return nil, &dbmigrate.ConfigurationError{Err: err}
		}
	}
	return a, nil
}

func goquDialectName(dialect dbmigrate.Dialect) (string, error) {
	switch dialect {
	case dbmigrate.DialectMySQL:
		return "mysql", nil
	case dbmigrate.DialectPostgres, dbmigrate.DialectPgx:
		return "postgres", nil
	case dbmigrate.DialectSQLite:
		return "sqlite3", nil
	case dbmigrate.DialectMSSQL:
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("unsupported SQL dialect %q", dialect)
	}
}

// Backend returns the SQL dialect.
func (a *Adapter) Backend() string {
	return string(a.dialect)
}

// ScriptExtension returns ".sql".
func (a *Adapter) ScriptExtension() string {
	return ScriptExtension
}

// DB returns the underlying database or nil if the adapter isn't connected.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Connect opens and pings the database.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	db, err := dbmigrate.OpenContext(ctx, a.cfg, true)
	if err != nil {
		return a.storageErr("connect", "", err)
	}
	if a.dialect == dbmigrate.DialectSQLite && a.cfg.SQLite.InMemory() {
		db.SetMaxOpenConns(1)
	}
	a.db = db
	a.logger.Debug("connected to database", log.String("dialect", string(a.dialect)))
	return nil
}

// Disconnect closes the database opened by Connect.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.db == nil || !a.ownsDB {
		return nil
	}
	db := a.db
	a.db = nil
	if err := db.Close(); err != nil {
		return a.storageErr("disconnect", "", err)
	}
	a.logger.Debug("disconnected from database", log.String("dialect", string(a.dialect)))
	return nil
}

func (a *Adapter) conn() (*sql.DB, error) {
	if a.db == nil {
		return nil, fmt.Errorf("not connected")
	}
	return a.db, nil
}

func (a *Adapter) tableFor(kind change.Kind) (string, error) {
	switch kind {
	case change.KindMigration:
		return a.migrationsTable, nil
	case change.KindSeed:
		return a.seedsTable, nil
	default:
		return "", fmt.Errorf("unknown change kind %q", kind)
	}
}

func (a *Adapter) storageErr(op, changeID string, err error) error {
	return &dbmigrate.StorageError{Backend: string(a.dialect), Op: op, ChangeID: changeID, Err: err}
}

// EnsureChangeLog creates the execution log table for the kind.
func (a *Adapter) EnsureChangeLog(ctx context.Context, kind change.Kind) error {
	db, err := a.conn()
	if err != nil {
		return a.storageErr("ensure change log", "", err)
	}
	table, err := a.tableFor(kind)
	if err != nil {
		return a.storageErr("ensure change log", "", err)
	}
	createSQL, err := createTableSQL(a.dialect, table)
	if err != nil {
		return a.storageErr("ensure change log", "", err)
	}
	if _, err = db.ExecContext(ctx, createSQL); err != nil {
		return a.storageErr("ensure change log", "", fmt.Errorf("create %s table: %w", table, err))
	}
	return nil
}

// Apply executes the forward body of a migration or the body of a seed.
func (a *Adapter) Apply(ctx context.Context, def *change.Definition) error {
	if err := a.execScript(ctx, def, change.DirectionUp); err != nil {
		return a.storageErr("apply", def.ID, err)
	}
	return nil
}

// Revert executes the reverse body of a migration.
func (a *Adapter) Revert(ctx context.Context, def *change.Definition) error {
	if def.Kind != change.KindMigration {
		return a.storageErr("revert", def.ID, fmt.Errorf("%s can't be reverted", def.Kind))
	}
	if err := a.execScript(ctx, def, change.DirectionDown); err != nil {
		return a.storageErr("revert", def.ID, err)
	}
	return nil
}

func (a *Adapter) execScript(ctx context.Context, def *change.Definition, direction change.Direction) error {
	db, err := a.conn()
	if err != nil {
		return err
	}
	statements := splitStatements(def.Script(direction))
	if len(statements) == 0 {
		return nil
	}
	if def.DisableTx {
		return execStatements(ctx, db, statements)
	}
	var txOpts []dbmigrate.TxOption
	if a.cfg != nil && a.cfg.TxIsolationLevel() != sql.LevelDefault {
		txOpts = append(txOpts, dbmigrate.WithIsolationLevel(a.cfg.TxIsolationLevel()))
	}
	return dbmigrate.DoInTx(ctx, db, func(tx *sql.Tx) error {
		return execStatements(ctx, tx, statements)
	}, txOpts...)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func execStatements(ctx context.Context, exec execer, statements []string) error {
	for i, stmt := range statements {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute statement %d: %w", i+1, err)
		}
	}
	return nil
}
