/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package backend selects and constructs the migration adapter for the configured database.
// It registers all supported SQL drivers.
package backend

import (
	"fmt"

	"github.com/acronis/go-appkit/log"
	_ "github.com/go-sql-driver/mysql"   // register "mysql" driver
	_ "github.com/jackc/pgx/v5/stdlib"   // register "pgx" driver
	_ "github.com/lib/pq"                // register "postgres" driver
	_ "github.com/mattn/go-sqlite3"      // register "sqlite3" driver
	_ "github.com/microsoft/go-mssqldb" // register "mssql" driver

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/adapter"
	"github.com/acronis/go-dbmigrate/adapter/mongoadapter"
	"github.com/acronis/go-dbmigrate/adapter/sqladapter"
)

// SupportedDialects lists dialects New can construct an adapter for.
var SupportedDialects = []dbmigrate.Dialect{
	dbmigrate.DialectSQLite,
	dbmigrate.DialectMySQL,
	dbmigrate.DialectPostgres,
	dbmigrate.DialectPgx,
	dbmigrate.DialectMSSQL,
	dbmigrate.DialectMongoDB,
}

// Options contains names of the tables (or collections) used by the adapter.
// Empty values mean adapter defaults.
type Options struct {
	MigrationsTable string
	SeedsTable      string
	LocksTable      string
}

// New validates cfg and returns the adapter for its dialect.
// Configuration errors are reported before any connection attempt.
func New(cfg *dbmigrate.Config, logger log.FieldLogger, opts Options) (adapter.Adapter, error) {
	if cfg == nil {
		return nil, &dbmigrate.ConfigurationError{Err: fmt.Errorf("config cannot be nil")}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Dialect == dbmigrate.DialectMongoDB {
		var mongoOpts []mongoadapter.Option
		if opts.MigrationsTable != "" {
			mongoOpts = append(mongoOpts, mongoadapter.WithMigrationsCollection(opts.MigrationsTable))
		}
		if opts.SeedsTable != "" {
			mongoOpts = append(mongoOpts, mongoadapter.WithSeedsCollection(opts.SeedsTable))
		}
		if opts.LocksTable != "" {
			mongoOpts = append(mongoOpts, mongoadapter.WithLocksCollection(opts.LocksTable))
		}
		a, err := mongoadapter.New(cfg, logger, mongoOpts...)
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	var sqlOpts []sqladapter.Option
	if opts.MigrationsTable != "" {
		sqlOpts = append(sqlOpts, sqladapter.WithMigrationsTable(opts.MigrationsTable))
	}
	if opts.SeedsTable != "" {
		sqlOpts = append(sqlOpts, sqladapter.WithSeedsTable(opts.SeedsTable))
	}
	if opts.LocksTable != "" {
		sqlOpts = append(sqlOpts, sqladapter.WithLocksTable(opts.LocksTable))
	}
	a, err := sqladapter.New(cfg, logger, sqlOpts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}
