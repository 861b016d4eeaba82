/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/adapter"
	"github.com/acronis/go-dbmigrate/adapter/mongoadapter"
	"github.com/acronis/go-dbmigrate/adapter/sqladapter"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *dbmigrate.Config
		opts        Options
		wantBackend string
		wantErrKey  string
		wantErr     bool
	}{
		{
			name:        "sqlite",
			cfg:         &dbmigrate.Config{Dialect: dbmigrate.DialectSQLite, SQLite: dbmigrate.SQLiteConfig{Path: "app.db"}},
			wantBackend: "sqlite3",
		},
		{
			name: "pgx",
			cfg: &dbmigrate.Config{Dialect: dbmigrate.DialectPgx,
				Postgres: dbmigrate.PostgresConfig{Host: "pg-host", Database: "app"}},
			wantBackend: "pgx",
		},
		{
			name: "mysql",
			cfg: &dbmigrate.Config{Dialect: dbmigrate.DialectMySQL,
				MySQL: dbmigrate.MySQLConfig{Host: "mysql-host", Database: "app"}},
			wantBackend: "mysql",
		},
		{
			name: "mongodb",
			cfg: &dbmigrate.Config{Dialect: dbmigrate.DialectMongoDB,
				MongoDB: dbmigrate.MongoDBConfig{URL: "mongodb://localhost:27017", Database: "app"}},
			wantBackend: "mongodb",
		},
		{
			name:       "missing sqlite path",
			cfg:        &dbmigrate.Config{Dialect: dbmigrate.DialectSQLite},
			wantErrKey: "db.sqlite3.path",
		},
		{
			name:       "missing mongodb database",
			cfg:        &dbmigrate.Config{Dialect: dbmigrate.DialectMongoDB, MongoDB: dbmigrate.MongoDBConfig{URL: "mongodb://localhost"}},
			wantErrKey: "db.mongodb.database",
		},
		{
			name:       "unknown dialect",
			cfg:        &dbmigrate.Config{Dialect: "oracle"},
			wantErrKey: "db.dialect",
		},
		{
			name:    "invalid table name",
			cfg:     &dbmigrate.Config{Dialect: dbmigrate.DialectSQLite, SQLite: dbmigrate.SQLiteConfig{Path: "app.db"}},
			opts:    Options{MigrationsTable: "app migrations;"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			if opts == (Options{}) {
				opts.MigrationsTable = "app_migrations"
			}
			a, err := New(tt.cfg, nil, opts)
			if tt.wantErr || tt.wantErrKey != "" {
				var cfgErr *dbmigrate.ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				require.Equal(t, tt.wantErrKey, cfgErr.Key)
				// An interface holding a typed nil pointer isn't equal to nil.
				require.True(t, a == nil, "adapter must be nil on error, got %#v", a)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantBackend, a.Backend())
		})
	}
}

func TestNewAdapterTypes(t *testing.T) {
	a, err := New(&dbmigrate.Config{Dialect: dbmigrate.DialectSQLite, SQLite: dbmigrate.SQLiteConfig{Path: "app.db"}}, nil, Options{})
	require.NoError(t, err)
	require.IsType(t, &sqladapter.Adapter{}, a)
	_, ok := a.(adapter.ExclusiveRunner)
	require.True(t, ok)

	a, err = New(&dbmigrate.Config{Dialect: dbmigrate.DialectMongoDB,
		MongoDB: dbmigrate.MongoDBConfig{URL: "mongodb://localhost:27017", Database: "app"}}, nil, Options{})
	require.NoError(t, err)
	require.IsType(t, &mongoadapter.Adapter{}, a)
	_, ok = a.(adapter.ExclusiveRunner)
	require.True(t, ok)
}
