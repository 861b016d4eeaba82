/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package testing starts throwaway database servers in containers for integration tests.
package testing

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mariadb"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/acronis/go-dbmigrate"
)

// Images used for test databases.
const (
	PostgresImage = "postgres:16-alpine"
	MariaDBImage  = "mariadb:11.4"
	MongoDBImage  = "mongo:7.0"
)

const (
	testDatabase = "dbmigrate_test"
	testUser     = "dbmigrate"
	testPassword = "dbmigrate-password"
)

// StopFunc terminates a test database container.
type StopFunc func(ctx context.Context) error

// RunTestDB starts a database server of the given dialect in a container and returns
// the config for connecting to it.
func RunTestDB(ctx context.Context, dialect dbmigrate.Dialect) (*dbmigrate.Config, StopFunc, error) {
	cfg := dbmigrate.NewDefaultConfig([]dbmigrate.Dialect{dialect})
	cfg.Dialect = dialect
	cfg.ConnectRetries = 5

	switch dialect {
	case dbmigrate.DialectPostgres, dbmigrate.DialectPgx:
		ctr, err := postgres.Run(ctx, PostgresImage,
			postgres.WithDatabase(testDatabase),
			postgres.WithUsername(testUser),
			postgres.WithPassword(testPassword),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("run postgres container: %w", err)
		}
		host, err := ctr.Host(ctx)
		if err != nil {
			return nil, nil, terminateOnErr(ctx, ctr, fmt.Errorf("get container host: %w", err))
		}
		port, err := ctr.MappedPort(ctx, "5432/tcp")
		if err != nil {
			return nil, nil, terminateOnErr(ctx, ctr, fmt.Errorf("get mapped port: %w", err))
		}
		cfg.Postgres = dbmigrate.PostgresConfig{
			Host: host, Port: port.Int(), User: testUser, Password: testPassword, Database: testDatabase,
			SSLMode: dbmigrate.PostgresSSLModeDisable, TxIsolationLevel: cfg.Postgres.TxIsolationLevel,
		}
		return cfg, terminate(ctr), nil

	case dbmigrate.DialectMySQL:
		ctr, err := mariadb.Run(ctx, MariaDBImage,
			mariadb.WithDatabase(testDatabase),
			mariadb.WithUsername(testUser),
			mariadb.WithPassword(testPassword),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("run mariadb container: %w", err)
		}
		host, err := ctr.Host(ctx)
		if err != nil {
			return nil, nil, terminateOnErr(ctx, ctr, fmt.Errorf("get container host: %w", err))
		}
		port, err := ctr.MappedPort(ctx, "3306/tcp")
		if err != nil {
			return nil, nil, terminateOnErr(ctx, ctr, fmt.Errorf("get mapped port: %w", err))
		}
		cfg.MySQL = dbmigrate.MySQLConfig{
			Host: host, Port: port.Int(), User: testUser, Password: testPassword, Database: testDatabase,
			TxIsolationLevel: cfg.MySQL.TxIsolationLevel,
		}
		return cfg, terminate(ctr), nil

	case dbmigrate.DialectMongoDB:
		ctr, err := mongodb.Run(ctx, MongoDBImage)
		if err != nil {
			return nil, nil, fmt.Errorf("run mongodb container: %w", err)
		}
		connStr, err := ctr.ConnectionString(ctx)
		if err != nil {
			return nil, nil, terminateOnErr(ctx, ctr, fmt.Errorf("get connection string: %w", err))
		}
		cfg.MongoDB = dbmigrate.MongoDBConfig{URL: connStr, Database: testDatabase}
		return cfg, terminate(ctr), nil

	default:
		return nil, nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

// MustRunTestDB is like RunTestDB but panics on error.
func MustRunTestDB(ctx context.Context, dialect dbmigrate.Dialect) (*dbmigrate.Config, StopFunc) {
	cfg, stop, err := RunTestDB(ctx, dialect)
	if err != nil {
		panic(err)
	}
	return cfg, stop
}

// MustRunAndOpenTestDB starts an SQL database server in a container and opens a connection to it.
// The returned StopFunc closes the connection and terminates the container.
func MustRunAndOpenTestDB(ctx context.Context, dialect dbmigrate.Dialect) (*sql.DB, StopFunc) {
	cfg, stop := MustRunTestDB(ctx, dialect)
	db, err := dbmigrate.OpenContext(ctx, cfg, true)
	if err != nil {
		_ = stop(ctx)
		panic(err)
	}
	return db, func(ctx context.Context) error {
		_ = db.Close()
		return stop(ctx)
	}
}

func terminate(ctr testcontainers.Container) StopFunc {
	return func(ctx context.Context) error {
		return ctr.Terminate(ctx)
	}
}

func terminateOnErr(ctx context.Context, ctr testcontainers.Container, err error) error {
	_ = ctr.Terminate(ctx)
	return err
}
