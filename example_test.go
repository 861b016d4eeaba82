/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package dbmigrate_test

import (
	"context"
	"errors"
	"log"
	"os"

	appkitlog "github.com/acronis/go-appkit/log"

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/backend"
	"github.com/acronis/go-dbmigrate/migrate"
)

func Example() {
	// Configure the database using the dbmigrate.Config struct.
	// In this example, we're using PostgreSQL. Adjust Dialect and config fields for your target DB.
	cfg := dbmigrate.NewDefaultConfig(backend.SupportedDialects)
	cfg.Dialect = dbmigrate.DialectPostgres
	cfg.Postgres = dbmigrate.PostgresConfig{
		Host:     os.Getenv("PG_HOST"),
		Port:     5432,
		User:     os.Getenv("PG_USER"),
		Password: os.Getenv("PG_PASSWORD"),
		Database: os.Getenv("PG_DATABASE"),
		SSLMode:  dbmigrate.PostgresSSLModeDisable,
	}
	cfg.ConnectRetries = 3

	logger, loggerClose := appkitlog.NewLogger(&appkitlog.Config{Output: appkitlog.OutputStderr, Level: appkitlog.LevelInfo})
	defer loggerClose()

	// backend.New validates the configuration but doesn't connect.
	a, err := backend.New(cfg, logger, backend.Options{})
	if err != nil {
		var cfgErr *dbmigrate.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatalf("invalid configuration parameter %s: %v", cfgErr.Key, cfgErr.Err)
		}
		log.Fatal(err)
	}

	ctx := context.Background()
	svc := migrate.NewMigrationService(a, logger, migrate.WithDir("./migrations"))
	defer func() {
		if closeErr := svc.Close(ctx); closeErr != nil {
			log.Println(closeErr)
		}
	}()
	if err = svc.Initialize(ctx); err != nil {
		log.Fatal(err)
	}

	// Apply all pending migrations. If one of them fails, the migrations applied before it stay applied.
	applied, err := svc.Up(ctx)
	if err != nil {
		var changeErr *dbmigrate.ChangeError
		if errors.As(err, &changeErr) {
			log.Printf("migration %s failed after %d applied: %v", changeErr.Name, len(applied), changeErr.Err)
			return
		}
		log.Fatal(err)
	}
	log.Printf("applied %d migration(s)", len(applied))
}
