/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package sqladapter

import (
	"fmt"
	"regexp"

	"github.com/acronis/go-dbmigrate"
)

// Default names of the tables storing execution records and advisory locks.
const (
	DefaultMigrationsTable = "schema_migrations"
	DefaultSeedsTable      = "schema_seeds"
	DefaultLocksTable      = "schema_migration_locks"
)

var tableNameRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateTableName(name string) error {
	if !tableNameRegexp.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// createTableSQL returns the dialect-specific DDL for creating an execution log table.
func createTableSQL(dialect dbmigrate.Dialect, tableName string) (string, error) {
	switch dialect {
	case dbmigrate.DialectMySQL:
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` ("+`
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			source_ref VARCHAR(1024) NOT NULL,
			applied_at DATETIME(6) NOT NULL,
			applied BOOLEAN NOT NULL DEFAULT 1
		)`, tableName), nil

	case dbmigrate.DialectPostgres, dbmigrate.DialectPgx:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			source_ref VARCHAR(1024) NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			applied BOOLEAN NOT NULL DEFAULT true
		)`, tableName), nil

	case dbmigrate.DialectSQLite:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			source_ref VARCHAR(1024) NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			applied BOOLEAN NOT NULL DEFAULT 1
		)`, tableName), nil

	case dbmigrate.DialectMSSQL:
		// MSSQL doesn't support CREATE TABLE IF NOT EXISTS, use conditional check
		return fmt.Sprintf(`IF NOT EXISTS (SELECT * FROM sys.tables WHERE name = '%s')
			CREATE TABLE [%s] (
				id VARCHAR(255) NOT NULL PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				source_ref VARCHAR(1024) NOT NULL,
				applied_at DATETIME2 NOT NULL,
				applied BIT NOT NULL DEFAULT 1
			)`, tableName, tableName), nil

	default:
		return "", fmt.Errorf("unsupported dialect: %s", dialect)
	}
}
