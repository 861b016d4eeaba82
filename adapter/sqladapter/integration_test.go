/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package sqladapter

import (
	"context"
	"errors"
	gotesting "testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/change"
	"github.com/acronis/go-dbmigrate/distrlock"
	"github.com/acronis/go-dbmigrate/internal/testing"
)

func TestAdapterWithTestDB(t *gotesting.T) {
	if gotesting.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	for _, dialect := range []dbmigrate.Dialect{dbmigrate.DialectPostgres, dbmigrate.DialectMySQL} {
		t.Run(string(dialect), func(t *gotesting.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
			defer cancel()

			db, stop := testing.MustRunAndOpenTestDB(ctx, dialect)
			defer func() { require.NoError(t, stop(ctx)) }()

			a, err := NewWithDB(db, dialect, nil, WithMigrationsTable("app_migrations"))
			require.NoError(t, err)
			require.NoError(t, a.Connect(ctx))
			require.NoError(t, a.EnsureChangeLog(ctx, change.KindMigration))
			require.NoError(t, a.EnsureChangeLog(ctx, change.KindMigration))

			def := &change.Definition{
				Kind:    change.KindMigration,
				ID:      "2025-01-01T00-00-00-000Z_create_items.sql",
				Name:    "create_items",
				Forward: "CREATE TABLE items (id INTEGER PRIMARY KEY);\nINSERT INTO items (id) VALUES (1);",
				Reverse: "DROP TABLE items;",
			}
			require.NoError(t, a.Apply(ctx, def))
			require.NoError(t, a.MarkApplied(ctx, def))
			require.NoError(t, a.MarkApplied(ctx, def))

			records, err := a.ReadExecutionLog(ctx, change.KindMigration)
			require.NoError(t, err)
			require.Len(t, records, 1)
			require.True(t, records[0].Applied)

			err = a.RunExclusively(ctx, "dbmigrate:migration", time.Minute, func(ctx context.Context) error {
				nestedErr := a.RunExclusively(ctx, "dbmigrate:migration", time.Minute, func(ctx context.Context) error {
					return nil
				})
				require.True(t, errors.Is(nestedErr, distrlock.ErrLockAlreadyAcquired))
				require.NoError(t, a.Revert(ctx, def))
				return a.MarkReverted(ctx, def)
			})
			require.NoError(t, err)

			records, err = a.ReadExecutionLog(ctx, change.KindMigration)
			require.NoError(t, err)
			require.Len(t, records, 1)
			require.False(t, records[0].Applied)

			// The adapter doesn't own the connection.
			require.NoError(t, a.Disconnect(ctx))
			require.NoError(t, db.PingContext(ctx))
		})
	}
}
