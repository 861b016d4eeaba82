/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package distrlock

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-dbmigrate"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "locks.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func newSQLiteManager(t *testing.T, db *sql.DB) *SQLManager {
	t.Helper()
	m, err := NewSQLManager(dbmigrate.DialectSQLite)
	require.NoError(t, err)
	require.NoError(t, m.EnsureTable(context.Background(), db))
	require.NoError(t, m.EnsureTable(context.Background(), db))
	return m
}

func TestNewQueries(t *testing.T) {
	tests := []struct {
		dialect         dbmigrate.Dialect
		wantCreateTable string
		wantAcquireLock string
	}{
		{
			dialect:         dbmigrate.DialectPostgres,
			wantCreateTable: `CREATE TABLE IF NOT EXISTS "my_locks" (lock_key VARCHAR(40) PRIMARY KEY, token uuid, expire_at timestamp)`,
			wantAcquireLock: `UPDATE "my_locks" SET expire_at = NOW() + $1::interval, token = $2 WHERE lock_key = $3 AND ` +
				`(expire_at IS NULL OR expire_at < NOW() OR token = $4)`,
		},
		{
			dialect:         dbmigrate.DialectPgx,
			wantCreateTable: `CREATE TABLE IF NOT EXISTS "my_locks" (lock_key VARCHAR(40) PRIMARY KEY, token uuid, expire_at timestamp)`,
			wantAcquireLock: `UPDATE "my_locks" SET expire_at = NOW() + $1::interval, token = $2 WHERE lock_key = $3 AND ` +
				`(expire_at IS NULL OR expire_at < NOW() OR token = $4)`,
		},
		{
			dialect:         dbmigrate.DialectMySQL,
			wantCreateTable: "CREATE TABLE IF NOT EXISTS `my_locks` (lock_key VARCHAR(40) PRIMARY KEY, token VARCHAR(36), expire_at BIGINT)",
			wantAcquireLock: "UPDATE `my_locks` SET expire_at = UNIX_TIMESTAMP(DATE_ADD(CURTIME(4), INTERVAL ? MICROSECOND))*10000, " +
				"token = ? WHERE lock_key = ? AND (expire_at IS NULL OR expire_at < UNIX_TIMESTAMP(CURTIME(4))*10000 OR token = ?)",
		},
		{
			dialect:         dbmigrate.DialectSQLite,
			wantCreateTable: `CREATE TABLE IF NOT EXISTS "my_locks" (lock_key VARCHAR(40) PRIMARY KEY, token VARCHAR(36), expire_at INTEGER)`,
			wantAcquireLock: `UPDATE "my_locks" SET expire_at = ` + sqliteNowMicros + ` + CAST(? AS INTEGER), token = ? ` +
				`WHERE lock_key = ? AND (expire_at IS NULL OR expire_at < ` + sqliteNowMicros + ` OR token = ?)`,
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			m, err := NewSQLManager(tt.dialect, WithTableName("my_locks"))
			require.NoError(t, err)
			require.Equal(t, tt.wantCreateTable, m.CreateTableSQL())
			require.Equal(t, tt.wantAcquireLock, m.queries.acquireLock)
		})
	}

	_, err := NewSQLManager(dbmigrate.DialectMSSQL)
	require.ErrorIs(t, err, ErrUnsupportedDialect)
}

func TestIntervals(t *testing.T) {
	pg, err := newQueries(dbmigrate.DialectPostgres, DefaultTableName)
	require.NoError(t, err)
	require.Equal(t, "1500000 microseconds", pg.interval(1500*time.Millisecond))

	my, err := newQueries(dbmigrate.DialectMySQL, DefaultTableName)
	require.NoError(t, err)
	require.Equal(t, "60000000", my.interval(time.Minute))
}

func TestNewLockValidatesKey(t *testing.T) {
	db := openSQLite(t)
	m := newSQLiteManager(t, db)

	_, err := m.NewLock(context.Background(), db, "")
	require.EqualError(t, err, "lock key cannot be empty")

	_, err = m.NewLock(context.Background(), db, string(make([]byte, MaxKeyLength+1)))
	require.EqualError(t, err, "lock key cannot be longer than 40 symbols")
}

func TestSQLLock(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	m := newSQLiteManager(t, db)

	lock1, err := m.NewLock(ctx, db, "dbmigrate:migration")
	require.NoError(t, err)
	lock2, err := m.NewLock(ctx, db, "dbmigrate:migration")
	require.NoError(t, err)
	require.Equal(t, "dbmigrate:migration", lock1.Key())
	require.Empty(t, lock1.Token())

	require.NoError(t, lock1.Acquire(ctx, time.Minute))
	require.NotEmpty(t, lock1.Token())

	require.ErrorIs(t, lock2.Acquire(ctx, time.Minute), ErrLockAlreadyAcquired)
	require.Empty(t, lock2.Token())

	require.NoError(t, lock1.Extend(ctx))
	require.NoError(t, lock1.Release(ctx))
	require.ErrorIs(t, lock1.Release(ctx), ErrLockAlreadyReleased)
	require.ErrorIs(t, lock1.Extend(ctx), ErrLockAlreadyReleased)

	require.NoError(t, lock2.Acquire(ctx, time.Minute))
	require.NoError(t, lock2.Release(ctx))
}

func TestSQLLockExpires(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	m := newSQLiteManager(t, db)

	lock1, err := m.NewLock(ctx, db, "expiring")
	require.NoError(t, err)
	require.NoError(t, lock1.Acquire(ctx, 50*time.Millisecond))

	time.Sleep(100 * time.Millisecond)

	lock2, err := m.NewLock(ctx, db, "expiring")
	require.NoError(t, err)
	require.NoError(t, lock2.Acquire(ctx, time.Minute))
	require.ErrorIs(t, lock1.Extend(ctx), ErrLockAlreadyReleased)
}

func TestRunWithSQLLock(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	m := newSQLiteManager(t, db)

	const key = "exclusive-job"
	lock, err := m.NewLock(ctx, db, key)
	require.NoError(t, err)

	var called bool
	err = Run(ctx, lock, func(ctx context.Context) error {
		called = true
		other, lockErr := m.NewLock(ctx, db, key)
		require.NoError(t, lockErr)
		require.ErrorIs(t, other.Acquire(ctx, time.Minute), ErrLockAlreadyAcquired)
		return nil
	}, WithTTL(time.Minute))
	require.NoError(t, err)
	require.True(t, called)

	// The lock is released when the function is finished.
	other, err := m.NewLock(ctx, db, key)
	require.NoError(t, err)
	require.NoError(t, other.Acquire(ctx, time.Minute))
	require.NoError(t, other.Release(ctx))
}
