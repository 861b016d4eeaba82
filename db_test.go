/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package dbmigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/acronis/go-appkit/config"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		ping    bool
		wantErr bool
	}{
		{
			name: "successful open with ping",
			cfg: &Config{
				Dialect:         DialectSQLite,
				SQLite:          SQLiteConfig{Path: ":memory:"},
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: config.TimeDuration(time.Minute * 10),
			},
			ping:    true,
			wantErr: false,
		},
		{
			name: "error on open",
			cfg: &Config{
				Dialect:         Dialect("unknown"),
				SQLite:          SQLiteConfig{Path: ":memory:"},
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: config.TimeDuration(time.Minute * 10),
			},
			ping:    false,
			wantErr: true,
		},
		{
			name: "error on ping",
			cfg: &Config{
				Dialect:         DialectSQLite,
				SQLite:          SQLiteConfig{Path: "internal"}, // directory is not a valid path
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: config.TimeDuration(time.Minute * 10),
			},
			ping:    true,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbConn, err := Open(tt.cfg, tt.ping)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.NotNil(t, dbConn)
			}
		})
	}
}

func TestDoInTx(t *testing.T) {
	tests := []struct {
		name         string
		initMock     func(m sqlmock.Sqlmock)
		fn           func(tx *sql.Tx) error
		wantErr      error
		wantPanicErr error
	}{
		{
			name: "success",
			initMock: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectCommit()
			},
			fn: func(tx *sql.Tx) error {
				return nil
			},
		},
		{
			name: "error on begin",
			initMock: func(m sqlmock.Sqlmock) {
				m.ExpectBegin().WillReturnError(fmt.Errorf("begin error"))
			},
			fn: func(tx *sql.Tx) error {
				return nil
			},
			wantErr: fmt.Errorf("begin tx: begin error"),
		},
		{
			name: "error on commit",
			initMock: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectCommit().WillReturnError(fmt.Errorf("commit error"))
			},
			fn: func(tx *sql.Tx) error {
				return nil
			},
			wantErr: fmt.Errorf("commit tx: commit error"),
		},
		{
			name: "error in func",
			initMock: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectRollback()
			},
			fn: func(tx *sql.Tx) error {
				return fmt.Errorf("fn error")
			},
			wantErr: fmt.Errorf("fn error"),
		},
		{
			name: "panic in func",
			initMock: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectRollback()
			},
			fn: func(tx *sql.Tx) error {
				panic(fmt.Errorf("panic"))
			},
			wantPanicErr: fmt.Errorf("panic"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() {
				require.NoError(t, mock.ExpectationsWereMet())
			}()

			tt.initMock(mock)

			if tt.wantPanicErr != nil {
				require.PanicsWithError(t, tt.wantPanicErr.Error(), func() {
					_ = DoInTx(context.Background(), db, tt.fn)
				})
				return
			}
			err = DoInTx(context.Background(), db, tt.fn)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.wantErr.Error())
		})
	}
}

func TestDoInTxWithIsolationLevel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() {
		require.NoError(t, mock.ExpectationsWereMet())
	}()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE counters").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = DoInTx(context.Background(), db, func(tx *sql.Tx) error {
		_, execErr := tx.Exec("UPDATE counters SET value = value + 1")
		return execErr
	}, WithIsolationLevel(sql.LevelSerializable))
	require.NoError(t, err)
}

func TestPingWithRetries(t *testing.T) {
	pingErr := errors.New("connection refused")

	tests := []struct {
		name         string
		retries      int
		failAttempts int
		wantErr      error
		wantAttempts int
	}{
		{
			name:         "no retries, success",
			retries:      0,
			wantAttempts: 1,
		},
		{
			name:         "no retries, failure",
			retries:      0,
			failAttempts: 1,
			wantErr:      pingErr,
			wantAttempts: 1,
		},
		{
			name:         "success after retries",
			retries:      3,
			failAttempts: 2,
			wantAttempts: 3,
		},
		{
			name:         "retries exhausted",
			retries:      2,
			failAttempts: 10,
			wantErr:      pingErr,
			wantAttempts: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int
			err := PingWithRetries(context.Background(), tt.retries, func(ctx context.Context) error {
				attempts++
				if attempts <= tt.failAttempts {
					return pingErr
				}
				return nil
			})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantAttempts, attempts)
		})
	}
}

func TestOpenContextUnsupportedDialect(t *testing.T) {
	_, err := OpenContext(context.Background(), &Config{Dialect: DialectMongoDB}, false)
	require.EqualError(t, err, `unsupported SQL dialect "mongodb"`)
}
