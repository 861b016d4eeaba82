/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package distrlock

import (
	"fmt"
	"strconv"
	"time"

	"github.com/acronis/go-dbmigrate"
)

type queries struct {
	createTable string
	initLock    string
	acquireLock string
	releaseLock string
	extendLock  string
	interval    func(ttl time.Duration) string
}

// dialectSyntax describes how expiration is stored and compared in a dialect.
type dialectSyntax struct {
	quote       func(name string) string
	placeholder func(n int) string
	tokenType   string
	expireType  string
	now         string
	nowPlus     func(arg string) string
	insertNew   string // format of the statement inserting a row if it's absent, args: table, placeholder
	interval    func(ttl time.Duration) string
}

func microseconds(ttl time.Duration) string {
	return strconv.FormatInt(ttl.Microseconds(), 10)
}

func questionPlaceholder(int) string { return "?" }

// SQLite has no sub-second clock function, so expiration is kept as microseconds since the epoch
// computed from julianday (millisecond precision).
const sqliteNowMicros = "CAST((julianday('now') - 2440587.5) * 86400000000.0 AS INTEGER)"

var syntaxes = map[dbmigrate.Dialect]dialectSyntax{
	dbmigrate.DialectPostgres: {
		quote:       func(name string) string { return `"` + name + `"` },
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		tokenType:   "uuid",
		expireType:  "timestamp",
		now:         "NOW()",
		nowPlus:     func(arg string) string { return "NOW() + " + arg + "::interval" },
		insertNew:   "INSERT INTO %s (lock_key) VALUES (%s) ON CONFLICT (lock_key) DO NOTHING",
		interval:    func(ttl time.Duration) string { return microseconds(ttl) + " microseconds" },
	},
	dbmigrate.DialectMySQL: {
		quote:       func(name string) string { return "`" + name + "`" },
		placeholder: questionPlaceholder,
		tokenType:   "VARCHAR(36)",
		expireType:  "BIGINT",
		now:         "UNIX_TIMESTAMP(CURTIME(4))*10000",
		nowPlus: func(arg string) string {
			return "UNIX_TIMESTAMP(DATE_ADD(CURTIME(4), INTERVAL " + arg + " MICROSECOND))*10000"
		},
		insertNew: "INSERT IGNORE %s (lock_key) VALUES (%s)",
		interval:  microseconds,
	},
	dbmigrate.DialectSQLite: {
		quote:       func(name string) string { return `"` + name + `"` },
		placeholder: questionPlaceholder,
		tokenType:   "VARCHAR(36)",
		expireType:  "INTEGER",
		now:         sqliteNowMicros,
		nowPlus:     func(arg string) string { return sqliteNowMicros + " + CAST(" + arg + " AS INTEGER)" },
		insertNew:   "INSERT OR IGNORE INTO %s (lock_key) VALUES (%s)",
		interval:    microseconds,
	},
}

func newQueries(dialect dbmigrate.Dialect, tableName string) (queries, error) {
	if dialect == dbmigrate.DialectPgx {
		dialect = dbmigrate.DialectPostgres
	}
	s, ok := syntaxes[dialect]
	if !ok {
		return queries{}, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}
	table, p := s.quote(tableName), s.placeholder
	return queries{
		createTable: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (lock_key VARCHAR(%d) PRIMARY KEY, token %s, expire_at %s)",
			table, MaxKeyLength, s.tokenType, s.expireType),
		initLock: fmt.Sprintf(s.insertNew, table, p(1)),
		acquireLock: fmt.Sprintf("UPDATE %s SET expire_at = %s, token = %s WHERE lock_key = %s AND "+
			"(expire_at IS NULL OR expire_at < %s OR token = %s)",
			table, s.nowPlus(p(1)), p(2), p(3), s.now, p(4)),
		releaseLock: fmt.Sprintf("UPDATE %s SET expire_at = NULL WHERE lock_key = %s AND token = %s AND expire_at >= %s",
			table, p(1), p(2), s.now),
		extendLock: fmt.Sprintf("UPDATE %s SET expire_at = %s WHERE lock_key = %s AND token = %s AND expire_at >= %s",
			table, s.nowPlus(p(1)), p(2), p(3), s.now),
		interval: s.interval,
	}, nil
}
