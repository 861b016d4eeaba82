/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package dbmigrate

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Default values of connection parameters added to DSNs.
const (
	SQLiteDefaultBusyTimeout = 5 * time.Second
	MongoDBDefaultAppName    = "dbmigrate"
)

// DriverNameAndDSN returns the driver name and DSN for connecting to the target database.
// For MongoDB the DSN is the connection URI passed to the client. Both are empty for an unknown dialect.
func (c *Config) DriverNameAndDSN() (driverName, dsn string) {
	switch c.Dialect {
	case DialectMySQL:
		return "mysql", MakeMySQLDSN(&c.MySQL)
	case DialectSQLite:
		return "sqlite3", MakeSQLiteDSN(&c.SQLite)
	case DialectPostgres, DialectPgx:
		return string(c.Dialect), MakePostgresDSN(&c.Postgres)
	case DialectMSSQL:
		return "mssql", MakeMSSQLDSN(&c.MSSQL)
	case DialectMongoDB:
		return "mongodb", MakeMongoDBURI(&c.MongoDB)
	}
	return "", ""
}

// MakeMySQLDSN makes DSN for opening MySQL database.
// Statements of a change body may be sent at once, and the execution log upserts
// rely on "matched" rather than "changed" rows.
func MakeMySQLDSN(cfg *MySQLConfig) string {
	c := mysql.NewConfig()
	c.Net = "tcp"
	c.Addr = hostPort(cfg.Host, cfg.Port)
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.DBName = cfg.Database
	c.ParseTime = true
	c.MultiStatements = true
	c.ClientFoundRows = true
	c.Params = map[string]string{"autocommit": "false"}
	return c.FormatDSN()
}

// MakePostgresDSN makes DSN for opening Postgres database (both lib/pq and pgx accept it).
// sslmode can't be overridden by additional parameters, search_path only when SearchPath is empty.
func MakePostgresDSN(cfg *PostgresConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = PostgresDefaultSSLMode
	}
	fixed := url.Values{"sslmode": {string(sslMode)}}
	if cfg.SearchPath != "" {
		fixed.Set("search_path", cfg.SearchPath)
	}
	return serverURL("postgres", cfg.User, cfg.Password, hostPort(cfg.Host, cfg.Port), cfg.Database,
		fixed, cfg.AdditionalParameters)
}

// MakeMSSQLDSN makes DSN for opening MSSQL database.
func MakeMSSQLDSN(cfg *MSSQLConfig) string {
	fixed := url.Values{"database": {cfg.Database}}
	return serverURL("sqlserver", cfg.User, cfg.Password, hostPort(cfg.Host, cfg.Port), "",
		fixed, cfg.AdditionalParameters)
}

// MakeSQLiteDSN makes DSN for opening SQLite database with mattn/go-sqlite3.
// Transactions are started with BEGIN IMMEDIATE, so concurrent writers (e.g. the lock extension)
// wait for the busy timeout instead of failing on lock upgrade.
func MakeSQLiteDSN(cfg *SQLiteConfig) string {
	params := url.Values{"_txlock": {"immediate"}}
	if cfg.BusyTimeout > 0 {
		params.Set("_busy_timeout", strconv.FormatInt(time.Duration(cfg.BusyTimeout).Milliseconds(), 10))
	}
	return withQuery(cfg.Path, params.Encode())
}

// MakeMongoDBURI returns the connection URI with appName added unless it's set in the URL already.
// A URL that can't be parsed is returned as is, the client reports it on connect.
func MakeMongoDBURI(cfg *MongoDBConfig) string {
	if cfg.AppName == "" {
		return cfg.URL
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return cfg.URL
	}
	for key := range u.Query() {
		if strings.EqualFold(key, "appName") {
			return cfg.URL
		}
	}
	if u.Path == "" {
		u.Path = "/"
	}
	appName := url.Values{"appName": {cfg.AppName}}.Encode()
	if u.RawQuery == "" {
		u.RawQuery = appName
	} else {
		u.RawQuery += "&" + appName
	}
	return u.String()
}

// InMemory reports whether the database lives in memory. Such a database is private to the connection
// unless a shared cache is used, so it must be accessed through a single connection.
func (c *SQLiteConfig) InMemory() bool {
	return strings.Contains(c.Path, ":memory:") || strings.Contains(c.Path, "mode=memory")
}

// serverURL makes URL-style DSN. Parameters from fixed take precedence over additional ones,
// url.Values.Encode sorts them, so DSN is deterministic.
func serverURL(scheme, user, password, host, path string, fixed url.Values, additional map[string]string) string {
	query := url.Values{}
	for k, v := range additional {
		query.Set(k, v)
	}
	for k, v := range fixed {
		query[k] = v
	}
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(user, password),
		Host:     host,
		Path:     path,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// hostPort omits the port when it's not set, so the driver uses the default one.
func hostPort(host string, port int) string {
	if port <= 0 {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func withQuery(dsn, query string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + query
	}
	return dsn + "?" + query
}
