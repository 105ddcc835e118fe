package bunstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Supported driver names for Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// MemoryDSN is a shared in-memory SQLite database.
const MemoryDSN = "file::memory:?cache=shared"

// Open connects to the database named by driver and returns a Bun handle
// with the matching dialect.
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		return bun.NewDB(sqldb, pgdialect.New()), nil

	case DriverSQLite:
		if dsn == "" {
			dsn = MemoryDSN
		}
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("vmjobs/bun: open sqlite: %w", err)
		}
		// SQLite serializes writers; one connection avoids SQLITE_BUSY.
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil

	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("vmjobs/bun: parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("vmjobs/bun: mysql connector: %w", err)
		}
		return bun.NewDB(sql.OpenDB(connector), mysqldialect.New()), nil

	default:
		return nil, fmt.Errorf("vmjobs/bun: unsupported driver %q", driver)
	}
}
