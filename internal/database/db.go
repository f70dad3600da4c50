package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/XSAM/otelsql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB represents the database connection
type DB struct {
	conn   *sql.DB
	driver string
}

// DriverFor picks the driver for a data source: PostgreSQL URLs and
// key=value connection strings use postgres, anything else is a SQLite path.
func DriverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return DriverPostgres
	}
	return DriverSQLite
}

// New opens and pings a database. SQLite paths get a busy timeout and WAL
// journaling and are limited to one writer connection.
func New(dsn string) (*DB, error) {
	driver := DriverFor(dsn)

	source := dsn
	if driver == DriverSQLite {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		source = dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	conn, err := otelsql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn, driver: driver}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Driver returns the name of the SQL driver in use
func (db *DB) Driver() string {
	return db.driver
}
