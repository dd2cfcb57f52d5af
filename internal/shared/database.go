package shared

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens a connection to a SQLite database at the specified path.
// The path can be ":memory:" for an in-memory database.
// Returns an open database connection or an error if connection fails.
func NewDatabase(path string) (*sql.DB, error) {
	db, err := openAndPing(DriverSQLite, path)
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// OpenDatabase opens the database described by cfg and applies its pool settings.
func OpenDatabase(cfg DatabaseConfig) (*sql.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverPostgres {
		db, err := openAndPing(DriverPostgres, dsn)
		if err != nil {
			return nil, err
		}
		ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
		return db, nil
	}

	db, err := NewDatabase(dsn)
	if err != nil {
		return nil, err
	}
	if dsn != ":memory:" {
		ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	return db, nil
}

func openAndPing(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
// Recommended for production use to limit connections and improve performance.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}

// Rebind rewrites "?" placeholders into the positional form the driver expects.
//
// Queries in this module are written for sqlite3; postgres needs $1, $2, ...
func Rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// DriverOf reports which dialect db was opened with.
func DriverOf(db *sql.DB) string {
	if _, ok := db.Driver().(*pq.Driver); ok {
		return DriverPostgres
	}
	return DriverSQLite
}
