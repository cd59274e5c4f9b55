// Package store persists the script library with database migrations.
// SQLite is the default backend; a shared library can live in Postgres
// instead by switching the driver in the configuration.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mytalk-labs/mytalk/pkg/core"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore implements core.Store on database/sql.
type SQLStore struct {
	driver string
	dsn    string
	db     *sql.DB
}

var _ core.Store = (*SQLStore)(nil)

// New creates a store for the given driver and DSN. For SQLite the DSN
// is a file path (or ":memory:").
func New(driver, dsn string) *SQLStore {
	if driver == "" {
		driver = DriverSQLite
	}
	return &SQLStore{driver: driver, dsn: dsn}
}

// Open connects to the database and verifies the connection.
func (s *SQLStore) Open() error {
	var driverName string
	switch s.driver {
	case DriverSQLite:
		driverName = "sqlite"
		if s.dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(s.dsn), 0o755); err != nil {
				return fmt.Errorf("failed to create library dir: %w", err)
			}
		}
	case DriverPostgres:
		driverName = "pgx"
	default:
		return fmt.Errorf("unsupported library driver: %q", s.driver)
	}

	db, err := sql.Open(driverName, s.dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", s.driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping %s database: %w", s.driver, err)
	}

	if s.driver == DriverSQLite {
		// A single connection keeps in-memory databases coherent and
		// sidesteps SQLite's single-writer lock contention.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the configured DSN.
func (s *SQLStore) Path() string { return s.dsn }

// q rewrites ? placeholders to $N for Postgres. SQLite queries pass
// through untouched.
func (s *SQLStore) q(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}
