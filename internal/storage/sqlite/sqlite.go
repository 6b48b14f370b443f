// Package sqlite provides the SQLite-backed storage.Store.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/splitledger/internal/storage/sqlstore"
)

// pragmas are applied to every pooled connection. Transactions stay
// deferred so a stale writer fails fast with SQLITE_BUSY instead of
// waiting on a snapshot it can never upgrade.
const pragmas = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// New opens the database at dbPath, creating parent directories and running
// migrations.
func New(dbPath string) (*sqlstore.Store, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return sqlstore.New(db, Dialect{}), nil
}

// Dialect is the SQLite flavour of sqlstore.Dialect.
type Dialect struct{}

// Rebind is a no-op; SQLite understands ? placeholders.
func (Dialect) Rebind(query string) string { return query }

// IsContention reports SQLITE_BUSY and SQLITE_LOCKED, including their
// extended codes.
func (Dialect) IsContention(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
