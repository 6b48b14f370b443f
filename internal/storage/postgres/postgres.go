// Package postgres provides the PostgreSQL-backed storage.Store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/mmynk/splitledger/internal/storage/sqlstore"
)

// SQLSTATEs that mean "try again".
const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
	lockNotAvailable     = "55P03"
)

// New connects to databaseURL, verifies the connection and runs migrations.
func New(ctx context.Context, databaseURL string) (*sqlstore.Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return sqlstore.New(db, Dialect{}), nil
}

// Open wraps an existing handle without migrating it.
func Open(db *sql.DB) *sqlstore.Store {
	return sqlstore.New(db, Dialect{})
}

// Dialect is the PostgreSQL flavour of sqlstore.Dialect.
type Dialect struct{}

// Rebind turns ? placeholders into $1, $2, ...
func (Dialect) Rebind(query string) string {
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

// IsContention reports serialization failures, deadlocks and lock timeouts.
func (Dialect) IsContention(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case serializationFailure, deadlockDetected, lockNotAvailable:
		return true
	}
	return false
}
