// Package sqlite stores the settlement journal and consumed tokens in a
// single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/instawin/merchprize/internal/infrastructure/sqlite/migrations"
)

// Store provides SQLite-backed persistence.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path. ":memory:" is accepted.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Journal returns the settlement repository.
func (s *Store) Journal() *JournalRepository {
	return &JournalRepository{db: s.db}
}

// ReplayGuard returns the consumed-token guard.
func (s *Store) ReplayGuard() *ReplayGuard {
	return &ReplayGuard{db: s.db}
}
