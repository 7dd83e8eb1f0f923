// Package storage opens the local sqlite database backing the security core
// and brings its schema up to date.
//
// The database is the persistence collaborator described by the core's
// contract: a set of named collections (credential, session, biometric,
// vault, settings, devices, backup_metadata) with atomic get/put/delete/list
// operations. Schema versioning is handled by goose over embedded SQL
// migrations; opening a fresh or partially-migrated file always converges to
// the current schema.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/visecure/securecore/internal/migrations"
	_ "modernc.org/sqlite"
)

// Open opens (or creates) the database at dsn and runs all pending
// migrations. The caller owns the returned handle.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// RunMigrations applies the embedded schema migrations. Safe to call on an
// already-migrated database.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
