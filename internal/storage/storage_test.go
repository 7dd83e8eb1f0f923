package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesSchema(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "core.db")

	db, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range []string{
		"credential", "session", "biometric", "vault", "settings", "devices", "backup_metadata",
	} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		require.NoError(t, err, "table %s must exist", table)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "core.db")

	db, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// A second run must be a no-op, not an error.
	require.NoError(t, RunMigrations(context.Background(), db))
}
