package biometric

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/visecure/securecore/internal/dbx"
)

// Repository persists the single biometric binding.
type Repository interface {
	// Get returns the binding, or nil if none is registered.
	Get(ctx context.Context) (*Binding, error)

	// Save inserts or replaces the binding.
	Save(ctx context.Context, b *Binding) error

	// Delete removes the binding. Deleting a missing binding is not an
	// error.
	Delete(ctx context.Context) error
}

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context) (*Binding, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT credential_id, enabled, setup_at, last_used
		FROM biometric WHERE id = 1`)

	var (
		b        Binding
		enabled  int
		setupAt  int64
		lastUsed sql.NullInt64
	)
	err := row.Scan(&b.CredentialID, &enabled, &setupAt, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get biometric binding: %w", err)
	}

	b.Enabled = enabled != 0
	b.SetupAt = time.Unix(setupAt, 0)
	if lastUsed.Valid {
		t := time.Unix(lastUsed.Int64, 0)
		b.LastUsed = &t
	}
	return &b, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, b *Binding) error {
	var enabled int
	if b.Enabled {
		enabled = 1
	}
	var lastUsed any
	if b.LastUsed != nil {
		lastUsed = b.LastUsed.Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO biometric (id, credential_id, enabled, setup_at, last_used)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			credential_id = excluded.credential_id,
			enabled = excluded.enabled,
			setup_at = excluded.setup_at,
			last_used = excluded.last_used
	`, b.CredentialID, enabled, b.SetupAt.Unix(), lastUsed)
	if err != nil {
		return fmt.Errorf("failed to save biometric binding: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM biometric WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to delete biometric binding: %w", err)
	}
	return nil
}
