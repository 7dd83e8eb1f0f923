package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/visecure/securecore/internal/dbx"
)

// Repository persists the single credential record.
type Repository interface {
	// Get returns the credential record, or nil if the device has never
	// been set up.
	Get(ctx context.Context) (*Record, error)

	// Save inserts or replaces the credential record.
	Save(ctx context.Context, rec *Record) error

	// Delete removes the credential record (full reset only).
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

func (r *SQLiteRepository) Get(ctx context.Context) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT hash, salt, setup_at, device_fingerprint, failed_attempts, locked_until
		FROM credential WHERE id = 1`)

	var (
		rec         Record
		setupAt     int64
		lockedUntil sql.NullInt64
	)
	err := row.Scan(&rec.Hash, &rec.Salt, &setupAt, &rec.DeviceFingerprint,
		&rec.FailedAttempts, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	rec.SetupAt = time.Unix(setupAt, 0)
	if lockedUntil.Valid {
		t := time.Unix(lockedUntil.Int64, 0)
		rec.LockedUntil = &t
	}
	return &rec, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, rec *Record) error {
	var lockedUntil any
	if rec.LockedUntil != nil {
		lockedUntil = rec.LockedUntil.Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credential (id, hash, salt, setup_at, device_fingerprint, failed_attempts, locked_until)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hash = excluded.hash,
			salt = excluded.salt,
			setup_at = excluded.setup_at,
			device_fingerprint = excluded.device_fingerprint,
			failed_attempts = excluded.failed_attempts,
			locked_until = excluded.locked_until
	`, rec.Hash, rec.Salt, rec.SetupAt.Unix(), rec.DeviceFingerprint,
		rec.FailedAttempts, lockedUntil)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM credential WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}
