package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/visecure/securecore/internal/dbx"
)

// Repository persists the single session record.
type Repository interface {
	// Get returns the current session, or nil if none exists.
	Get(ctx context.Context) (*Record, error)

	// Save inserts or replaces the session record.
	Save(ctx context.Context, rec *Record) error

	// Delete removes the session record. Deleting an absent record is not
	// an error.
	Delete(ctx context.Context) error
}

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
// The session table holds at most one row (id = 1).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT session_id, expires_at, last_activity, authenticated, method
		FROM session WHERE id = 1`)

	var (
		rec           Record
		expiresAt     int64
		lastActivity  int64
		authenticated int
		method        string
	)
	err := row.Scan(&rec.SessionID, &expiresAt, &lastActivity, &authenticated, &method)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rec.ExpiresAt = time.Unix(expiresAt, 0)
	rec.LastActivity = time.Unix(lastActivity, 0)
	rec.Authenticated = authenticated != 0
	rec.Method = Method(method)
	return &rec, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, rec *Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session (id, session_id, expires_at, last_activity, authenticated, method)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			expires_at = excluded.expires_at,
			last_activity = excluded.last_activity,
			authenticated = excluded.authenticated,
			method = excluded.method
	`, rec.SessionID, rec.ExpiresAt.Unix(), rec.LastActivity.Unix(),
		boolToInt(rec.Authenticated), string(rec.Method))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
