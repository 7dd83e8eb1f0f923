package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/visecure/securecore/internal/dbx"
)

// Repository persists vault items.
type Repository interface {
	// Upsert inserts the item or replaces an existing one with the same id.
	Upsert(ctx context.Context, item *Item) error

	// GetByID returns the item, or nil if no item has that id.
	GetByID(ctx context.Context, id string) (*Item, error)

	// GetAll returns every stored item ordered by id.
	GetAll(ctx context.Context) ([]*Item, error)

	// DeleteByID removes the item. Deleting a missing id is not an error.
	DeleteByID(ctx context.Context, id string) error

	// Count returns the number of stored items.
	Count(ctx context.Context) (int, error)

	// Clear removes every item.
	Clear(ctx context.Context) error
}

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, item *Item) error {
	var folder any
	if item.Folder != "" {
		folder = item.Folder
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vault (id, kind, title, ciphertext, folder, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			title = excluded.title,
			ciphertext = excluded.ciphertext,
			folder = excluded.folder,
			updated_at = excluded.updated_at
	`, item.ID, string(item.Kind), item.Title, item.Ciphertext, folder,
		item.CreatedAt.Unix(), item.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert vault item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, title, ciphertext, folder, created_at, updated_at
		FROM vault WHERE id = ?`, id)

	item, err := scanItem(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vault item: %w", err)
	}
	return item, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, title, ciphertext, folder, created_at, updated_at
		FROM vault ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vault items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vault item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list vault items: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM vault WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vault item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vault`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count vault items: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM vault`)
	if err != nil {
		return fmt.Errorf("failed to clear vault: %w", err)
	}
	return nil
}

func scanItem(scan func(dest ...any) error) (*Item, error) {
	var (
		item      Item
		kind      string
		folder    sql.NullString
		createdAt int64
		updatedAt int64
	)
	err := scan(&item.ID, &kind, &item.Title, &item.Ciphertext, &folder, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	item.Kind = Kind(kind)
	item.Folder = folder.String
	item.CreatedAt = time.Unix(createdAt, 0)
	item.UpdatedAt = time.Unix(updatedAt, 0)
	return &item, nil
}
