package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/visecure/securecore/internal/dbx"
)

// Metadata is the durable record of a produced backup: when, how big, how
// many items. The envelope itself is handed to the caller, never stored.
type Metadata struct {
	ID        string
	CreatedAt time.Time
	Size      int
	ItemCount int
}

// DeviceRepository persists the advisory device registry.
type DeviceRepository interface {
	Upsert(ctx context.Context, d *DeviceInfo) error
	List(ctx context.Context) ([]*DeviceInfo, error)
	Clear(ctx context.Context) error
}

// MetadataRepository persists backup bookkeeping.
type MetadataRepository interface {
	Insert(ctx context.Context, m *Metadata) error

	// List returns metadata newest first.
	List(ctx context.Context) ([]*Metadata, error)

	// Prune deletes all but the newest keep records.
	Prune(ctx context.Context, keep int) error
}

// SQLiteDeviceRepository implements DeviceRepository using a DBTX.
type SQLiteDeviceRepository struct {
	db dbx.DBTX
}

// NewSQLiteDeviceRepository returns a repository bound to the given DBTX.
func NewSQLiteDeviceRepository(db dbx.DBTX) *SQLiteDeviceRepository {
	return &SQLiteDeviceRepository{db: db}
}

func (r *SQLiteDeviceRepository) Upsert(ctx context.Context, d *DeviceInfo) error {
	var online int
	if d.Online {
		online = 1
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, name, platform_class, last_sync, online)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			platform_class = excluded.platform_class,
			last_sync = excluded.last_sync,
			online = excluded.online
	`, d.ID, d.Name, string(d.PlatformClass), d.LastSync.Unix(), online)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

func (r *SQLiteDeviceRepository) List(ctx context.Context) ([]*DeviceInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, platform_class, last_sync, online
		FROM devices ORDER BY last_sync DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*DeviceInfo
	for rows.Next() {
		var (
			d        DeviceInfo
			platform string
			lastSync int64
			online   int
		)
		if err := rows.Scan(&d.ID, &d.Name, &platform, &lastSync, &online); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		d.PlatformClass = PlatformClass(platform)
		d.LastSync = time.Unix(lastSync, 0)
		d.Online = online != 0
		devices = append(devices, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

func (r *SQLiteDeviceRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM devices`)
	if err != nil {
		return fmt.Errorf("failed to clear devices: %w", err)
	}
	return nil
}

// SQLiteMetadataRepository implements MetadataRepository using a DBTX.
type SQLiteMetadataRepository struct {
	db dbx.DBTX
}

// NewSQLiteMetadataRepository returns a repository bound to the given DBTX.
func NewSQLiteMetadataRepository(db dbx.DBTX) *SQLiteMetadataRepository {
	return &SQLiteMetadataRepository{db: db}
}

func (r *SQLiteMetadataRepository) Insert(ctx context.Context, m *Metadata) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO backup_metadata (id, created_at, size, item_count)
		VALUES (?, ?, ?, ?)
	`, m.ID, m.CreatedAt.Unix(), m.Size, m.ItemCount)
	if err != nil {
		return fmt.Errorf("failed to insert backup metadata: %w", err)
	}
	return nil
}

func (r *SQLiteMetadataRepository) List(ctx context.Context) ([]*Metadata, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, size, item_count
		FROM backup_metadata ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup metadata: %w", err)
	}
	defer rows.Close()

	var metas []*Metadata
	for rows.Next() {
		var (
			m         Metadata
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &createdAt, &m.Size, &m.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan backup metadata: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		metas = append(metas, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list backup metadata: %w", err)
	}
	return metas, nil
}

func (r *SQLiteMetadataRepository) Prune(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM backup_metadata WHERE id NOT IN (
			SELECT id FROM backup_metadata ORDER BY created_at DESC, id LIMIT ?
		)`, keep)
	if err != nil {
		return fmt.Errorf("failed to prune backup metadata: %w", err)
	}
	return nil
}
