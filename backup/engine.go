package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/visecure/securecore/internal/cryptox"
	"github.com/visecure/securecore/internal/dbx"
	"github.com/visecure/securecore/internal/logging"
	"github.com/visecure/securecore/internal/repositories/settings"
	"github.com/visecure/securecore/vault"
)

// Partial-export limits for optical-code-class channels.
const (
	MaxPartialItems         = 5
	MaxPartialEnvelopeBytes = 2048
)

// InternalSettingsPrefix marks settings that never leave the device (for
// example the session token secret). Export skips them and import leaves
// them untouched.
const InternalSettingsPrefix = "internal."

// ImportedTitleSuffix marks items brought in through a partial import.
const ImportedTitleSuffix = " (Imported)"

// ImportPlan tells the caller what a full import would destroy before it
// commits. Confirming destructive intent is the caller's UX, not the
// engine's.
type ImportPlan struct {
	// Incoming is the number of items the payload carries.
	Incoming int

	// Overwrites is the number of existing local items the import will
	// destroy.
	Overwrites int

	// CreatedAt is when the backup was produced.
	CreatedAt time.Time

	// Device describes the origin device, when the payload names one.
	Device *DeviceInfo
}

// Engine assembles, seals, and restores backup payloads.
type Engine struct {
	db       *sql.DB
	vault    *vault.Store
	settings settings.Repository
	log      logging.Logger
	now      func() time.Time
}

// NewEngine constructs the backup engine.
func NewEngine(db *sql.DB, vaultStore *vault.Store, settingsRepo settings.Repository, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		db:       db,
		vault:    vaultStore,
		settings: settingsRepo,
		log:      log,
		now:      time.Now,
	}
}

// Export assembles the full state (all vault items plus exportable
// settings), checksums it, and seals it under password. The returned
// envelope is the only artifact; the engine records bookkeeping metadata
// but never the payload itself.
func (e *Engine) Export(ctx context.Context, password string) (string, error) {
	items, err := e.vault.List(ctx)
	if err != nil {
		return "", err
	}

	exportable, err := e.exportableSettings(ctx)
	if err != nil {
		return "", err
	}

	now := e.now()
	payload := &Payload{
		Version:    PayloadVersion,
		Timestamp:  now,
		VaultItems: items,
		Settings:   exportable,
		Device:     LocalDevice(now),
	}
	payload.Checksum, err = payloadChecksum(items, exportable)
	if err != nil {
		return "", err
	}

	envelope, err := e.seal(payload, password)
	if err != nil {
		return "", err
	}

	meta := &Metadata{
		ID:        uuid.NewString(),
		CreatedAt: now,
		Size:      len(envelope),
		ItemCount: len(items),
	}
	if err := NewSQLiteMetadataRepository(e.db).Insert(ctx, meta); err != nil {
		return "", err
	}

	e.log.Info(ctx, "backup exported", "items", len(items), "size", len(envelope))
	return envelope, nil
}

// Preview opens an envelope and reports what a full import would do,
// without changing anything. Callers use it to confirm destructive intent.
func (e *Engine) Preview(ctx context.Context, envelope, password string) (*ImportPlan, error) {
	payload, err := e.open(envelope, password)
	if err != nil {
		return nil, err
	}

	existing, err := e.vault.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &ImportPlan{
		Incoming:   len(payload.VaultItems),
		Overwrites: existing,
		CreatedAt:  payload.Timestamp,
		Device:     payload.Device,
	}, nil
}

// Import restores a full backup: it clears the vault and exportable
// settings and writes every item and setting from the payload, in one
// transaction. The origin device, when named, is added to the registry.
// Callers must have confirmed destructive intent via Preview.
func (e *Engine) Import(ctx context.Context, envelope, password string) error {
	payload, err := e.open(envelope, password)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		vaultRepo := vault.NewSQLiteRepository(tx)
		if err := vaultRepo.Clear(ctx); err != nil {
			return err
		}
		for _, item := range payload.VaultItems {
			if err := vaultRepo.Upsert(ctx, item); err != nil {
				return err
			}
		}

		settingsRepo := settings.NewSQLiteRepository(tx)
		existing, err := settingsRepo.List(ctx)
		if err != nil {
			return err
		}
		for key := range existing {
			if strings.HasPrefix(key, InternalSettingsPrefix) {
				continue
			}
			if err := settingsRepo.Delete(ctx, key); err != nil {
				return err
			}
		}
		for key, value := range payload.Settings {
			if err := settingsRepo.Set(ctx, key, []byte(value)); err != nil {
				return err
			}
		}

		if payload.Device != nil {
			if err := NewSQLiteDeviceRepository(tx).Upsert(ctx, payload.Device); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.log.Info(ctx, "backup imported", "items", len(payload.VaultItems))
	return nil
}

// ExportPartial seals a caller-chosen subset of items into the compact
// format for narrow channels. Over-budget selections fail before
// encryption; nothing is ever truncated.
func (e *Engine) ExportPartial(ctx context.Context, itemIDs []string, password string) (string, error) {
	if len(itemIDs) == 0 {
		return "", ErrNoItems
	}
	if len(itemIDs) > MaxPartialItems {
		return "", fmt.Errorf("%w: %d items, limit %d", ErrTooManyItems, len(itemIDs), MaxPartialItems)
	}

	items := make([]*vault.Item, 0, len(itemIDs))
	for _, id := range itemIDs {
		item, err := e.vault.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if item == nil {
			return "", fmt.Errorf("%w: %s", vault.ErrNotFound, id)
		}
		items = append(items, item)
	}

	payload := &Payload{
		Version:    PayloadVersion,
		Timestamp:  e.now(),
		VaultItems: items,
	}
	var err error
	payload.Checksum, err = payloadChecksum(items, nil)
	if err != nil {
		return "", err
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}
	if size := cryptox.EncodedEnvelopeLen(len(plaintext)); size > MaxPartialEnvelopeBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, size, MaxPartialEnvelopeBytes)
	}

	return cryptox.Encrypt(plaintext, password)
}

// ImportPartial merges a compact envelope into the vault in one
// transaction. Every item gets a fresh id and an imported title marker, so
// transfers never silently collide with local items that happen to share
// the origin's ids.
func (e *Engine) ImportPartial(ctx context.Context, envelope, password string) error {
	payload, err := e.open(envelope, password)
	if err != nil {
		return err
	}

	now := e.now()
	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		vaultRepo := vault.NewSQLiteRepository(tx)
		for _, item := range payload.VaultItems {
			item.ID = uuid.NewString()
			if !strings.HasSuffix(item.Title, ImportedTitleSuffix) {
				item.Title += ImportedTitleSuffix
			}
			item.CreatedAt = now
			item.UpdatedAt = now
			if err := vaultRepo.Upsert(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.log.Info(ctx, "partial backup imported", "items", len(payload.VaultItems))
	return nil
}

// RegisterDevice adds or refreshes a device record. Advisory bookkeeping
// only; registration grants nothing.
func (e *Engine) RegisterDevice(ctx context.Context, d *DeviceInfo) error {
	if d.ID == "" || d.Name == "" {
		return fmt.Errorf("backup: device id and name are required")
	}
	if d.PlatformClass == "" {
		d.PlatformClass = PlatformOther
	}
	return NewSQLiteDeviceRepository(e.db).Upsert(ctx, d)
}

// ListDevices returns the known devices, most recently synced first.
func (e *Engine) ListDevices(ctx context.Context) ([]*DeviceInfo, error) {
	return NewSQLiteDeviceRepository(e.db).List(ctx)
}

// Stats returns backup bookkeeping, newest first.
func (e *Engine) Stats(ctx context.Context) ([]*Metadata, error) {
	return NewSQLiteMetadataRepository(e.db).List(ctx)
}

// PruneMetadata deletes all but the newest keep metadata records.
func (e *Engine) PruneMetadata(ctx context.Context, keep int) error {
	return NewSQLiteMetadataRepository(e.db).Prune(ctx, keep)
}

func (e *Engine) seal(payload *Payload, password string) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}
	return cryptox.Encrypt(plaintext, password)
}

// open decrypts and validates an envelope. A malformed inner document is
// reported as an integrity failure, indistinguishable from tampering.
func (e *Engine) open(envelope, password string) (*Payload, error) {
	plaintext, err := cryptox.Decrypt(envelope, password)
	if err != nil {
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", cryptox.ErrIntegrity)
	}
	if err := payload.verify(); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (e *Engine) exportableSettings(ctx context.Context) (map[string]string, error) {
	all, err := e.settings.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(all))
	for key, value := range all {
		if strings.HasPrefix(key, InternalSettingsPrefix) {
			continue
		}
		out[key] = string(value)
	}
	return out, nil
}
