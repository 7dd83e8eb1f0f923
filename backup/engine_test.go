package backup

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/visecure/securecore/internal/cryptox"
	"github.com/visecure/securecore/internal/repositories/settings"
	"github.com/visecure/securecore/vault"
	_ "modernc.org/sqlite"
)

const testPassword = "Correct-Horse-9!"

func setupDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS vault (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  title TEXT NOT NULL,
  ciphertext TEXT NOT NULL,
  folder TEXT,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS devices (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  platform_class TEXT NOT NULL,
  last_sync INTEGER NOT NULL,
  online INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS backup_metadata (
  id TEXT PRIMARY KEY,
  created_at INTEGER NOT NULL,
  size INTEGER NOT NULL,
  item_count INTEGER NOT NULL
);
DELETE FROM vault; DELETE FROM settings; DELETE FROM devices; DELETE FROM backup_metadata;
`)
	require.NoError(t, err)
	return db
}

func newTestEngine(t *testing.T, name string) (*Engine, *vault.Store, settings.Repository) {
	t.Helper()
	db := setupDB(t, name)
	store := vault.NewStore(db, nil)
	settingsRepo := settings.NewSQLiteRepository(db)
	return NewEngine(db, store, settingsRepo, nil), store, settingsRepo
}

func seedItems(t *testing.T, store *vault.Store, secrets ...string) []string {
	t.Helper()
	ctx := context.Background()
	var ids []string
	for _, secret := range secrets {
		item, err := store.Put(ctx, &vault.PlainItem{
			Kind:   vault.KindPassword,
			Title:  secret,
			Secret: []byte(secret),
		}, testPassword)
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}
	return ids
}

func TestExportImport_RoundTrip(t *testing.T) {
	src, srcStore, srcSettings := newTestEngine(t, "backup_src")
	ctx := context.Background()

	seedItems(t, srcStore, "one", "two", "three")
	require.NoError(t, srcSettings.Set(ctx, "theme", []byte(`"dark"`)))
	require.NoError(t, srcSettings.Set(ctx, "internal.token_secret", []byte("local-only")))

	envelope, err := src.Export(ctx, testPassword)
	require.NoError(t, err)

	dst, dstStore, dstSettings := newTestEngine(t, "backup_dst")
	seedItems(t, dstStore, "stale")
	require.NoError(t, dstSettings.Set(ctx, "internal.token_secret", []byte("dst-secret")))

	plan, err := dst.Preview(ctx, envelope, testPassword)
	require.NoError(t, err)
	require.Equal(t, 3, plan.Incoming)
	require.Equal(t, 1, plan.Overwrites)
	require.NotNil(t, plan.Device)

	require.NoError(t, dst.Import(ctx, envelope, testPassword))

	items, err := dstStore.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		plain, err := dstStore.Reveal(ctx, item.ID, testPassword)
		require.NoError(t, err)
		require.Equal(t, plain.Title, string(plain.Secret))
	}

	theme, err := dstSettings.Get(ctx, "theme")
	require.NoError(t, err)
	require.Equal(t, []byte(`"dark"`), theme)

	// Internal settings never cross devices.
	secret, err := dstSettings.Get(ctx, "internal.token_secret")
	require.NoError(t, err)
	require.Equal(t, []byte("dst-secret"), secret)

	devices, err := dst.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1, "import registers the origin device")
}

func TestExportImport_RoundTrip_NoSettings(t *testing.T) {
	src, srcStore, _ := newTestEngine(t, "backup_src_nosettings")
	ctx := context.Background()

	// A fresh install exports nothing but internal settings, so the
	// sealed payload carries no settings field at all.
	seedItems(t, srcStore, "one", "two")
	envelope, err := src.Export(ctx, testPassword)
	require.NoError(t, err)

	dst, dstStore, _ := newTestEngine(t, "backup_dst_nosettings")

	plan, err := dst.Preview(ctx, envelope, testPassword)
	require.NoError(t, err)
	require.Equal(t, 2, plan.Incoming)

	require.NoError(t, dst.Import(ctx, envelope, testPassword))

	n, err := dstStore.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestPayloadChecksum_NilSettingsCanonical(t *testing.T) {
	withEmpty, err := payloadChecksum(nil, map[string]string{})
	require.NoError(t, err)
	withNil, err := payloadChecksum(nil, nil)
	require.NoError(t, err)
	require.Equal(t, withEmpty, withNil)
}

func TestImport_WrongPassword(t *testing.T) {
	e, store, _ := newTestEngine(t, "backup_wrongpass")
	ctx := context.Background()

	seedItems(t, store, "keep")
	envelope, err := e.Export(ctx, testPassword)
	require.NoError(t, err)

	err = e.Import(ctx, envelope, "Wrong-Pass-11!")
	require.ErrorIs(t, err, cryptox.ErrIntegrity)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n, "failed import must leave the vault untouched")
}

func TestImport_TamperedEnvelope(t *testing.T) {
	e, store, _ := newTestEngine(t, "backup_tamper")
	ctx := context.Background()

	seedItems(t, store, "keep")
	envelope, err := e.Export(ctx, testPassword)
	require.NoError(t, err)

	tampered := []byte(envelope)
	tampered[len(tampered)/2] ^= 0x01
	require.ErrorIs(t, e.Import(ctx, string(tampered), testPassword), cryptox.ErrIntegrity)

	require.ErrorIs(t, e.Import(ctx, "not-an-envelope", testPassword), cryptox.ErrIntegrity)
}

func TestPayloadChecksum_DetectsMutation(t *testing.T) {
	_, store, _ := newTestEngine(t, "backup_checksum")
	ctx := context.Background()

	seedItems(t, store, "one")
	items, err := store.List(ctx)
	require.NoError(t, err)

	sum, err := payloadChecksum(items, map[string]string{"a": "1"})
	require.NoError(t, err)

	p := &Payload{
		Version:    PayloadVersion,
		VaultItems: items,
		Settings:   map[string]string{"a": "1"},
		Checksum:   sum,
	}
	require.NoError(t, p.verify())

	p.Settings["a"] = "2"
	require.ErrorIs(t, p.verify(), cryptox.ErrIntegrity)

	p.Settings["a"] = "1"
	p.Version = "9.0.0"
	require.ErrorIs(t, p.verify(), ErrUnsupportedVersion)
}

func TestExportPartial_Limits(t *testing.T) {
	e, store, _ := newTestEngine(t, "backup_partial_limits")
	ctx := context.Background()

	_, err := e.ExportPartial(ctx, nil, testPassword)
	require.ErrorIs(t, err, ErrNoItems)

	ids := seedItems(t, store, "1", "2", "3", "4", "5", "6")
	_, err = e.ExportPartial(ctx, ids, testPassword)
	require.ErrorIs(t, err, ErrTooManyItems)

	_, err = e.ExportPartial(ctx, []string{"missing"}, testPassword)
	require.ErrorIs(t, err, vault.ErrNotFound)
}

func TestExportPartial_RejectsOversizedBeforeEncryption(t *testing.T) {
	e, store, _ := newTestEngine(t, "backup_partial_size")
	ctx := context.Background()

	big, err := store.Put(ctx, &vault.PlainItem{
		Kind:   vault.KindNote,
		Title:  "big",
		Secret: []byte(strings.Repeat("x", 4*1024)),
	}, testPassword)
	require.NoError(t, err)

	_, err = e.ExportPartial(ctx, []string{big.ID}, testPassword)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestImportPartial_FreshIDsAndMarkedTitles(t *testing.T) {
	src, srcStore, _ := newTestEngine(t, "backup_partial_src")
	ctx := context.Background()

	ids := seedItems(t, srcStore, "shared")
	envelope, err := src.ExportPartial(ctx, ids, testPassword)
	require.NoError(t, err)
	require.LessOrEqual(t, len(envelope), MaxPartialEnvelopeBytes)

	dst, dstStore, _ := newTestEngine(t, "backup_partial_dst")
	require.NoError(t, dst.ImportPartial(ctx, envelope, testPassword))

	items, err := dstStore.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotEqual(t, ids[0], items[0].ID, "imported items get fresh ids")
	require.Equal(t, "shared"+ImportedTitleSuffix, items[0].Title)

	plain, err := dstStore.Reveal(ctx, items[0].ID, testPassword)
	require.NoError(t, err)
	require.Equal(t, []byte("shared"), plain.Secret)

	// Importing into the origin vault cannot collide either.
	require.NoError(t, src.ImportPartial(ctx, envelope, testPassword))
	n, err := srcStore.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestImportPartial_FailureLeavesNothingBehind(t *testing.T) {
	src, srcStore, _ := newTestEngine(t, "backup_partial_atomic_src")
	ctx := context.Background()

	ids := seedItems(t, srcStore, "good", "poison")
	envelope, err := src.ExportPartial(ctx, ids, testPassword)
	require.NoError(t, err)

	db := setupDB(t, "backup_partial_atomic_dst")
	dstStore := vault.NewStore(db, nil)
	dst := NewEngine(db, dstStore, settings.NewSQLiteRepository(db), nil)

	// Make the second write fail mid-batch.
	_, err = db.Exec(`
CREATE TRIGGER reject_poison BEFORE INSERT ON vault
WHEN NEW.title = 'poison` + ImportedTitleSuffix + `'
BEGIN SELECT RAISE(ABORT, 'rejected'); END;
`)
	require.NoError(t, err)

	require.Error(t, dst.ImportPartial(ctx, envelope, testPassword))

	n, err := dstStore.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n, "failed partial import must apply nothing")
}

func TestDeviceRegistry(t *testing.T) {
	e, _, _ := newTestEngine(t, "backup_devices")
	ctx := context.Background()

	require.Error(t, e.RegisterDevice(ctx, &DeviceInfo{}))

	require.NoError(t, e.RegisterDevice(ctx, &DeviceInfo{
		ID:       "dev-1",
		Name:     "Pixel",
		LastSync: e.now(),
	}))

	devices, err := e.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, PlatformOther, devices[0].PlatformClass, "missing class defaults")

	// Re-registering refreshes, not duplicates.
	require.NoError(t, e.RegisterDevice(ctx, &DeviceInfo{
		ID: "dev-1", Name: "Pixel 9", PlatformClass: PlatformMobile, LastSync: e.now(),
	}))
	devices, err = e.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, "Pixel 9", devices[0].Name)
}

func TestStats_RecordedAndPruned(t *testing.T) {
	e, store, _ := newTestEngine(t, "backup_stats")
	ctx := context.Background()

	seedItems(t, store, "one", "two")

	for i := 0; i < 3; i++ {
		_, err := e.Export(ctx, testPassword)
		require.NoError(t, err)
	}

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	require.Equal(t, 2, stats[0].ItemCount)
	require.Greater(t, stats[0].Size, 0)

	require.NoError(t, e.PruneMetadata(ctx, 1))
	stats, err = e.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
}
