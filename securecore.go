// Package securecore is the local-first security core of a personal vault
// application: master-password credential state with lockout, a single
// sliding session, an optional biometric unlock path, encrypted item
// storage, and integrity-checked backup payloads.
//
// Open wires the components over one sqlite database:
//
//	core, err := securecore.Open(ctx, securecore.Config{DSN: "vault.db"})
//	if err != nil { ... }
//	defer core.Close()
//
//	if err := core.Credentials.Setup(ctx, password); err != nil { ... }
//	item, err := core.Vault.Put(ctx, plain, password)
package securecore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/visecure/securecore/backup"
	"github.com/visecure/securecore/biometric"
	"github.com/visecure/securecore/credential"
	"github.com/visecure/securecore/internal/logging"
	"github.com/visecure/securecore/internal/repositories/settings"
	"github.com/visecure/securecore/internal/shared"
	"github.com/visecure/securecore/internal/storage"
	"github.com/visecure/securecore/session"
	"github.com/visecure/securecore/vault"
)

// tokenSecretKey stores the per-install session token signing secret. The
// internal prefix keeps it out of backup payloads.
const tokenSecretKey = "internal.token_secret"

// Core aggregates the constructed services. All share one database handle;
// Close releases it.
type Core struct {
	Credentials *credential.Service
	Sessions    *session.Manager
	Biometric   *biometric.Binder
	Vault       *vault.Store
	Backup      *backup.Engine

	db  *sql.DB
	log logging.Logger
}

// Open opens (and migrates) the database and wires the services together.
func Open(ctx context.Context, cfg Config) (*Core, error) {
	if cfg.DSN == "" {
		return nil, errors.New("securecore: DSN is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	db, err := storage.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}

	secret, err := loadTokenSecret(ctx, settings.NewSQLiteRepository(db))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	sessions := session.NewManager(db, secret, session.Config{
		Timeout:         cfg.SessionTimeout,
		HeartbeatWindow: cfg.HeartbeatWindow,
	}, log.With("component", "session"))

	vaultStore := vault.NewStore(db, log.With("component", "vault"))

	credentials := credential.NewService(db, sessions, vaultStore, credential.Config{
		MaxFailedAttempts: cfg.MaxFailedAttempts,
		LockoutDuration:   cfg.LockoutDuration,
	}, log.With("component", "credential"))

	auth := cfg.Authenticator
	if auth == nil {
		auth = biometric.NewKeyringAuthenticator()
	}
	binder := biometric.NewBinder(db, auth, sessions, cfg.BiometricTimeout,
		log.With("component", "biometric"))

	engine := backup.NewEngine(db, vaultStore, settings.NewSQLiteRepository(db),
		log.With("component", "backup"))

	return &Core{
		Credentials: credentials,
		Sessions:    sessions,
		Biometric:   binder,
		Vault:       vaultStore,
		Backup:      engine,
		db:          db,
		log:         log,
	}, nil
}

// Close releases the underlying database handle.
func (c *Core) Close() error {
	return c.db.Close()
}

// Reset wipes all user state: credential, session, biometric binding, vault
// items, exportable settings, the device registry and backup bookkeeping.
// The token secret survives so a later setup starts clean but configured.
func (c *Core) Reset(ctx context.Context) error {
	if err := c.Biometric.Disable(ctx); err != nil {
		return err
	}
	if err := c.Vault.Clear(ctx); err != nil {
		return err
	}

	settingsRepo := settings.NewSQLiteRepository(c.db)
	keys, err := settingsRepo.List(ctx)
	if err != nil {
		return err
	}
	for key := range keys {
		if key == tokenSecretKey {
			continue
		}
		if err := settingsRepo.Delete(ctx, key); err != nil {
			return err
		}
	}

	if err := backup.NewSQLiteDeviceRepository(c.db).Clear(ctx); err != nil {
		return err
	}
	if err := backup.NewSQLiteMetadataRepository(c.db).Prune(ctx, 0); err != nil {
		return err
	}

	if err := c.Credentials.Reset(ctx); err != nil {
		return err
	}

	c.log.Warn(ctx, "security core reset")
	return nil
}

// loadTokenSecret returns the per-install token signing secret, minting one
// on first open.
func loadTokenSecret(ctx context.Context, repo settings.Repository) ([]byte, error) {
	secret, err := repo.Get(ctx, tokenSecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load token secret: %w", err)
	}
	if len(secret) > 0 {
		return secret, nil
	}

	secret = shared.GenerateRandByteArray(32)
	if err := repo.Set(ctx, tokenSecretKey, secret); err != nil {
		return nil, fmt.Errorf("failed to store token secret: %w", err)
	}
	return secret, nil
}
