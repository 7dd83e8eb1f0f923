package session

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/visecure/securecore/internal/logging"
)

// Default policy values. Kept as configuration so callers can tighten them,
// but the defaults are part of the product's existing behavior.
const (
	// DefaultTimeout is the session lifetime from the last renewal.
	DefaultTimeout = 15 * time.Minute

	// DefaultHeartbeatWindow bounds how recent the last activity must be for
	// Validate to count the call itself as activity and slide the expiry.
	DefaultHeartbeatWindow = 5 * time.Minute
)

// Config holds session policy values.
type Config struct {
	// Timeout is the session window; zero means DefaultTimeout.
	Timeout time.Duration

	// HeartbeatWindow is the Validate coalescing window; zero means
	// DefaultHeartbeatWindow.
	HeartbeatWindow time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.HeartbeatWindow <= 0 {
		out.HeartbeatWindow = DefaultHeartbeatWindow
	}
	return out
}

// Manager owns the single session record. The record is a single-writer
// resource: all mutating calls are serialized by an internal mutex and fully
// persist before the next call proceeds.
type Manager struct {
	mu     sync.Mutex
	db     *sql.DB
	secret []byte
	cfg    Config
	log    logging.Logger
	now    func() time.Time
}

// NewManager constructs a Manager over the given database. secret is the
// per-install token-signing key.
func NewManager(db *sql.DB, secret []byte, cfg Config, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		db:     db,
		secret: append([]byte(nil), secret...),
		cfg:    cfg.withDefaults(),
		log:    log,
		now:    time.Now,
	}
}

func (m *Manager) repo() Repository {
	return NewSQLiteRepository(m.db)
}

// Create starts a new session, replacing any existing one. It must be called
// only after a successful unlock (password verification or biometric
// assertion); the method records which path created it. It returns the new
// record and a signed token callers may hand to outer layers.
func (m *Manager) Create(ctx context.Context, method Method) (*Record, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec := &Record{
		SessionID:     uuid.NewString(),
		ExpiresAt:     now.Add(m.cfg.Timeout),
		LastActivity:  now,
		Authenticated: true,
		Method:        method,
	}

	if err := m.repo().Save(ctx, rec); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	token, err := mintToken(rec.SessionID, m.secret, rec.ExpiresAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign session token: %w", err)
	}

	m.log.Info(ctx, "session created", "method", string(method))
	return rec, token, nil
}

// Validate reports whether an authenticated session is live. An expired
// session is deleted on detection. A successful Validate counts as activity
// and slides the expiry forward, but the write is coalesced: when the last
// recorded activity is still within the heartbeat window the expiry is
// already fresh and no persistence happens. This makes Validate cheap and
// idempotent under frequent polling.
func (m *Manager) Validate(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.repo().Get(ctx)
	if err != nil {
		return false, err
	}
	if rec == nil || !rec.Authenticated {
		return false, nil
	}

	now := m.now()
	if now.After(rec.ExpiresAt) {
		if err := m.repo().Delete(ctx); err != nil {
			return false, err
		}
		m.log.Info(ctx, "session expired", "session_id", rec.SessionID)
		return false, nil
	}

	if now.Sub(rec.LastActivity) >= m.cfg.HeartbeatWindow {
		rec.ExpiresAt = now.Add(m.cfg.Timeout)
		rec.LastActivity = now
		if err := m.repo().Save(ctx, rec); err != nil {
			return false, err
		}
	}

	return true, nil
}

// Extend is the explicit activity signal: it always slides the expiry
// forward by the full window, independent of Validate's coalescing. It is a
// no-op when no session exists.
func (m *Manager) Extend(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.repo().Get(ctx)
	if err != nil || rec == nil {
		return err
	}

	now := m.now()
	rec.ExpiresAt = now.Add(m.cfg.Timeout)
	rec.LastActivity = now
	return m.repo().Save(ctx, rec)
}

// Clear is the explicit logout: it deletes the session unconditionally.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo().Delete(ctx); err != nil {
		return err
	}
	m.log.Info(ctx, "session cleared")
	return nil
}

// Current returns the current session record without validating it, or nil
// when none exists. Intended for status reporting.
func (m *Manager) Current(ctx context.Context) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repo().Get(ctx)
}

// ValidateToken checks that token is correctly signed, unexpired, and
// identifies the live session, then validates the session itself.
func (m *Manager) ValidateToken(ctx context.Context, token string) (bool, error) {
	sid, err := parseToken(token, m.secret, m.now)
	if err != nil {
		return false, nil
	}

	m.mu.Lock()
	rec, err := m.repo().Get(ctx)
	m.mu.Unlock()
	if err != nil {
		return false, err
	}
	if rec == nil || rec.SessionID != sid {
		return false, nil
	}

	return m.Validate(ctx)
}
