package biometric

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/visecure/securecore/internal/logging"
	"github.com/visecure/securecore/internal/shared"
	"github.com/visecure/securecore/session"
)

// DefaultPromptTimeout bounds how long a platform prompt may block on user
// interaction before the attempt is aborted.
const DefaultPromptTimeout = 60 * time.Second

const (
	challengeSize  = 32
	userHandleSize = 64
)

// SessionControl is the slice of the session manager the binder needs:
// gating registration behind an authenticated session and opening a session
// after a successful assertion.
type SessionControl interface {
	Create(ctx context.Context, method session.Method) (*session.Record, string, error)
	Validate(ctx context.Context) (bool, error)
}

// Binder owns the biometric binding lifecycle. The binding is a
// single-writer resource, serialized by an internal mutex.
type Binder struct {
	mu       sync.Mutex
	db       *sql.DB
	auth     Authenticator
	sessions SessionControl
	timeout  time.Duration
	log      logging.Logger
	now      func() time.Time
}

// NewBinder constructs a Binder. A non-positive timeout means
// DefaultPromptTimeout.
func NewBinder(db *sql.DB, auth Authenticator, sessions SessionControl, timeout time.Duration, log logging.Logger) *Binder {
	if timeout <= 0 {
		timeout = DefaultPromptTimeout
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Binder{
		db:       db,
		auth:     auth,
		sessions: sessions,
		timeout:  timeout,
		log:      log,
		now:      time.Now,
	}
}

func (b *Binder) repo() Repository {
	return NewSQLiteRepository(b.db)
}

// IsAvailable reports whether the platform exposes a user-verifying
// authenticator. Never fails; unsupported platforms report false.
func (b *Binder) IsAvailable(ctx context.Context) bool {
	return b.auth.Available(ctx)
}

// Register creates a platform credential and persists the binding. It is
// only callable while a session is active. A fresh challenge and user handle
// are drawn per attempt, so a cancelled prompt leaves no state a retry would
// have to reuse.
func (b *Binder) Register(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	active, err := b.sessions.Validate(ctx)
	if err != nil {
		return err
	}
	if !active {
		return ErrSessionRequired
	}

	promptCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	credentialID, err := b.auth.Create(promptCtx, CreateRequest{
		Challenge:               shared.GenerateRandByteArray(challengeSize),
		UserHandle:              shared.GenerateRandByteArray(userHandleSize),
		RequireUserVerification: true,
	})
	if err != nil {
		return mapPromptError(err)
	}

	binding := &Binding{
		CredentialID: credentialID,
		Enabled:      true,
		SetupAt:      b.now(),
	}
	if err := b.repo().Save(ctx, binding); err != nil {
		return err
	}

	b.log.Info(ctx, "biometric binding registered")
	return nil
}

// Authenticate asserts the stored credential and, on success, opens a new
// session without password verification. Fails fast with ErrNotConfigured
// when no enabled binding exists. Failures here never touch the password
// attempt counter.
func (b *Binder) Authenticate(ctx context.Context) (*session.Record, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	binding, err := b.repo().Get(ctx)
	if err != nil {
		return nil, "", err
	}
	if binding == nil || !binding.Enabled {
		return nil, "", ErrNotConfigured
	}

	promptCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	_, err = b.auth.Assert(promptCtx, AssertRequest{
		Challenge:               shared.GenerateRandByteArray(challengeSize),
		AllowedCredentialIDs:    [][]byte{binding.CredentialID},
		RequireUserVerification: true,
	})
	if err != nil {
		return nil, "", mapPromptError(err)
	}

	rec, token, err := b.sessions.Create(ctx, session.MethodBiometric)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open session: %w", err)
	}

	used := b.now()
	binding.LastUsed = &used
	if err := b.repo().Save(ctx, binding); err != nil {
		return nil, "", err
	}

	b.log.Info(ctx, "biometric unlock succeeded")
	return rec, token, nil
}

// Disable deletes the binding. Idempotent: disabling an absent binding
// succeeds.
func (b *Binder) Disable(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	binding, err := b.repo().Get(ctx)
	if err != nil {
		return err
	}
	if binding == nil {
		return nil
	}

	if err := b.repo().Delete(ctx); err != nil {
		return err
	}

	// Prune the backend credential on a best-effort basis.
	if dropper, ok := b.auth.(interface{ Drop(credentialID []byte) error }); ok {
		if err := dropper.Drop(binding.CredentialID); err != nil {
			b.log.Warn(ctx, "failed to drop backend credential", "error", err)
		}
	}

	b.log.Info(ctx, "biometric binding disabled")
	return nil
}

// Status returns the current binding, or nil if none is registered.
func (b *Binder) Status(ctx context.Context) (*Binding, error) {
	return b.repo().Get(ctx)
}

// mapPromptError folds context cancellation and timeout into ErrAborted;
// typed authenticator errors pass through.
func mapPromptError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if errors.Is(err, ErrAborted) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	return err
}
