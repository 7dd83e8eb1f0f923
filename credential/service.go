package credential

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/visecure/securecore/internal/cryptox"
	"github.com/visecure/securecore/internal/dbx"
	"github.com/visecure/securecore/internal/logging"
	"github.com/visecure/securecore/internal/shared"
	"github.com/visecure/securecore/session"
)

// Default lockout policy. Three consecutive wrong passwords suspend
// verification for thirty minutes.
const (
	DefaultMaxFailedAttempts = 3
	DefaultLockoutDuration   = 30 * time.Minute
)

// Config holds lockout policy values.
type Config struct {
	// MaxFailedAttempts is the failure count that triggers a lockout;
	// zero means DefaultMaxFailedAttempts.
	MaxFailedAttempts int

	// LockoutDuration is how long verification stays suspended; zero
	// means DefaultLockoutDuration.
	LockoutDuration time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxFailedAttempts <= 0 {
		out.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	if out.LockoutDuration <= 0 {
		out.LockoutDuration = DefaultLockoutDuration
	}
	return out
}

// SessionControl is the slice of the session manager the credential store
// drives: opening a session on successful verification and tearing state
// down on reset.
type SessionControl interface {
	Create(ctx context.Context, method session.Method) (*session.Record, string, error)
	Validate(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error
}

// Reencryptor re-encrypts every vault item from the old password to the new
// one on the supplied transaction handle. Implemented by the vault store.
type Reencryptor interface {
	ReencryptAll(ctx context.Context, tx dbx.DBTX, oldPassword, newPassword string) error
}

// Status is a snapshot of the authentication state for UI rendering.
type Status struct {
	SetUp          bool
	Authenticated  bool
	DeviceTrusted  bool
	FailedAttempts int
	LockedUntil    *time.Time
}

// Service is the credential store. The credential record is a single-writer
// resource: mutating calls are serialized by an internal mutex and fully
// persist before the next one proceeds.
type Service struct {
	mu          sync.Mutex
	db          *sql.DB
	sessions    SessionControl
	reencryptor Reencryptor
	cfg         Config
	log         logging.Logger
	now         func() time.Time
}

// NewService constructs the credential store. reencryptor may be nil when no
// vault store participates (then ChangePassword rotates the credential only).
func NewService(db *sql.DB, sessions SessionControl, reencryptor Reencryptor, cfg Config, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		db:          db,
		sessions:    sessions,
		reencryptor: reencryptor,
		cfg:         cfg.withDefaults(),
		log:         log,
		now:         time.Now,
	}
}

func (s *Service) repo() Repository {
	return NewSQLiteRepository(s.db)
}

// IsSetUp reports whether a master password has been established.
func (s *Service) IsSetUp(ctx context.Context) (bool, error) {
	rec, err := s.repo().Get(ctx)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// Setup establishes the master password and opens the first session. It
// fails with *WeakPasswordError when the password does not meet policy and
// with ErrAlreadySetUp when a credential record already exists.
func (s *Service) Setup(ctx context.Context, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo().Get(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadySetUp
	}

	if weak := checkPasswordPolicy(password); weak != nil {
		return weak
	}

	if err := s.repo().Save(ctx, s.buildRecord(password)); err != nil {
		return err
	}

	if _, _, err := s.sessions.Create(ctx, session.MethodPassword); err != nil {
		return fmt.Errorf("failed to open session after setup: %w", err)
	}

	s.log.Info(ctx, "master password set up")
	return nil
}

// Verify checks the password against the stored hash. A match resets the
// failure counter, clears any lockout and opens a new session; a mismatch
// increments the counter and, at the threshold, starts a lockout. A wrong
// password is an expected outcome and returns (false, nil); an active
// lockout returns *LockedError without touching the counter.
func (s *Service) Verify(ctx context.Context, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.verify(ctx, s.repo(), password)
	if err != nil || !ok {
		return false, err
	}

	if _, _, err := s.sessions.Create(ctx, session.MethodPassword); err != nil {
		return false, fmt.Errorf("failed to open session: %w", err)
	}
	return true, nil
}

// Unlock is Verify for callers that need the session handle: it verifies the
// password and returns the created session record and token. A wrong
// password surfaces as ErrInvalidPassword here, since there is no session to
// return.
func (s *Service) Unlock(ctx context.Context, password string) (*session.Record, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.verify(ctx, s.repo(), password)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrInvalidPassword
	}

	rec, token, err := s.sessions.Create(ctx, session.MethodPassword)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open session: %w", err)
	}
	return rec, token, nil
}

// verify runs the counter-mutating verification against the given repository
// without opening a session. Callers hold s.mu.
func (s *Service) verify(ctx context.Context, repo Repository, password string) (bool, error) {
	rec, err := repo.Get(ctx)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, ErrNotSetUp
	}

	now := s.now()
	if rec.Locked(now) {
		return false, &LockedError{Until: *rec.LockedUntil, Remaining: rec.LockedUntil.Sub(now)}
	}

	hash := cryptox.DeriveKey([]byte(password), rec.Salt, cryptox.CredentialIterations)
	defer shared.WipeByteArray(hash)

	if cryptox.ConstantTimeCompare(hash, rec.Hash) {
		rec.FailedAttempts = 0
		rec.LockedUntil = nil
		if err := repo.Save(ctx, rec); err != nil {
			return false, err
		}
		return true, nil
	}

	rec.FailedAttempts++
	if rec.FailedAttempts >= s.cfg.MaxFailedAttempts {
		until := now.Add(s.cfg.LockoutDuration)
		rec.LockedUntil = &until
		s.log.Warn(ctx, "account locked after repeated failures",
			"failed_attempts", rec.FailedAttempts,
			"locked_until", until)
	}
	if err := repo.Save(ctx, rec); err != nil {
		return false, err
	}
	return false, nil
}

// ChangePassword rotates the master password. It verifies the old password
// (counting failures like Verify), then, in a single transaction, writes
// the new salt and hash and re-encrypts every vault item. Any failure rolls
// the whole change back: the old credential record keeps verifying the old
// ciphertexts.
func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.verify(ctx, s.repo(), oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidPassword
	}

	if weak := checkPasswordPolicy(newPassword); weak != nil {
		return weak
	}

	rec := s.buildRecord(newPassword)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := NewSQLiteRepository(tx).Save(ctx, rec); err != nil {
			return err
		}
		if s.reencryptor == nil {
			return nil
		}
		return s.reencryptor.ReencryptAll(ctx, tx, oldPassword, newPassword)
	})
	if err != nil {
		return fmt.Errorf("password change rolled back: %w", err)
	}

	s.log.Info(ctx, "master password changed")
	return nil
}

// VerifyDevice reports whether the current environment matches the
// fingerprint recorded at setup. Advisory only.
func (s *Service) VerifyDevice(ctx context.Context) (bool, error) {
	rec, err := s.repo().Get(ctx)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	return rec.DeviceFingerprint == deviceFingerprint(), nil
}

// Status assembles the authentication snapshot for UI rendering.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	rec, err := s.repo().Get(ctx)
	if err != nil {
		return nil, err
	}

	authenticated, err := s.sessions.Validate(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{SetUp: rec != nil, Authenticated: authenticated}
	if rec != nil {
		trusted := rec.DeviceFingerprint == deviceFingerprint()
		st.DeviceTrusted = trusted
		st.FailedAttempts = rec.FailedAttempts
		st.LockedUntil = rec.LockedUntil
	}
	return st, nil
}

// Reset deletes the credential record and clears the session. The caller is
// responsible for wiping dependent state (vault items, biometric binding).
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo().Delete(ctx); err != nil {
		return err
	}
	if err := s.sessions.Clear(ctx); err != nil {
		return err
	}

	s.log.Warn(ctx, "credential record reset")
	return nil
}

func (s *Service) buildRecord(password string) *Record {
	salt := shared.GenerateRandByteArray(cryptox.CredentialSaltSize)
	return &Record{
		Hash:              cryptox.DeriveKey([]byte(password), salt, cryptox.CredentialIterations),
		Salt:              salt,
		SetupAt:           s.now(),
		DeviceFingerprint: deviceFingerprint(),
	}
}
