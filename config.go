package securecore

import (
	"time"

	"github.com/visecure/securecore/biometric"
	"github.com/visecure/securecore/internal/logging"
)

// Config collects the tunables of the security core. The zero value plus a
// DSN is a working configuration with the default policy.
type Config struct {
	// DSN is the sqlite data source, e.g. a file path or
	// "file:core?mode=memory&cache=shared" for tests. Required.
	DSN string

	// SessionTimeout and HeartbeatWindow configure the session manager;
	// zero values keep the 15-minute / 5-minute defaults.
	SessionTimeout  time.Duration
	HeartbeatWindow time.Duration

	// MaxFailedAttempts and LockoutDuration configure the password
	// lockout; zero values keep the 3-attempt / 30-minute defaults.
	MaxFailedAttempts int
	LockoutDuration   time.Duration

	// BiometricTimeout bounds platform prompts; zero keeps the 60-second
	// default.
	BiometricTimeout time.Duration

	// Authenticator is the platform biometric backend. Nil selects the
	// OS-keychain-backed one.
	Authenticator biometric.Authenticator

	// Logger receives structured core events. Nil discards them.
	Logger logging.Logger
}
