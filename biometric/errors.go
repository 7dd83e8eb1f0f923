package biometric

import "errors"

var (
	// ErrNotSupported means the platform exposes no user-verifying
	// authenticator.
	ErrNotSupported = errors.New("biometric: platform authenticator not supported")

	// ErrUserCancelled means the user dismissed the platform prompt.
	ErrUserCancelled = errors.New("biometric: cancelled by user")

	// ErrInsecureContext means the platform refused because the calling
	// context does not meet its security requirements.
	ErrInsecureContext = errors.New("biometric: insecure context")

	// ErrAborted means the operation was cancelled or timed out before
	// the platform produced a result.
	ErrAborted = errors.New("biometric: operation aborted")

	// ErrSetupFailed covers platform refusals that do not map to a more
	// specific cause.
	ErrSetupFailed = errors.New("biometric: credential setup failed")

	// ErrNotConfigured means no biometric binding exists (or it is
	// disabled); the caller should fall back to the password path.
	ErrNotConfigured = errors.New("biometric: not configured")

	// ErrSessionRequired means registration was attempted outside an
	// authenticated session.
	ErrSessionRequired = errors.New("biometric: active session required")
)
