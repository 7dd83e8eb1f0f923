// Package credential implements the durable master-password state of the
// security core: setup, verification with lockout, password change with
// atomic vault re-encryption, and an advisory device fingerprint.
//
// Exactly one credential record exists per device install. It is created on
// Setup, mutated on every unlock attempt and password change, and deleted
// only by a full reset. The raw password is never persisted; only the salted
// slow-KDF hash is.
package credential

import "time"

// Record is the single durable credential record (row id = 1).
type Record struct {
	// Hash is the PBKDF2 output of the master password under Salt.
	Hash []byte

	// Salt is the per-install random KDF salt.
	Salt []byte

	// SetupAt is when the current password was established.
	SetupAt time.Time

	// DeviceFingerprint is an advisory identifier of the environment the
	// password was set up on. Never a security boundary by itself.
	DeviceFingerprint string

	// FailedAttempts counts consecutive wrong-password verifications.
	// Reset to zero only by a successful verification.
	FailedAttempts int

	// LockedUntil, when non-nil, blocks password verification until the
	// deadline passes.
	LockedUntil *time.Time
}

// Locked reports whether the record is locked out at the given instant.
func (r *Record) Locked(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}
