// Package biometric binds a platform authenticator credential as a secondary
// unlock path. Registration is only possible during an already-authenticated
// session; a later assertion against the stored credential id opens a new
// session without password verification.
//
// Biometric failures are deliberately independent of the password lockout
// counter: a sensor failure is not evidence of a password-guessing attack.
package biometric

import "time"

// Binding is the single durable biometric record (row id = 1).
type Binding struct {
	// CredentialID identifies the platform credential created at
	// registration. Assertions are restricted to this id.
	CredentialID []byte

	// Enabled gates the biometric unlock path without deleting the
	// credential.
	Enabled bool

	// SetupAt is when the binding was registered.
	SetupAt time.Time

	// LastUsed is the time of the most recent successful assertion.
	LastUsed *time.Time
}
