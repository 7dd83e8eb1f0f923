// Package session manages the ephemeral authentication state of the security
// core: at most one live session, created only after a successful unlock,
// with lazy expiry and sliding renewal.
//
// There is no background timer. Expiry is detected on Validate calls, which
// callers are expected to issue periodically and on user-activity events.
package session

import "time"

// Method records how the session was established.
type Method string

const (
	// MethodPassword marks a session created by master-password verification.
	MethodPassword Method = "password"

	// MethodBiometric marks a session created by a platform biometric
	// assertion. It carries the same trust level as MethodPassword; the
	// field exists so callers can apply a stricter policy if they choose.
	MethodBiometric Method = "biometric"
)

// Record is the single live session. At most one record exists, and at most
// one may report Authenticated=true at a time; creating a new session
// replaces the previous one.
type Record struct {
	// SessionID is an opaque unique token identifying this session.
	SessionID string

	// ExpiresAt is the absolute expiry deadline.
	ExpiresAt time.Time

	// LastActivity is the last time the session was used. Validate slides
	// ExpiresAt forward only when activity is recent (see Manager).
	LastActivity time.Time

	// Authenticated reports whether the session proves a successful unlock.
	Authenticated bool

	// Method records how the session was established.
	Method Method
}
