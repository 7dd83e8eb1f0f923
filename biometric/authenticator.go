package biometric

import "context"

// CreateRequest asks the platform to mint a new credential. The challenge
// and user handle must be freshly random per call.
type CreateRequest struct {
	Challenge  []byte
	UserHandle []byte

	// RequireUserVerification demands the authenticator verify the user
	// (fingerprint, face, PIN), not just their presence.
	RequireUserVerification bool
}

// AssertRequest asks the platform to prove possession of one of the allowed
// credentials against a fresh challenge.
type AssertRequest struct {
	Challenge            []byte
	AllowedCredentialIDs [][]byte

	RequireUserVerification bool
}

// Authenticator abstracts the platform biometric capability so backends
// (Touch ID, Windows Hello, a keychain stand-in, a test fake) are swappable
// without touching the binder logic.
//
// Both Create and Assert may block on user interaction; implementations must
// honor context cancellation. Errors should be (or wrap) the typed errors of
// this package.
type Authenticator interface {
	// Available reports whether a user-verifying platform authenticator
	// exists. Never returns an error; unsupported platforms report false.
	Available(ctx context.Context) bool

	// Create mints a platform credential and returns its id.
	Create(ctx context.Context, req CreateRequest) (credentialID []byte, err error)

	// Assert proves possession of one of the allowed credentials and
	// returns the id of the credential that satisfied the challenge.
	Assert(ctx context.Context, req AssertRequest) (credentialID []byte, err error)
}
