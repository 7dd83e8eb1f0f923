// Package cryptox implements the encryption engine of the security core:
// password-based key derivation, authenticated encryption into self-contained
// envelopes, and integrity checksums.
//
// Every Encrypt call draws a fresh salt and nonce and carries them inside the
// envelope, so each envelope decrypts independently. This is what makes
// item-by-item re-encryption during a password change possible without any
// shared nonce-counter state.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"github.com/visecure/securecore/internal/shared"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32

	// SaltSize is the per-envelope KDF salt size.
	SaltSize = 16

	// CredentialSaltSize is the salt size used for the master-password hash.
	CredentialSaltSize = 32

	// NonceSize is the GCM nonce size.
	NonceSize = 12

	// TagSize is the GCM authentication tag size.
	TagSize = 16

	// EnvelopeIterations is the PBKDF2 iteration count for envelope keys.
	EnvelopeIterations = 100_000

	// CredentialIterations is the PBKDF2 iteration count for the
	// master-password hash. Deliberately higher: it is derived once per
	// unlock attempt, not once per record.
	CredentialIterations = 600_000
)

// ErrIntegrity is returned when an envelope fails to authenticate: the data
// was tampered with, truncated, or the password is wrong. The three cases are
// deliberately indistinguishable.
var ErrIntegrity = errors.New("cryptox: integrity check failed")

// DeriveKey stretches a password and salt into a 256-bit key using
// PBKDF2-SHA256. Deterministic for fixed inputs.
func DeriveKey(password, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New)
}

// Encrypt seals plaintext under a key derived from password with a fresh
// random salt and nonce, and returns the opaque, transport-safe envelope
// base64(salt ‖ nonce ‖ ciphertext+tag).
func Encrypt(plaintext []byte, password string) (string, error) {
	salt := shared.GenerateRandByteArray(SaltSize)
	nonce := shared.GenerateRandByteArray(NonceSize)

	key := DeriveKey([]byte(password), salt, EnvelopeIterations)
	defer shared.WipeByteArray(key)

	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	raw := make([]byte, 0, SaltSize+NonceSize+len(ciphertext))
	raw = append(raw, salt...)
	raw = append(raw, nonce...)
	raw = append(raw, ciphertext...)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decrypt splits an envelope produced by Encrypt, re-derives the key and
// authenticates-then-decrypts. Any malformed or tampered envelope, and any
// wrong password, yields ErrIntegrity.
func Decrypt(envelope, password string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, ErrIntegrity
	}
	if len(raw) < SaltSize+NonceSize+TagSize {
		return nil, ErrIntegrity
	}

	salt := raw[:SaltSize]
	nonce := raw[SaltSize : SaltSize+NonceSize]
	ciphertext := raw[SaltSize+NonceSize:]

	key := DeriveKey([]byte(password), salt, EnvelopeIterations)
	defer shared.WipeByteArray(key)

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// EncodedEnvelopeLen reports the exact envelope string length Encrypt will
// produce for a plaintext of the given size. Used to enforce transfer-channel
// byte budgets before any encryption happens.
func EncodedEnvelopeLen(plaintextLen int) int {
	return base64.StdEncoding.EncodedLen(SaltSize + NonceSize + plaintextLen + TagSize)
}

// Checksum returns a hex SHA-256 digest of data. It confirms payload
// integrity; it provides no secrecy.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashPassword returns a hex SHA-256 digest of the password. This is the
// quick, unsalted comparison digest; the durable master-password hash uses
// DeriveKey with CredentialIterations and a per-install salt instead.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword compares a password against a digest produced by
// HashPassword in constant time.
func VerifyPassword(password, digest string) bool {
	return ConstantTimeCompare([]byte(HashPassword(password)), []byte(digest))
}

// ConstantTimeCompare reports whether a and b are equal without leaking
// where they differ.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
