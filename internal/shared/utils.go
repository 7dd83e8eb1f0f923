// Package shared provides small helpers used across the security core:
// cryptographically random byte/string generation and wiping of
// sensitive buffers.
package shared

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateRandByteArray returns n cryptographically random bytes.
// It panics if the system random source fails, which is not a
// recoverable condition for a security core.
func GenerateRandByteArray(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("shared: system random source unavailable: " + err.Error())
	}
	return b
}

// MakeRandHexString generates a random hexadecimal string from size random
// bytes. The resulting string is twice as long as size, since every byte
// encodes as two hex characters.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray overwrites the contents of b with zeros. Use it to remove
// derived keys and password bytes from memory after use. A nil slice is
// a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
