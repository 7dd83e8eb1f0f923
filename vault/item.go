// Package vault stores encrypted user records. Plaintext secret material
// exists only in process memory: every item is persisted as an opaque AEAD
// envelope produced by the encryption engine, and the store itself treats
// ciphertext as a black box except during bulk re-encryption on password
// rotation.
package vault

import "time"

// Kind classifies a vault item.
type Kind string

const (
	KindPassword Kind = "password"
	KindNote     Kind = "note"
	KindFile     Kind = "file"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPassword, KindNote, KindFile:
		return true
	}
	return false
}

// Item is a stored vault record. Only Ciphertext carries secret material,
// already sealed; Title and Folder are organizational metadata the UI needs
// without unlocking each record.
type Item struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Title      string    `json:"title"`
	Ciphertext string    `json:"ciphertext"`
	Folder     string    `json:"folder,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PlainItem is the decrypted form of an item; it never touches storage.
type PlainItem struct {
	ID     string
	Kind   Kind
	Title  string
	Secret []byte
	Folder string
}
