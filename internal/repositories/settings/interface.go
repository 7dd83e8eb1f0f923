// Package settings provides the persistence layer for the key/value
// settings collection. Values are opaque bytes; callers decide the encoding.
package settings

import "context"

// Repository describes key/value operations over the settings collection.
type Repository interface {
	// Get returns the value for key, or nil if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set inserts or replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes all settings.
	Clear(ctx context.Context) error

	// List returns every key/value pair.
	List(ctx context.Context) (map[string][]byte, error)
}
