// Package backup produces and consumes integrity-checked export payloads:
// a full-state backup for file-class channels, a size-capped partial format
// for optical-code-class channels, and an advisory device registry.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/visecure/securecore/internal/cryptox"
	"github.com/visecure/securecore/vault"
)

// PayloadVersion is the current backup format version.
const PayloadVersion = "1.0.0"

var (
	// ErrUnsupportedVersion means the payload was produced by an
	// incompatible format version.
	ErrUnsupportedVersion = errors.New("backup: unsupported payload version")

	// ErrTooManyItems means a partial export selected more items than the
	// compact format carries.
	ErrTooManyItems = errors.New("backup: too many items for partial export")

	// ErrPayloadTooLarge means the partial export would exceed the
	// compact byte budget. Raised before encryption, never by truncating.
	ErrPayloadTooLarge = errors.New("backup: payload exceeds compact size budget")

	// ErrNoItems means a partial export selected nothing.
	ErrNoItems = errors.New("backup: no items selected")
)

// Payload is the transient backup document. It is constructed for export,
// sealed into an envelope, and consumed on import; it is never persisted
// as-is.
//
// Checksum covers the canonical serialization of vaultItems and settings
// only; version, timestamp and device are transport metadata.
type Payload struct {
	Version    string            `json:"version"`
	Timestamp  time.Time         `json:"timestamp"`
	VaultItems []*vault.Item     `json:"vaultItems"`
	Settings   map[string]string `json:"settings,omitempty"`
	Device     *DeviceInfo       `json:"device,omitempty"`
	Checksum   string            `json:"checksum"`
}

// payloadChecksum digests the canonical serialization of items and
// settings. Items are sorted by id and JSON object keys marshal in sorted
// order, so the digest is stable across devices. A nil settings map
// canonicalizes to an empty one: the field is omitted from the envelope
// when empty, so the importing side sees nil where the exporter saw {}.
func payloadChecksum(items []*vault.Item, settings map[string]string) (string, error) {
	sorted := make([]*vault.Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	if settings == nil {
		settings = map[string]string{}
	}

	canonical, err := json.Marshal(struct {
		VaultItems []*vault.Item     `json:"vaultItems"`
		Settings   map[string]string `json:"settings"`
	}{sorted, settings})
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}
	return cryptox.Checksum(canonical), nil
}

// verify recomputes the checksum and compares it to the embedded one. A
// mismatch means a partial or corrupted transfer.
func (p *Payload) verify() error {
	if p.Version != PayloadVersion {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, p.Version)
	}
	sum, err := payloadChecksum(p.VaultItems, p.Settings)
	if err != nil {
		return err
	}
	if sum != p.Checksum {
		return fmt.Errorf("%w: payload checksum mismatch", cryptox.ErrIntegrity)
	}
	return nil
}
