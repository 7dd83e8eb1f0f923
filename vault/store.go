package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/visecure/securecore/internal/cryptox"
	"github.com/visecure/securecore/internal/dbx"
	"github.com/visecure/securecore/internal/logging"
	"github.com/visecure/securecore/internal/shared"
)

var (
	// ErrNotFound is returned by Reveal when no item has the given id.
	ErrNotFound = errors.New("vault: item not found")

	// ErrInvalidItem is returned when an item is missing an id or has an
	// unknown kind.
	ErrInvalidItem = errors.New("vault: invalid item")
)

// Store owns encrypted item CRUD. Collisions on a caller-supplied id
// overwrite the stored item: last write wins, no merge.
type Store struct {
	db  *sql.DB
	log logging.Logger
	now func() time.Time
}

// NewStore constructs the vault store.
func NewStore(db *sql.DB, log logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{db: db, log: log, now: time.Now}
}

func (s *Store) repo() Repository {
	return NewSQLiteRepository(s.db)
}

// Save upserts an already-sealed item by id. CreatedAt of an existing item
// is preserved; UpdatedAt is always advanced.
func (s *Store) Save(ctx context.Context, item *Item) error {
	if item.ID == "" || !item.Kind.Valid() {
		return fmt.Errorf("%w: id=%q kind=%q", ErrInvalidItem, item.ID, item.Kind)
	}

	now := s.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	return s.repo().Upsert(ctx, item)
}

// Put seals a plaintext record under the given password and stores it. An
// empty id gets a fresh one. Returns the stored item.
func (s *Store) Put(ctx context.Context, plain *PlainItem, password string) (*Item, error) {
	if plain.ID == "" {
		plain.ID = uuid.NewString()
	}

	ciphertext, err := cryptox.Encrypt(plain.Secret, password)
	if err != nil {
		return nil, err
	}

	item := &Item{
		ID:         plain.ID,
		Kind:       plain.Kind,
		Title:      plain.Title,
		Ciphertext: ciphertext,
		Folder:     plain.Folder,
	}
	if err := s.Save(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// List returns every stored item, ciphertext opaque, ordered by id.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	return s.repo().GetAll(ctx)
}

// Get returns the item with the given id, or nil if none exists.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	return s.repo().GetByID(ctx, id)
}

// Reveal decrypts the item with the given id. Returns ErrNotFound when the
// id is unknown and cryptox.ErrIntegrity when the password is wrong or the
// ciphertext was tampered with.
func (s *Store) Reveal(ctx context.Context, id, password string) (*PlainItem, error) {
	item, err := s.repo().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}

	secret, err := cryptox.Decrypt(item.Ciphertext, password)
	if err != nil {
		return nil, err
	}

	return &PlainItem{
		ID:     item.ID,
		Kind:   item.Kind,
		Title:  item.Title,
		Secret: secret,
		Folder: item.Folder,
	}, nil
}

// Delete removes the item. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.repo().DeleteByID(ctx, id)
}

// Count returns the number of stored items.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.repo().Count(ctx)
}

// Clear removes every item (full reset or destructive import).
func (s *Store) Clear(ctx context.Context) error {
	return s.repo().Clear(ctx)
}

// ReencryptAll decrypts every item with the old password and re-seals it
// with the new one on the supplied transaction handle, advancing UpdatedAt.
// Any failure aborts the transaction the caller runs this in, so items are
// never left split between the two passwords.
func (s *Store) ReencryptAll(ctx context.Context, tx dbx.DBTX, oldPassword, newPassword string) error {
	repo := NewSQLiteRepository(tx)

	items, err := repo.GetAll(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	for _, item := range items {
		plaintext, err := cryptox.Decrypt(item.Ciphertext, oldPassword)
		if err != nil {
			return fmt.Errorf("failed to re-encrypt item %s: %w", item.ID, err)
		}

		item.Ciphertext, err = cryptox.Encrypt(plaintext, newPassword)
		shared.WipeByteArray(plaintext)
		if err != nil {
			return fmt.Errorf("failed to re-encrypt item %s: %w", item.ID, err)
		}

		item.UpdatedAt = now
		if err := repo.Upsert(ctx, item); err != nil {
			return err
		}
	}

	s.log.Info(ctx, "vault re-encrypted", "items", len(items))
	return nil
}
