package utxo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-ledger/internal/storage"
	"github.com/Klingon-tech/klingnet-ledger/pkg/types"
)

// Key prefixes for the UTXO store.
var (
	prefixUTXO  = []byte("u/") // u/<id> -> UTXO JSON
	prefixOwner = []byte("o/") // o/<owner><id> -> empty (index)
)

// ErrValueOverflow is returned by Total when the set's values do not fit in
// 128 bits. It can only happen if the set was corrupted.
var ErrValueOverflow = errors.New("utxo set value overflows")

// Store implements Set backed by a storage.DB.
type Store struct {
	db storage.DB
}

// NewStore creates a new UTXO store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// utxoKey builds a storage key for an id: "u/" + id(32).
func utxoKey(id types.Hash) []byte {
	key := make([]byte, 0, len(prefixUTXO)+types.HashSize)
	key = append(key, prefixUTXO...)
	return append(key, id[:]...)
}

// ownerKey builds an owner index key: "o/" + owner(32) + id(32).
func ownerKey(owner types.PublicKey, id types.Hash) []byte {
	key := make([]byte, 0, len(prefixOwner)+types.PublicKeySize+types.HashSize)
	key = append(key, prefixOwner...)
	key = append(key, owner[:]...)
	return append(key, id[:]...)
}

// Get retrieves a UTXO by id. Returns ErrNotFound if it is absent.
func (s *Store) Get(id types.Hash) (*UTXO, error) {
	data, err := s.db.Get(utxoKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("utxo get: %w", err)
	}
	var u UTXO
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("utxo unmarshal: %w", err)
	}
	return &u, nil
}

// Has checks if a UTXO exists for the given id.
func (s *Store) Has(id types.Hash) (bool, error) {
	ok, err := s.db.Has(utxoKey(id))
	if err != nil {
		return false, fmt.Errorf("utxo has: %w", err)
	}
	return ok, nil
}

// Insert stores a new UTXO and its owner index entry.
func (s *Store) Insert(u *UTXO) error {
	up := s.Stage(s.db.NewBatch())
	defer up.Discard()
	if err := up.Insert(u); err != nil {
		return err
	}
	return up.Commit()
}

// Remove deletes a UTXO and its owner index entry.
func (s *Store) Remove(id types.Hash) error {
	up := s.Stage(s.db.NewBatch())
	defer up.Discard()
	if err := up.Remove(id); err != nil {
		return err
	}
	return up.Commit()
}

// ForEach iterates over all UTXOs in the store in id order.
func (s *Store) ForEach(fn func(*UTXO) error) error {
	return s.db.ForEach(prefixUTXO, func(key, value []byte) error {
		var u UTXO
		if err := json.Unmarshal(value, &u); err != nil {
			return fmt.Errorf("utxo unmarshal: %w", err)
		}
		return fn(&u)
	})
}

// Count returns the number of UTXOs in the store.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.ForEach(prefixUTXO, func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

// Total returns the sum of all UTXO values.
func (s *Store) Total() (types.Value, error) {
	var total types.Value
	err := s.ForEach(func(u *UTXO) error {
		var ok bool
		if total, ok = total.Add(u.Value); !ok {
			return fmt.Errorf("%w at %s", ErrValueOverflow, u.ID)
		}
		return nil
	})
	if err != nil {
		return types.Value{}, err
	}
	return total, nil
}

// ByOwner returns all UTXOs belonging to the given owner.
// It scans the owner index and loads each referenced UTXO.
func (s *Store) ByOwner(owner types.PublicKey) ([]*UTXO, error) {
	// Build the prefix: "o/" + owner(32).
	prefix := make([]byte, 0, len(prefixOwner)+types.PublicKeySize)
	prefix = append(prefix, prefixOwner...)
	prefix = append(prefix, owner[:]...)

	var utxos []*UTXO
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		// Key layout: "o/" + owner(32) + id(32).
		off := len(prefix)
		if len(key) != off+types.HashSize {
			return nil // Malformed key, skip.
		}
		var id types.Hash
		copy(id[:], key[off:])

		u, err := s.Get(id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		utxos = append(utxos, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan owner index: %w", err)
	}
	return utxos, nil
}

// Stage returns an Update that writes through batch. Nothing is visible in
// the store until the batch commits.
func (s *Store) Stage(batch storage.Batch) *Update {
	return &Update{
		store:    s,
		batch:    batch,
		inserted: make(map[types.Hash]*UTXO),
		removed:  make(map[types.Hash]struct{}),
	}
}

// Update stages inserts and removals against a Store. It implements Set,
// reading through its own staged changes, so a sequence of operations is
// checked exactly as if each had been applied in turn.
type Update struct {
	store    *Store
	batch    storage.Batch
	inserted map[types.Hash]*UTXO
	removed  map[types.Hash]struct{}
}

// Get returns a staged or stored UTXO.
func (up *Update) Get(id types.Hash) (*UTXO, error) {
	if u, ok := up.inserted[id]; ok {
		return u, nil
	}
	if _, gone := up.removed[id]; gone {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return up.store.Get(id)
}

// Has reports whether id is present after the staged changes.
func (up *Update) Has(id types.Hash) (bool, error) {
	if _, ok := up.inserted[id]; ok {
		return true, nil
	}
	if _, gone := up.removed[id]; gone {
		return false, nil
	}
	return up.store.Has(id)
}

// Insert stages a new UTXO. It fails with ErrExists if id is present.
func (up *Update) Insert(u *UTXO) error {
	exists, err := up.Has(u.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrExists, u.ID)
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("utxo marshal: %w", err)
	}
	if err := up.batch.Put(utxoKey(u.ID), data); err != nil {
		return fmt.Errorf("utxo put: %w", err)
	}
	if err := up.batch.Put(ownerKey(u.Owner, u.ID), []byte{}); err != nil {
		return fmt.Errorf("utxo index put: %w", err)
	}
	up.inserted[u.ID] = u
	delete(up.removed, u.ID)
	return nil
}

// Remove stages the removal of id. It fails with ErrNotFound if id is absent.
func (up *Update) Remove(id types.Hash) error {
	// Read first to clean up the owner index.
	u, err := up.Get(id)
	if err != nil {
		return err
	}
	if err := up.batch.Delete(utxoKey(id)); err != nil {
		return fmt.Errorf("utxo delete: %w", err)
	}
	if err := up.batch.Delete(ownerKey(u.Owner, id)); err != nil {
		return fmt.Errorf("utxo index delete: %w", err)
	}
	delete(up.inserted, id)
	up.removed[id] = struct{}{}
	return nil
}

// Commit commits the underlying batch.
func (up *Update) Commit() error {
	return up.batch.Commit()
}

// Discard drops the staged changes.
func (up *Update) Discard() {
	up.batch.Discard()
}
