// Package storage provides database abstractions.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in key order.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	// NewBatch starts a set of writes that commit atomically.
	NewBatch() Batch
	Close() error
}

// PrefixDropper is implemented by backends that can remove every key under
// a prefix without buffering the deletes in one batch.
type PrefixDropper interface {
	DropPrefix(prefix []byte) error
}

// Batch buffers writes until Commit. Either every write becomes visible or
// none does. A batch must not be used after Commit or Discard.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	// Discard drops the buffered writes. It is safe to call after Commit.
	Discard()
}
