// Package store provides the persistent key-value layer the cache engine
// sits on. The KV interface narrows a device store to the five primitives
// the engine needs; BadgerKV is the default backend, with a SQLite backend
// in the sqlite subpackage for platforms where Badger is unavailable.
package store

import "context"

// KV is the persistence contract for the engine. Keys are logical strings
// built by the helpers in keys.go; values are opaque bytes (JSON documents
// in practice).
//
// Get returns ErrKeyNotFound when no value exists. Delete and MultiDelete
// are idempotent: deleting an absent key is not an error. Any backend
// failure surfaces as a STORAGE_UNAVAILABLE domain error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// ListKeys returns every key with the given prefix in lexicographic
	// order. Values are not read.
	ListKeys(ctx context.Context, prefix string) ([]string, error)

	// MultiDelete removes the given keys in a single write batch. Either
	// the whole batch lands or none of it does.
	MultiDelete(ctx context.Context, keys []string) error

	Close() error
}

// EventEmitter is the interface for emitting SSE events.
// The cache repository uses this to broadcast changes without depending on
// SSE implementation details.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}
