package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// BadgerKV wraps a Badger database instance as the engine's KV backend.
type BadgerKV struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenBadger opens (or creates) a Badger database at the given path.
// SyncWrites is on: a write that returned is durably on disk, which is what
// the transaction log's crash-safety argument relies on.
func OpenBadger(path string, logger *slog.Logger) (*BadgerKV, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return &BadgerKV{db: db, logger: logger}, nil
}

// Close gracefully closes the database connection.
func (s *BadgerKV) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Get retrieves a value by key.
func (s *BadgerKV) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, Unavailable("get", err)
	}
	return value, nil
}

// Set stores a value by key.
func (s *BadgerKV) Set(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return Unavailable("set", err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *BadgerKV) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return Unavailable("delete", err)
	}
	return nil
}

// ListKeys returns every key under the prefix in lexicographic order.
// Values are not fetched.
func (s *BadgerKV) ListKeys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, Unavailable("list", err)
	}
	return keys, nil
}

// MultiDelete removes the given keys in a single write batch.
func (s *BadgerKV) MultiDelete(_ context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete([]byte(key)); err != nil {
			return Unavailable("multi-delete", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return Unavailable("multi-delete", err)
	}
	return nil
}
