// Package archive persists reply entries in a BadgerDB key-value store
// so the receiver can warm its in-memory cache after a restart. The
// archive is append-only; the in-memory ReplyCache remains the serving
// path for the read endpoints.
package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/user/pulserelay/internal/types"
)

// Store is a badger-backed append-only log of reply entries, keyed by
// timestamp so iteration order is chronological.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the archive at dirPath.
func Open(dirPath string) (*Store, error) {
	opts := badger.DefaultOptions(dirPath).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open reply archive: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// key orders entries chronologically; the uuid suffix keeps entries
// with identical timestamps distinct.
func key(e types.ReplyEntry) []byte {
	return []byte(e.Timestamp.UTC().Format(time.RFC3339Nano) + "/" + uuid.New().String())
}

// Append stores one reply entry.
func (s *Store) Append(e types.ReplyEntry) error {
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal reply entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(e), val)
	})
}

// Recent returns up to n of the newest entries, oldest first, matching
// the ordering the reply cache expects when seeding.
func (s *Store) Recent(n int) ([]types.ReplyEntry, error) {
	var newestFirst []types.ReplyEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(newestFirst) < n; it.Next() {
			var e types.ReplyEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("unmarshal reply entry: %w", err)
			}
			newestFirst = append(newestFirst, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]types.ReplyEntry, len(newestFirst))
	for i, e := range newestFirst {
		out[len(out)-1-i] = e
	}
	return out, nil
}
