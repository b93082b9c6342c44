package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleStore is the single durable KV store shared by the ledger, the order
// store, the metering service, and the event journal. Sharing one DB lets a
// settlement commit balances and the order record in one atomic batch.
type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens a Pebble database at the given path
func NewPebbleStore(path string) (*PebbleStore, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(128 << 20), // 128MB cache
		MemTableSize:             64 << 20,                   // 64MB memtable
		MaxConcurrentCompactions: func() int { return 3 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		LBaseMaxBytes:            64 << 20,
		MaxOpenFiles:             1000,
		BytesPerSync:             512 << 10,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}

	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// Get returns the value for key, or ok=false if the key does not exist.
func (s *PebbleStore) Get(key []byte) ([]byte, bool, error) {
	data, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	defer closer.Close()

	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// Set writes a key synchronously.
func (s *PebbleStore) Set(key, val []byte) error {
	if err := s.db.Set(key, val, pebble.Sync); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key synchronously.
func (s *PebbleStore) Delete(key []byte) error {
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Scan iterates all keys under prefix, invoking fn for each entry.
// Iteration stops at the first error returned by fn.
func (s *PebbleStore) Scan(prefix []byte, fn func(key, val []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: KeyUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Batch groups writes that must commit atomically
type Batch struct {
	batch *pebble.Batch
}

func (s *PebbleStore) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

func (b *Batch) Set(key, val []byte) error { return b.batch.Set(key, val, nil) }
func (b *Batch) Delete(key []byte) error   { return b.batch.Delete(key, nil) }

// Commit writes the batch to Pebble atomically
func (b *Batch) Commit() error { return b.batch.Commit(pebble.Sync) }

// Close closes the batch without committing
func (b *Batch) Close() error { return b.batch.Close() }
