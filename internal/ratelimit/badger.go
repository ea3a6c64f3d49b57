package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists rate-limit keys as TTL entries, so limits survive
// restarts and can be shared by processes on the same volume.
type BadgerStore struct {
	db     *badger.DB
	prefix string
	owned  bool
}

// OpenBadgerStore opens (or creates) a badger database at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &BadgerStore{db: db, prefix: "rl:", owned: true}, nil
}

// NewBadgerStore wraps an already opened database. Close leaves it open.
func NewBadgerStore(db *badger.DB, prefix string) *BadgerStore {
	if prefix == "" {
		prefix = "rl:"
	}
	return &BadgerStore{db: db, prefix: prefix}
}

func (b *BadgerStore) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	k := []byte(b.prefix + key)
	allowed := false

	err := b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		allowed = true
		return txn.SetEntry(badger.NewEntry(k, []byte{1}).WithTTL(window))
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent request for the same key won the write
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ratelimit allow: %w", err)
	}
	return allowed, nil
}

func (b *BadgerStore) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(b.prefix + key))
	})
	if err != nil {
		return fmt.Errorf("ratelimit release: %w", err)
	}
	return nil
}

func (b *BadgerStore) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}
