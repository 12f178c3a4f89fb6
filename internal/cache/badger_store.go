package cache

import (
	"context"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const entryKeyPrefix = "rec-cache:"

// BadgerStore implements Store on top of an embedded BadgerDB, using
// BadgerDB's native per-key TTL rather than a manually-tracked expiry
// column, grounded on the BadgerSessionStore pattern used elsewhere in
// this dependency family for TTL-bound key/value records.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a BadgerDB at dir and wraps it as a
// Store. Callers own the returned Store's lifecycle and must call Close.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open badger")
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreFromDB wraps an already-open BadgerDB, useful when the
// database is shared with other subsystems or opened in-memory for tests.
func NewBadgerStoreFromDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %q", key)
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

func (s *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := badger.NewEntry(dbKey(key), value)
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
	if err != nil {
		return eris.Wrapf(err, "cache: set %q", key)
	}
	return nil
}

// PurgeExpired deletes entries whose TTL has elapsed. BadgerDB already
// hides expired entries from reads and reclaims their space during value
// log GC, so this is a best-effort explicit sweep for callers (see
// internal/orchestrator stage 8) that want the count of reclaimed keys.
func (s *BadgerStore) PurgeExpired(ctx context.Context) (int, error) {
	var removed int
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		var stale [][]byte
		now := uint64(time.Now().Unix())
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if expiry := item.ExpiresAt(); expiry != 0 && expiry <= now {
				stale = append(stale, append([]byte(nil), item.Key()...))
			}
		}
		for _, k := range stale {
			if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, eris.Wrap(err, "cache: purge expired")
	}
	if removed > 0 {
		zap.L().Debug("cache: purged expired entries", zap.Int("removed", removed))
	}
	return removed, nil
}

func (s *BadgerStore) StatsSnapshot(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			stats.Count++
			createdAt := time.Unix(int64(item.Version()), 0)
			if stats.EarliestCreated.IsZero() || createdAt.Before(stats.EarliestCreated) {
				stats.EarliestCreated = createdAt
			}
			if createdAt.After(stats.LatestCreated) {
				stats.LatestCreated = createdAt
			}
		}
		return nil
	})
	if err != nil {
		return stats, eris.Wrap(err, "cache: stats snapshot")
	}
	return stats, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func dbKey(key string) []byte {
	return []byte(entryKeyPrefix + key)
}
