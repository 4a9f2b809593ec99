package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"readiness-sync/internal/domain"

	"github.com/dgraph-io/badger/v4"
)

const DefaultHistoryLimit = 100

// HistoryRepository keeps a bounded audit log per venture. When the log is
// full the oldest entry is evicted.
type HistoryRepository interface {
	Append(entry *domain.HistoryEntry) error
	List(ventureID string) ([]*domain.HistoryEntry, error)
	DeleteAll(ventureID string) error
}

type historyRepository struct {
	db    *badger.DB
	limit int
}

func NewHistoryRepository(db *badger.DB, limit int) HistoryRepository {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &historyRepository{db: db, limit: limit}
}

func historyPrefix(ventureID string) []byte {
	return []byte(fmt.Sprintf("%shistory:%s:", keyPrefix, ventureID))
}

func historyKey(ventureID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%shistory:%s:%020d", keyPrefix, ventureID, seq))
}

func (r *historyRepository) Append(entry *domain.HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}

	prefix := historyPrefix(entry.VentureID)
	err = r.db.Update(func(txn *badger.Txn) error {
		keys := keysWithPrefix(txn, prefix)

		var next uint64
		if len(keys) > 0 {
			last := strings.TrimPrefix(string(keys[len(keys)-1]), string(prefix))
			seq, err := strconv.ParseUint(last, 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt history key %q: %w", keys[len(keys)-1], err)
			}
			next = seq + 1
		}

		if err := txn.Set(historyKey(entry.VentureID, next), data); err != nil {
			return err
		}

		for excess := len(keys) + 1 - r.limit; excess > 0; excess-- {
			if err := txn.Delete(keys[0]); err != nil {
				return err
			}
			keys = keys[1:]
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// List returns entries oldest first.
func (r *historyRepository) List(ventureID string) ([]*domain.HistoryEntry, error) {
	var entries []*domain.HistoryEntry
	prefix := historyPrefix(ventureID)

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry domain.HistoryEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

func (r *historyRepository) DeleteAll(ventureID string) error {
	prefix := historyPrefix(ventureID)
	err := r.db.Update(func(txn *badger.Txn) error {
		for _, key := range keysWithPrefix(txn, prefix) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

func keysWithPrefix(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}
