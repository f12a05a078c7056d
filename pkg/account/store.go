package account

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/tonicdex/core/pkg/types"
)

const (
	prefixAccount = "acc:"
)

func accountKey(id types.AccountID) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixAccount, id.Hex()))
}

// Store persists accounts to a Pebble instance, JSON-encoded, the way
// the teacher repo's account store does.
type Store struct {
	db *pebble.DB
}

func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(128 << 20), // 128MB cache
		MemTableSize:          64 << 20,                   // 64MB memtable
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		LBaseMaxBytes:         64 << 20, // 64MB
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10, // 512KB
	}
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("account: open store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) SaveAccount(acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("account: marshal: %w", err)
	}
	id, _ := acc.ID()
	if err := s.db.Set(accountKey(id), data, pebble.Sync); err != nil {
		return fmt.Errorf("account: save: %w", err)
	}
	return nil
}

// LoadAccount returns (nil, nil) if the account does not exist.
func (s *Store) LoadAccount(id types.AccountID) (*Account, error) {
	data, closer, err := s.db.Get(accountKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account: load: %w", err)
	}
	defer closer.Close()

	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("account: unmarshal: %w", err)
	}
	acc.EnsureMaps()
	acc.SetID(id)
	return &acc, nil
}

func (s *Store) DeleteAccount(id types.AccountID) error {
	if err := s.db.Delete(accountKey(id), pebble.Sync); err != nil {
		return fmt.Errorf("account: delete: %w", err)
	}
	return nil
}

// IterateAccounts visits every persisted account. Used by admin views
// and tests; not on any hot path.
func (s *Store) IterateAccounts(fn func(*Account) error) error {
	lower := []byte(prefixAccount)
	upper := keyUpperBound(lower)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		var acc Account
		if err := json.Unmarshal(iter.Value(), &acc); err != nil {
			continue
		}
		acc.EnsureMaps()
		if err := fn(&acc); err != nil {
			return err
		}
	}
	return nil
}

func keyUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}
