package account

import (
	"errors"
	"sync"

	"github.com/tonicdex/core/pkg/types"
)

var ErrAccountNotFound = errors.New("account: not found")

// Manager caches accounts in memory and persists them through Store,
// mirroring the teacher's AccountManager locking idiom: every mutation
// happens under a single mutex and is flushed back to the store before
// the call returns (the spec's "every write path saves back to the
// store before returning").
type Manager struct {
	mu       sync.RWMutex
	accounts map[types.AccountID]*Account
	store    *Store
}

func NewManager(store *Store) *Manager {
	return &Manager{accounts: make(map[types.AccountID]*Account), store: store}
}

// Get returns an existing account, loading it from the store into the
// cache on first access. Returns ErrAccountNotFound if it has never
// been registered via Create.
func (m *Manager) Get(id types.AccountID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *Manager) getLocked(id types.AccountID) (*Account, error) {
	if acc, ok := m.accounts[id]; ok {
		return acc, nil
	}
	acc, err := m.store.LoadAccount(id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	m.accounts[id] = acc
	return acc, nil
}

// Exists reports whether an account is registered, without the
// ErrAccountNotFound plumbing.
func (m *Manager) Exists(id types.AccountID) bool {
	_, err := m.Get(id)
	return err == nil
}

// Create registers a brand-new, empty account. Callers (the custody
// layer's storage_deposit) are responsible for enforcing the minimum
// deposit before calling this.
func (m *Manager) Create(id types.AccountID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; ok {
		return m.accounts[id], nil
	}
	acc := New(id)
	m.accounts[id] = acc
	if err := m.store.SaveAccount(acc); err != nil {
		delete(m.accounts, id)
		return nil, err
	}
	return acc, nil
}

// Save persists the in-memory state of an account back to the store.
// Every mutating operation in the custody/pipeline/settlement layers
// ends with a call to Save.
func (m *Manager) Save(acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.SaveAccount(acc)
}

// Delete removes an account entirely. Only valid on an empty account
// (storage_unregister's precondition).
func (m *Manager) Delete(id types.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return m.store.DeleteAccount(id)
}

// WithAccount runs fn against the account under the manager's lock,
// saving it back to the store afterward unless fn returns an error —
// this gives callers a single-mutation-per-call shape that always ends
// consistently in a flush, matching "every write path saves back to
// that store before returning".
func (m *Manager) WithAccount(id types.AccountID, fn func(*Account) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.getLocked(id)
	if err != nil {
		return err
	}
	if err := fn(acc); err != nil {
		return err
	}
	return m.store.SaveAccount(acc)
}

func (m *Manager) Close() error { return m.store.Close() }
