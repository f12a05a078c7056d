package account

import (
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "accounts"))
	if err != nil {
		t.Fatalf("NewStore() unexpected error: %v", err)
	}
	m := NewManager(s)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerCreateAndGet(t *testing.T) {
	m := newTestManager(t)
	acc, err := m.Create(alice)
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if !acc.IsEmpty() {
		t.Error("expected a newly created account to be empty")
	}

	got, err := m.Get(alice)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if got != acc {
		t.Error("expected Get() to return the cached instance created by Create()")
	}
}

func TestManagerCreateIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	first, err := m.Create(alice)
	if err != nil {
		t.Fatalf("first Create() unexpected error: %v", err)
	}
	second, err := m.Create(alice)
	if err != nil {
		t.Fatalf("second Create() unexpected error: %v", err)
	}
	if first != second {
		t.Error("expected Create() to be idempotent and return the existing account")
	}
}

func TestManagerGetUnknownAccount(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Get(alice); err != ErrAccountNotFound {
		t.Errorf("Get() error = %v, want ErrAccountNotFound", err)
	}
}

func TestManagerExists(t *testing.T) {
	m := newTestManager(t)
	if m.Exists(alice) {
		t.Error("expected Exists() to be false before the account is created")
	}
	m.Create(alice)
	if !m.Exists(alice) {
		t.Error("expected Exists() to be true after Create()")
	}
}

func TestManagerWithAccountPersists(t *testing.T) {
	m := newTestManager(t)
	m.Create(alice)

	err := m.WithAccount(alice, func(acc *Account) error {
		acc.Deposit(usdc, 500)
		return nil
	})
	if err != nil {
		t.Fatalf("WithAccount() unexpected error: %v", err)
	}

	// Drop the in-memory cache entry to force a reload from the store,
	// proving WithAccount actually flushed the mutation.
	delete(m.accounts, alice)

	got, err := m.Get(alice)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if got.GetBalance(usdc) != 500 {
		t.Errorf("reloaded balance = %d, want 500", got.GetBalance(usdc))
	}
}

func TestManagerDelete(t *testing.T) {
	m := newTestManager(t)
	m.Create(alice)
	if err := m.Delete(alice); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	if _, err := m.Get(alice); err != ErrAccountNotFound {
		t.Errorf("Get() after Delete() error = %v, want ErrAccountNotFound", err)
	}
}
