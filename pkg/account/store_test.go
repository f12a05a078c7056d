package account

import (
	"path/filepath"
	"testing"

	"github.com/tonicdex/core/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "accounts"))
	if err != nil {
		t.Fatalf("NewStore() unexpected error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	acc := New(alice)
	acc.Deposit(usdc, 1000)
	acc.StorageBalance = 500

	if err := s.SaveAccount(acc); err != nil {
		t.Fatalf("SaveAccount() unexpected error: %v", err)
	}

	got, err := s.LoadAccount(alice)
	if err != nil {
		t.Fatalf("LoadAccount() unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("LoadAccount() returned nil for a saved account")
	}
	if got.GetBalance(usdc) != 1000 {
		t.Errorf("loaded balance = %d, want 1000", got.GetBalance(usdc))
	}
	if got.StorageBalance != 500 {
		t.Errorf("loaded storage balance = %d, want 500", got.StorageBalance)
	}
	gotID, ok := got.ID()
	if !ok || gotID != alice {
		t.Error("expected LoadAccount to set the transient ID")
	}
}

func TestStoreLoadMissingAccount(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LoadAccount(alice)
	if err != nil {
		t.Fatalf("LoadAccount() unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected LoadAccount to return nil for a never-saved account")
	}
}

func TestStoreDeleteAccount(t *testing.T) {
	s := newTestStore(t)
	acc := New(alice)
	if err := s.SaveAccount(acc); err != nil {
		t.Fatalf("SaveAccount() unexpected error: %v", err)
	}
	if err := s.DeleteAccount(alice); err != nil {
		t.Fatalf("DeleteAccount() unexpected error: %v", err)
	}
	got, err := s.LoadAccount(alice)
	if err != nil {
		t.Fatalf("LoadAccount() unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected account to be gone after DeleteAccount")
	}
}

func TestStoreIterateAccounts(t *testing.T) {
	s := newTestStore(t)
	bob := alice
	bob[19]++ // a distinct address derived from alice's
	for _, id := range []types.AccountID{alice, bob} {
		acc := New(id)
		acc.Deposit(usdc, 1)
		if err := s.SaveAccount(acc); err != nil {
			t.Fatalf("SaveAccount() unexpected error: %v", err)
		}
	}

	count := 0
	var totalBalance uint64
	err := s.IterateAccounts(func(acc *Account) error {
		count++
		totalBalance += acc.GetBalance(usdc)
		return nil
	})
	if err != nil {
		t.Fatalf("IterateAccounts() unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("IterateAccounts() visited %d accounts, want 2", count)
	}
	if totalBalance != 2 {
		t.Errorf("IterateAccounts() summed balance = %d, want 2", totalBalance)
	}
}
