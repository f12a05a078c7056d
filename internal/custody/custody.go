package custody

import (
	"errors"

	"github.com/tonicdex/core/internal/host"
	"github.com/tonicdex/core/pkg/account"
	"github.com/tonicdex/core/pkg/types"
)

var (
	ErrAccountAlreadyRegistered = errors.New("custody: account already registered")
	ErrAccountNotEmpty          = errors.New("custody: account not empty")
	ErrBelowMinimumDeposit      = errors.New("custody: deposit below minimum required")
)

// Manager wraps the account manager with the deposit/withdraw and
// storage-balance entry points from spec §4.I.
type Manager struct {
	accounts *account.Manager
	outbox   *Outbox
	host     host.Host
}

func New(accounts *account.Manager, outbox *Outbox, h host.Host) *Manager {
	return &Manager{accounts: accounts, outbox: outbox, host: h}
}

// minRequiredStorageBalance is the smallest storage deposit that can
// cover a brand-new, empty account record.
func (m *Manager) minRequiredStorageBalance() (uint64, error) {
	empty := account.New(types.AccountID{})
	return empty.StorageBalanceLocked(m.host.StorageByteCost())
}

// StorageDeposit implements storage_deposit(account?, registration_only?).
// If the account already exists, amount is added to its storage
// balance (ignored entirely when registrationOnly is set). Otherwise a
// new empty account is created, requiring amount to cover the minimum;
// any surplus over what registration strictly required is still kept
// as storage balance (NEAR-style storage deposits are not refunded
// unless the caller calls storage_withdraw).
func (m *Manager) StorageDeposit(id types.AccountID, amount uint64, registrationOnly bool) (*account.Account, error) {
	if acc, err := m.accounts.Get(id); err == nil {
		if !registrationOnly {
			acc.StorageBalance += amount
			if err := m.accounts.Save(acc); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}

	minRequired, err := m.minRequiredStorageBalance()
	if err != nil {
		return nil, err
	}
	if amount < minRequired {
		return nil, ErrBelowMinimumDeposit
	}
	acc, err := m.accounts.Create(id)
	if err != nil {
		return nil, err
	}
	acc.StorageBalance = amount
	if err := m.accounts.Save(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// StorageWithdraw reduces the account's storage balance by at most what
// is currently unlocked (not backing the account's persisted bytes),
// and schedules the native payout through the outbox.
func (m *Manager) StorageWithdraw(id types.AccountID, amount *uint64) (uint64, uint64, error) {
	var withdrawn uint64
	var transferID uint64
	err := m.accounts.WithAccount(id, func(acc *account.Account) error {
		available, err := acc.StorageBalanceAvailable(m.host.StorageByteCost())
		if err != nil {
			return err
		}
		want := available
		if amount != nil && *amount < want {
			want = *amount
		}
		acc.StorageBalance -= want
		withdrawn = want
		transferID = m.outbox.Schedule(TransferWithdraw, id, types.Native(), want)
		return nil
	})
	return withdrawn, transferID, err
}

// StorageUnregister deletes an account that holds no balances and no
// open orders, refunding its full storage balance.
func (m *Manager) StorageUnregister(id types.AccountID, force bool) (uint64, error) {
	acc, err := m.accounts.Get(id)
	if err != nil {
		return 0, err
	}
	if !force && !acc.IsEmpty() {
		return 0, ErrAccountNotEmpty
	}
	refund := acc.StorageBalance
	if err := m.accounts.Delete(id); err != nil {
		return 0, err
	}
	m.outbox.Schedule(TransferWithdraw, id, types.Native(), refund)
	return refund, nil
}

// Deposit credits an external token-in to an account's exchange
// balance. Corresponds to ft_on_transfer/mt_on_transfer with an empty
// msg, and to deposit_near.
func (m *Manager) Deposit(id types.AccountID, token types.TokenType, amount uint64) error {
	return m.accounts.WithAccount(id, func(acc *account.Account) error {
		acc.Deposit(token, amount)
		return nil
	})
}

// Withdraw debits the user's exchange balance and schedules the
// external transfer; it does not itself observe success or failure —
// ResolveWithdraw does that once the host reports the outcome.
func (m *Manager) Withdraw(id types.AccountID, token types.TokenType, amount uint64) (uint64, error) {
	var transferID uint64
	err := m.accounts.WithAccount(id, func(acc *account.Account) error {
		if err := acc.Withdraw(token, amount); err != nil {
			return err
		}
		transferID = m.outbox.Schedule(TransferWithdraw, id, token, amount)
		return nil
	})
	return transferID, err
}

// ResolveWithdraw observes the outcome of a scheduled withdraw. On
// failure the internal debit is reversed by re-crediting the account;
// if the account was deregistered in the meantime, the contract owner
// is credited instead as a last-resort escrow, so tokens are never
// left in limbo.
func (m *Manager) ResolveWithdraw(transferID uint64, succeeded bool, ownerID types.AccountID) (Resolution, error) {
	transfer, resolution := m.outbox.Resolve(transferID, succeeded)
	if transfer == nil {
		return NotReady, nil
	}
	if resolution == Succeeded {
		return Succeeded, nil
	}
	// Failed: reverse the debit.
	err := m.accounts.WithAccount(transfer.Account, func(acc *account.Account) error {
		acc.Deposit(transfer.Token, transfer.Amount)
		return nil
	})
	if err != nil {
		// Account no longer exists: escrow to the owner.
		if escrowErr := m.accounts.WithAccount(ownerID, func(acc *account.Account) error {
			acc.Deposit(transfer.Token, transfer.Amount)
			return nil
		}); escrowErr != nil {
			return Failed, escrowErr
		}
	}
	return Failed, nil
}
