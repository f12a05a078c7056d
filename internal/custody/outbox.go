// Package custody implements deposit/withdraw, storage-balance
// management, and the two-phase "send -> resolve" pattern for external
// token transfers. Only withdrawals (token withdrawals and storage-balance
// payouts) are scheduled; the TransferSwapPayout kind is declared but
// nothing schedules it, and a swap's output amount is returned to the
// caller in its result rather than transferred.
package custody

import (
	"sync"

	"github.com/tonicdex/core/pkg/types"
)

// TransferKind distinguishes the outbound transfers the outbox tracks.
type TransferKind uint8

const (
	TransferWithdraw TransferKind = iota
	TransferSwapPayout
)

// Resolution is the typed result of observing an outbound transfer,
// mirroring the spec's Succeeded/Failed/NotReady resolution enum.
type Resolution uint8

const (
	NotReady Resolution = iota
	Succeeded
	Failed
)

// PendingTransfer is a scheduled outbound call, between the "send"
// phase that debits the account and the "resolve" phase that observes
// whether the external transfer actually went through.
type PendingTransfer struct {
	ID        uint64
	Kind      TransferKind
	Account   types.AccountID
	Token     types.TokenType
	Amount    uint64
	Resolved  bool
	Resolution Resolution
}

// Outbox tracks in-flight transfers in a map keyed by transfer id,
// adapted from the teacher's FIFO-bucket mempool and repurposed from
// consensus-transaction ordering to custody-transfer tracking. It keeps
// no ordering between pending transfers; each is looked up by its id.
type Outbox struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*PendingTransfer
}

func NewOutbox() *Outbox {
	return &Outbox{pending: make(map[uint64]*PendingTransfer)}
}

// Schedule registers a new outbound transfer and returns its id, to be
// passed to the corresponding resolve call once the host observes the
// external call's outcome.
func (o *Outbox) Schedule(kind TransferKind, account types.AccountID, token types.TokenType, amount uint64) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	id := o.nextID
	o.pending[id] = &PendingTransfer{ID: id, Kind: kind, Account: account, Token: token, Amount: amount}
	return id
}

// Resolve observes the outcome of a scheduled transfer. The contract
// guarantees at most one resolve per scheduled call: a second resolve
// for the same id returns NotReady rather than re-applying state.
func (o *Outbox) Resolve(id uint64, succeeded bool) (*PendingTransfer, Resolution) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.pending[id]
	if !ok || t.Resolved {
		return nil, NotReady
	}
	t.Resolved = true
	if succeeded {
		t.Resolution = Succeeded
	} else {
		t.Resolution = Failed
	}
	delete(o.pending, id)
	return t, t.Resolution
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
