// Package account implements the per-user exchange account: deposited
// token balances, the open-order index (per market), and the
// storage-balance discipline that ties persisted account size to a
// reserved native-currency deposit.
package account

import (
	"encoding/json"
	"errors"

	"github.com/tonicdex/core/pkg/types"
)

var (
	ErrInsufficientBalance        = errors.New("account: insufficient balance")
	ErrExceededOrderLimit         = errors.New("account: exceeded order limit for market")
	ErrInsufficientStorageBalance = errors.New("account: insufficient storage balance")
)

// OpenOrderInfo is what an account remembers locally about one of its
// resting orders: how big it originally was, and when it was placed.
type OpenOrderInfo struct {
	OriginalQtyLots uint64
	CreatedAt       int64
}

// Account is a user's exchange-custodied state.
type Account struct {
	id    types.AccountID
	idSet bool

	Balances   map[string]uint64                                 `json:"balances"`
	OpenOrders map[types.MarketID]map[types.OrderID]OpenOrderInfo `json:"open_orders"`

	StorageBalance uint64 `json:"storage_balance"`
}

func New(id types.AccountID) *Account {
	a := &Account{
		Balances:   make(map[string]uint64),
		OpenOrders: make(map[types.MarketID]map[types.OrderID]OpenOrderInfo),
	}
	a.SetID(id)
	return a
}

// SetID sets the transient, non-persisted account id after a load.
func (a *Account) SetID(id types.AccountID) {
	a.id = id
	a.idSet = true
}

func (a *Account) ID() (types.AccountID, bool) { return a.id, a.idSet }

// EnsureMaps re-initializes nil maps after a JSON unmarshal of a record
// that had no balances or open orders when it was saved.
func (a *Account) EnsureMaps() {
	if a.Balances == nil {
		a.Balances = make(map[string]uint64)
	}
	if a.OpenOrders == nil {
		a.OpenOrders = make(map[types.MarketID]map[types.OrderID]OpenOrderInfo)
	}
}

// Deposit adds amount to the account's balance of token.
func (a *Account) Deposit(token types.TokenType, amount uint64) {
	key := token.Key()
	a.Balances[key] += amount
}

// Withdraw subtracts amount from the account's balance of token,
// failing if the balance is insufficient. A balance that reaches
// exactly zero is removed rather than kept as a zero entry.
func (a *Account) Withdraw(token types.TokenType, amount uint64) error {
	key := token.Key()
	bal, ok := a.Balances[key]
	if !ok || bal < amount {
		return ErrInsufficientBalance
	}
	if bal == amount {
		delete(a.Balances, key)
	} else {
		a.Balances[key] = bal - amount
	}
	return nil
}

func (a *Account) GetBalance(token types.TokenType) uint64 {
	return a.Balances[token.Key()]
}

func (a *Account) GetBalances() map[string]uint64 {
	out := make(map[string]uint64, len(a.Balances))
	for k, v := range a.Balances {
		out[k] = v
	}
	return out
}

// SaveOrderInfo records a newly posted resting order against the
// account's per-market open-order index, rejecting the order if the
// account already holds the market's maximum.
func (a *Account) SaveOrderInfo(marketID types.MarketID, orderID types.OrderID, originalQtyLots uint64, maxAllowedOrders int, now int64) error {
	inMarket, ok := a.OpenOrders[marketID]
	if !ok {
		inMarket = make(map[types.OrderID]OpenOrderInfo)
		a.OpenOrders[marketID] = inMarket
	}
	if len(inMarket) >= maxAllowedOrders {
		return ErrExceededOrderLimit
	}
	inMarket[orderID] = OpenOrderInfo{OriginalQtyLots: originalQtyLots, CreatedAt: now}
	return nil
}

// RemoveOrderInfo removes one order id from the account's index for a
// market, cleaning up the market entry entirely if it becomes empty.
// Returns false if the order was not tracked.
func (a *Account) RemoveOrderInfo(marketID types.MarketID, orderID types.OrderID) bool {
	inMarket, ok := a.OpenOrders[marketID]
	if !ok {
		return false
	}
	if _, ok := inMarket[orderID]; !ok {
		return false
	}
	delete(inMarket, orderID)
	if len(inMarket) == 0 {
		delete(a.OpenOrders, marketID)
	}
	return true
}

// RemoveAllOrderInfos clears every tracked order for a market and
// returns the ids that were removed.
func (a *Account) RemoveAllOrderInfos(marketID types.MarketID) []types.OrderID {
	inMarket, ok := a.OpenOrders[marketID]
	if !ok {
		return nil
	}
	out := make([]types.OrderID, 0, len(inMarket))
	for id := range inMarket {
		out = append(out, id)
	}
	delete(a.OpenOrders, marketID)
	return out
}

func (a *Account) GetOrderInfo(marketID types.MarketID, orderID types.OrderID) (OpenOrderInfo, bool) {
	inMarket, ok := a.OpenOrders[marketID]
	if !ok {
		return OpenOrderInfo{}, false
	}
	info, ok := inMarket[orderID]
	return info, ok
}

func (a *Account) OpenOrdersIter(marketID types.MarketID) []types.OrderID {
	inMarket, ok := a.OpenOrders[marketID]
	if !ok {
		return nil
	}
	out := make([]types.OrderID, 0, len(inMarket))
	for id := range inMarket {
		out = append(out, id)
	}
	return out
}

// IsEmpty reports whether the account has no balances and no open
// orders, the precondition for storage_unregister.
func (a *Account) IsEmpty() bool {
	return len(a.Balances) == 0 && len(a.OpenOrders) == 0
}

// EncodedSize measures the JSON-encoded size of the account record,
// the Go analogue of the spec's borsh_size, used for storage-balance
// accounting.
func (a *Account) EncodedSize() (uint64, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return 0, err
	}
	return uint64(len(b)), nil
}

// StorageBalanceLocked returns the native-currency amount required to
// cover this account's current persisted size at byteCost per byte.
func (a *Account) StorageBalanceLocked(byteCost uint64) (uint64, error) {
	size, err := a.EncodedSize()
	if err != nil {
		return 0, err
	}
	return size * byteCost, nil
}

func (a *Account) IsStorageCovered(byteCost uint64) (bool, error) {
	locked, err := a.StorageBalanceLocked(byteCost)
	if err != nil {
		return false, err
	}
	return locked <= a.StorageBalance, nil
}

func (a *Account) StorageBalanceAvailable(byteCost uint64) (uint64, error) {
	locked, err := a.StorageBalanceLocked(byteCost)
	if err != nil {
		return 0, err
	}
	if locked > a.StorageBalance {
		return 0, nil
	}
	return a.StorageBalance - locked, nil
}

// AssertStorageCovered is the "panics on insufficient storage" variant
// used on all mandatory code paths.
func (a *Account) AssertStorageCovered(byteCost uint64) error {
	covered, err := a.IsStorageCovered(byteCost)
	if err != nil {
		return err
	}
	if !covered {
		return ErrInsufficientStorageBalance
	}
	return nil
}
