package pipelines

import (
	"github.com/tonicdex/core/internal/xerrors"
	"github.com/tonicdex/core/pkg/account"
	"github.com/tonicdex/core/pkg/lots"
	"github.com/tonicdex/core/pkg/market"
	"github.com/tonicdex/core/pkg/orderbook"
	"github.com/tonicdex/core/pkg/types"
)

// ComputeRefund converts a cancelled order's remaining open quantity
// back into the native token and side it was locked from: quote for a
// resting buy, base for a resting sell.
func ComputeRefund(m *market.Market, side types.Side, priceLots, openQtyLots uint64) (types.TokenType, uint64, error) {
	if side == types.Buy {
		refund, ok := lots.QuoteNativeForFill(openQtyLots, m.Base.LotSize, priceLots, m.Quote.LotSize, m.Base.Denomination())
		if !ok {
			return types.TokenType{}, 0, lots.ErrOverflow
		}
		return m.Quote.TokenType, refund, nil
	}
	refund, ok := lots.LotsToNative(openQtyLots, m.Base.LotSize)
	if !ok {
		return types.TokenType{}, 0, lots.ErrOverflow
	}
	return m.Base.TokenType, refund, nil
}

// CancelOrder removes a single resting order from the book, refunds
// the owner's locked balance, and drops the order from the owner's
// open-order index. ownerID is the caller's own account; a caller
// cancelling an order it does not own is rejected.
func CancelOrder(m *market.Market, marketID types.MarketID, accounts *account.Manager, ownerID types.AccountID, orderID types.OrderID) (CancelEventData, error) {
	resting, ok := m.Book.GetOrder(orderID)
	if !ok {
		return CancelEventData{}, xerrors.ErrOrderNotFound
	}
	if resting.OwnerID != ownerID {
		return CancelEventData{}, xerrors.ErrNotOrderOwner
	}

	removed, err := m.Book.CancelOrder(orderID)
	if err != nil {
		return CancelEventData{}, err
	}

	return refundCancelledOrder(m, marketID, accounts, removed)
}

// CancelAllOrders cancels every resting order an account holds in a
// market, refunding each in turn. It stops at the first cancellation
// that fails and returns the events of the orders already cancelled
// together with that error.
func CancelAllOrders(m *market.Market, marketID types.MarketID, accounts *account.Manager, ownerID types.AccountID) ([]CancelEventData, error) {
	ids := m.Book.IterateOwned(ownerID)
	events := make([]CancelEventData, 0, len(ids))
	for _, id := range ids {
		ev, err := CancelOrder(m, marketID, accounts, ownerID, id)
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// refundCancelledOrder applies the native-token refund for an order
// already removed from the book and updates the owner's open-order
// index. Shared by the owner-initiated and admin cancellation paths.
func refundCancelledOrder(m *market.Market, marketID types.MarketID, accounts *account.Manager, removed *orderbook.OpenLimitOrder) (CancelEventData, error) {
	refundToken, refundAmount, err := ComputeRefund(m, removed.Side, removed.ID.PriceLots, removed.OpenQtyLots)
	if err != nil {
		return CancelEventData{}, err
	}

	err = accounts.WithAccount(removed.OwnerID, func(acc *account.Account) error {
		acc.Deposit(refundToken, refundAmount)
		acc.RemoveOrderInfo(marketID, removed.ID)
		return nil
	})
	if err != nil {
		return CancelEventData{}, err
	}

	return CancelEventData{
		OrderID:      removed.ID,
		RefundAmount: refundAmount,
		RefundToken:  refundToken,
		CancelledQty: removed.OpenQtyLots,
	}, nil
}

// AdminClearOrderbook force-cancels every resting order in a market on
// both sides, refunding each owner, and returns the cancellation
// events for the emitted admin event. Unlike CancelOrder, there is no
// ownership check: this is an owner-only contract action.
func AdminClearOrderbook(m *market.Market, marketID types.MarketID, accounts *account.Manager) ([]CancelEventData, error) {
	resting := m.Book.AllOrders()
	events := make([]CancelEventData, 0, len(resting))
	for _, o := range resting {
		removed, err := m.Book.CancelOrder(o.ID)
		if err != nil {
			continue // already gone, e.g. consumed by a racing cancel in the same batch
		}
		ev, err := refundCancelledOrder(m, marketID, accounts, removed)
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}
