// Package settlement credits makers and routes the referrer rebate; the
// calling order pipeline debits/credits the taker and accrues net fees
// to the market. Grounded line-for-line on the original's settlement.rs.
package settlement

import (
	"github.com/tonicdex/core/internal/host"
	"github.com/tonicdex/core/pkg/account"
	"github.com/tonicdex/core/pkg/lots"
	"github.com/tonicdex/core/pkg/market"
	"github.com/tonicdex/core/pkg/orderbook"
	"github.com/tonicdex/core/pkg/types"
)

// FillEventData is one entry of a Fill event payload.
type FillEventData struct {
	FillQtyLots   uint64
	FillPriceLots uint64
	QuoteQty      uint64
	MakerOrderID  types.OrderID
	MakerRebate   uint64
	Side          types.Side
	TakerAccount  types.AccountID
	MakerAccount  types.AccountID
}

// MakerSettlementResult is the aggregate of settling every match from
// one incoming order.
type MakerSettlementResult struct {
	BaseTraded      uint64
	QuoteTraded     uint64
	TotalMakerRebate uint64
}

// SettleMakerFills credits every maker touched by a taker's matches,
// one account write per maker, and returns the aggregate native
// base/quote traded plus the fill events to emit.
func SettleMakerFills(
	takerSide types.Side,
	marketID types.MarketID,
	m *market.Market,
	matches []orderbook.Match,
	accounts *account.Manager,
	takerAccountID types.AccountID,
) (MakerSettlementResult, []FillEventData, error) {
	var result MakerSettlementResult
	events := make([]FillEventData, 0, len(matches))

	for _, match := range matches {
		makerRebate := m.FeeCalculator.MakerRebate(match.NativeQuotePaid)
		nativeBase, ok := lots.LotsToNative(match.FillQtyLots, m.Base.LotSize)
		if !ok {
			return result, nil, lots.ErrOverflow
		}

		err := accounts.WithAccount(match.MakerOwnerID, func(acc *account.Account) error {
			if match.DidRemoveMakerOrder {
				acc.RemoveOrderInfo(marketID, match.MakerOrderID)
			}
			if takerSide == types.Buy {
				acc.Deposit(m.Quote.TokenType, match.NativeQuotePaid+makerRebate)
			} else {
				acc.Deposit(m.Base.TokenType, nativeBase)
				acc.Deposit(m.Quote.TokenType, makerRebate)
			}
			return nil
		})
		if err != nil {
			return result, nil, err
		}

		result.BaseTraded += nativeBase
		result.QuoteTraded += match.NativeQuotePaid
		result.TotalMakerRebate += makerRebate

		events = append(events, FillEventData{
			FillQtyLots:   match.FillQtyLots,
			FillPriceLots: match.FillPriceLots,
			QuoteQty:      match.NativeQuotePaid,
			MakerOrderID:  match.MakerOrderID,
			MakerRebate:   makerRebate,
			Side:          takerSide,
			TakerAccount:  takerAccountID,
			MakerAccount:  match.MakerOwnerID,
		})
	}

	return result, events, nil
}

// SettleReferrerRebate attempts to deposit the referrer's cut of the
// taker fee. If the referrer account does not exist, or depositing
// would leave its storage balance uncovered, the rebate is zeroed and
// the caller folds it into the market's accrued fees instead — the
// policy that preserves total supply when storage budget is the
// blocker.
func SettleReferrerRebate(
	accounts *account.Manager,
	h host.Host,
	quoteToken types.TokenType,
	referrerID *types.AccountID,
	takerFeeLessMakerRebate uint64,
) uint64 {
	if referrerID == nil {
		return 0
	}
	rebate := takerFeeLessMakerRebate / 5
	if rebate == 0 {
		return 0
	}

	var applied uint64
	err := accounts.WithAccount(*referrerID, func(acc *account.Account) error {
		before := acc.Balances[quoteToken.Key()]
		acc.Deposit(quoteToken, rebate)
		covered, err := acc.IsStorageCovered(h.StorageByteCost())
		if err != nil {
			return err
		}
		if !covered {
			// Revert the speculative deposit; the rebate could not be
			// paid for storage-wise.
			acc.Balances[quoteToken.Key()] = before
			if before == 0 {
				delete(acc.Balances, quoteToken.Key())
			}
			return nil
		}
		applied = rebate
		return nil
	})
	if err != nil {
		return 0
	}
	return applied
}
