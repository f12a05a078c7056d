package pipelines

import (
	"github.com/tonicdex/core/internal/host"
	"github.com/tonicdex/core/internal/settlement"
	"github.com/tonicdex/core/internal/xerrors"
	"github.com/tonicdex/core/pkg/account"
	"github.com/tonicdex/core/pkg/lots"
	"github.com/tonicdex/core/pkg/market"
	"github.com/tonicdex/core/pkg/orderbook"
	"github.com/tonicdex/core/pkg/types"
)

// PlaceMarketOrder runs a no-limit-price, never-posting order: for a
// buy, sizing is driven entirely by the quote budget (MaxSpend); for a
// sell, by the native base quantity requested. Any residue is
// discarded, not posted, and its unused input is implicitly left in
// the taker's account (nothing was debited for it).
func PlaceMarketOrder(
	m *market.Market,
	marketID types.MarketID,
	accounts *account.Manager,
	h host.Host,
	seq types.SequenceNumber,
	takerID types.AccountID,
	side types.Side,
	params NewOrderParams,
) (PlaceOrderResult, error) {
	if err := m.AssertActive(); err != nil {
		return PlaceOrderResult{}, err
	}

	var qtyLots uint64
	var availableQuoteLots *uint64
	var maxQuoteDebit uint64

	if side == types.Buy {
		maxQuoteDebit = unboundedQtyLots
		if params.MaxSpend != nil {
			maxQuoteDebit = *params.MaxSpend
		}
		available := m.FeeCalculator.WithholdTakerFee(maxQuoteDebit)
		lotsAvail := available / m.Quote.LotSize
		if lotsAvail == 0 {
			return PlaceOrderResult{}, xerrors.ErrZeroOrderAmount
		}
		availableQuoteLots = &lotsAvail
		qtyLots = unboundedQtyLots
	} else {
		qtyLots = lots.NativeToLots(params.QuantityNative, m.Base.LotSize)
		if qtyLots == 0 {
			return PlaceOrderResult{}, xerrors.ErrZeroOrderAmount
		}
	}

	placeResult, err := m.Book.Place(seq, orderbook.NewOrder{
		OwnerID:            takerID,
		Side:               side,
		OrderType:          types.Market,
		HasLimitPrice:      false,
		QtyLots:            qtyLots,
		AvailableQuoteLots: availableQuoteLots,
		ClientID:           params.ClientID,
	}, m.MatchParams())
	if err != nil {
		return PlaceOrderResult{}, err
	}

	settleResult, fillEvents, err := settlement.SettleMakerFills(side, marketID, m, placeResult.Matches, accounts, takerID)
	if err != nil {
		return PlaceOrderResult{}, err
	}

	takerFee := m.FeeCalculator.TakerFee(settleResult.QuoteTraded)
	referrerRebate := settlement.SettleReferrerRebate(accounts, h, m.Quote.TokenType, params.ReferrerID, takerFee-settleResult.TotalMakerRebate)
	netAccrued := takerFee - settleResult.TotalMakerRebate - referrerRebate
	m.IncrFeesAccrued(netAccrued)

	err = accounts.WithAccount(takerID, func(acc *account.Account) error {
		if side == types.Buy {
			acc.Deposit(m.Base.TokenType, settleResult.BaseTraded)
			return acc.Withdraw(m.Quote.TokenType, settleResult.QuoteTraded+takerFee)
		}
		acc.Deposit(m.Quote.TokenType, settleResult.QuoteTraded-takerFee)
		return acc.Withdraw(m.Base.TokenType, settleResult.BaseTraded)
	})
	if err != nil {
		return PlaceOrderResult{}, err
	}

	return PlaceOrderResult{
		ID:             placeResult.ID,
		Matches:        placeResult.Matches,
		OpenQtyLots:    placeResult.OpenQtyLots,
		BestBid:        placeResult.BestBid,
		BestAsk:        placeResult.BestAsk,
		Outcome:        placeResult.Outcome,
		TakerFee:       takerFee,
		ReferrerRebate: referrerRebate,
		FillEvents:     fillEvents,
	}, nil
}
