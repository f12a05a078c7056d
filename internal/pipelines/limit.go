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

// PlaceLimitBuy computes the quote budget, runs the match, settles
// makers, applies taker fees, and debits/credits the taker's account
// in one consolidated write.
func PlaceLimitBuy(
	m *market.Market,
	marketID types.MarketID,
	accounts *account.Manager,
	h host.Host,
	seq types.SequenceNumber,
	takerID types.AccountID,
	orderType types.OrderType,
	params NewOrderParams,
) (PlaceOrderResult, error) {
	if err := m.AssertActive(); err != nil {
		return PlaceOrderResult{}, err
	}
	if params.LimitPriceLots == nil {
		return PlaceOrderResult{}, xerrors.ErrMissingLimitPrice
	}
	priceLots := *params.LimitPriceLots
	if err := m.CheckTradingWindow(types.Buy, priceLots); err != nil {
		return PlaceOrderResult{}, err
	}

	baseDenom := m.Base.Denomination()

	var maxQuoteDebit uint64
	if params.MaxSpend != nil {
		maxQuoteDebit = *params.MaxSpend
	} else {
		requestedQtyLots := lots.NativeToLots(params.QuantityNative, m.Base.LotSize)
		var ok bool
		maxQuoteDebit, ok = lots.QuoteNativeForFillCeil(requestedQtyLots, m.Base.LotSize, priceLots, m.Quote.LotSize, baseDenom)
		if !ok {
			return PlaceOrderResult{}, lots.ErrOverflow
		}
	}

	availableQuote := m.FeeCalculator.WithholdTakerFee(maxQuoteDebit)
	availableQuoteLots := availableQuote / m.Quote.LotSize
	if availableQuoteLots == 0 {
		return PlaceOrderResult{}, xerrors.ErrZeroOrderAmount
	}

	requestedQtyLots := lots.NativeToLots(params.QuantityNative, m.Base.LotSize)
	budgetQtyLots, ok := lots.MaxFillLotsForQuoteBudget(availableQuoteLots, priceLots, m.Base.LotSize, m.Quote.LotSize, baseDenom)
	if !ok {
		return PlaceOrderResult{}, lots.ErrOverflow
	}
	quantityLots := requestedQtyLots
	if budgetQtyLots < quantityLots {
		quantityLots = budgetQtyLots
	}
	if quantityLots == 0 {
		return PlaceOrderResult{}, xerrors.ErrZeroOrderAmount
	}

	placeResult, err := m.Book.Place(seq, orderbook.NewOrder{
		OwnerID:            takerID,
		Side:               types.Buy,
		OrderType:          orderType,
		LimitPriceLots:     priceLots,
		HasLimitPrice:      true,
		QtyLots:            quantityLots,
		AvailableQuoteLots: &availableQuoteLots,
		ClientID:           params.ClientID,
	}, m.MatchParams())
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if placeResult.Outcome == types.OutcomeRejected {
		return PlaceOrderResult{ID: placeResult.ID, Outcome: placeResult.Outcome}, nil
	}

	settleResult, fillEvents, err := settlement.SettleMakerFills(types.Buy, marketID, m, placeResult.Matches, accounts, takerID)
	if err != nil {
		return PlaceOrderResult{}, err
	}

	takerFee := m.FeeCalculator.TakerFee(settleResult.QuoteTraded)
	if takerFee < settleResult.TotalMakerRebate {
		return PlaceOrderResult{}, xerrors.ErrFeeAccountingViolation
	}
	referrerRebate := settlement.SettleReferrerRebate(accounts, h, m.Quote.TokenType, params.ReferrerID, takerFee-settleResult.TotalMakerRebate)
	if takerFee < settleResult.TotalMakerRebate+referrerRebate {
		return PlaceOrderResult{}, xerrors.ErrFeeAccountingViolation
	}
	netAccrued := takerFee - settleResult.TotalMakerRebate - referrerRebate
	m.IncrFeesAccrued(netAccrued)

	var quoteLocked uint64
	posted := placeResult.OpenQtyLots > 0 && placeResult.Outcome == types.OutcomePosted
	if posted {
		quoteLocked, ok = lots.QuoteNativeForFill(placeResult.OpenQtyLots, m.Base.LotSize, priceLots, m.Quote.LotSize, baseDenom)
		if !ok {
			return PlaceOrderResult{}, lots.ErrOverflow
		}
	}

	totalQuoteDebit := settleResult.QuoteTraded + takerFee + quoteLocked
	if totalQuoteDebit > maxQuoteDebit {
		return PlaceOrderResult{}, xerrors.ErrOverspentViolation
	}

	err = accounts.WithAccount(takerID, func(acc *account.Account) error {
		acc.Deposit(m.Base.TokenType, settleResult.BaseTraded)
		if err := acc.Withdraw(m.Quote.TokenType, totalQuoteDebit); err != nil {
			return err
		}
		if posted {
			return acc.SaveOrderInfo(marketID, placeResult.ID, placeResult.OpenQtyLots, int(m.MaxOrdersPerAccount), h.BlockTimestamp())
		}
		return nil
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

// PlaceLimitSell is symmetric to PlaceLimitBuy: no quote budget, the
// taker is credited quote minus the fee and debited base traded plus
// whatever remains locked in a posted residue.
func PlaceLimitSell(
	m *market.Market,
	marketID types.MarketID,
	accounts *account.Manager,
	h host.Host,
	seq types.SequenceNumber,
	takerID types.AccountID,
	orderType types.OrderType,
	params NewOrderParams,
) (PlaceOrderResult, error) {
	if err := m.AssertActive(); err != nil {
		return PlaceOrderResult{}, err
	}
	if params.LimitPriceLots == nil {
		return PlaceOrderResult{}, xerrors.ErrMissingLimitPrice
	}
	priceLots := *params.LimitPriceLots
	if err := m.CheckTradingWindow(types.Sell, priceLots); err != nil {
		return PlaceOrderResult{}, err
	}

	maxBaseDebit := params.QuantityNative
	quantityLots := lots.NativeToLots(params.QuantityNative, m.Base.LotSize)
	if quantityLots == 0 {
		return PlaceOrderResult{}, xerrors.ErrZeroOrderAmount
	}

	placeResult, err := m.Book.Place(seq, orderbook.NewOrder{
		OwnerID:        takerID,
		Side:           types.Sell,
		OrderType:      orderType,
		LimitPriceLots: priceLots,
		HasLimitPrice:  true,
		QtyLots:        quantityLots,
		ClientID:       params.ClientID,
	}, m.MatchParams())
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if placeResult.Outcome == types.OutcomeRejected {
		return PlaceOrderResult{ID: placeResult.ID, Outcome: placeResult.Outcome}, nil
	}

	settleResult, fillEvents, err := settlement.SettleMakerFills(types.Sell, marketID, m, placeResult.Matches, accounts, takerID)
	if err != nil {
		return PlaceOrderResult{}, err
	}

	takerFee := m.FeeCalculator.TakerFee(settleResult.QuoteTraded)
	if takerFee < settleResult.TotalMakerRebate {
		return PlaceOrderResult{}, xerrors.ErrFeeAccountingViolation
	}
	referrerRebate := settlement.SettleReferrerRebate(accounts, h, m.Quote.TokenType, params.ReferrerID, takerFee-settleResult.TotalMakerRebate)
	netAccrued := takerFee - settleResult.TotalMakerRebate - referrerRebate
	m.IncrFeesAccrued(netAccrued)

	var baseLocked uint64
	posted := placeResult.OpenQtyLots > 0 && placeResult.Outcome == types.OutcomePosted
	var ok bool
	if posted {
		baseLocked, ok = lots.LotsToNative(placeResult.OpenQtyLots, m.Base.LotSize)
		if !ok {
			return PlaceOrderResult{}, lots.ErrOverflow
		}
	}

	totalBaseDebit := settleResult.BaseTraded + baseLocked
	if totalBaseDebit > maxBaseDebit {
		return PlaceOrderResult{}, xerrors.ErrOverspentViolation
	}

	quoteCredit := settleResult.QuoteTraded - takerFee

	err = accounts.WithAccount(takerID, func(acc *account.Account) error {
		acc.Deposit(m.Quote.TokenType, quoteCredit)
		if err := acc.Withdraw(m.Base.TokenType, totalBaseDebit); err != nil {
			return err
		}
		if posted {
			return acc.SaveOrderInfo(marketID, placeResult.ID, placeResult.OpenQtyLots, int(m.MaxOrdersPerAccount), h.BlockTimestamp())
		}
		return nil
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
