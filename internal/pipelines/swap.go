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

// SwapStepResult is the outcome of one leg of a swap chain: the caller
// has no exchange account, so instead of crediting/debiting a user
// record, this returns the output amount and unspent input refund for
// the contract layer to route externally.
type SwapStepResult struct {
	OutputAmount uint64
	InputRefund  uint64
	TakerFee     uint64
	FillEvents   []settlement.FillEventData
}

// SwapStep executes one SwapAction as if it were a market order sized
// by the full input amount, with makers settled normally into their
// real exchange accounts. The caller supplies inputAmount as the full
// budget (buy side) or quantity (sell side); whatever the book could
// not absorb comes back as InputRefund.
func SwapStep(
	m *market.Market,
	marketID types.MarketID,
	accounts *account.Manager,
	h host.Host,
	seq types.SequenceNumber,
	side types.Side,
	inputAmount uint64,
	minOutput *uint64,
	referrerID *types.AccountID,
) (SwapStepResult, error) {
	if err := m.AssertActive(); err != nil {
		return SwapStepResult{}, err
	}
	if inputAmount == 0 {
		return SwapStepResult{}, xerrors.ErrZeroOrderAmount
	}

	var order orderbook.NewOrder
	order.Side = side
	order.OrderType = types.Market

	if side == types.Buy {
		available := m.FeeCalculator.WithholdTakerFee(inputAmount)
		availableQuoteLots := available / m.Quote.LotSize
		if availableQuoteLots == 0 {
			return SwapStepResult{}, xerrors.ErrZeroOrderAmount
		}
		order.QtyLots = unboundedQtyLots
		order.AvailableQuoteLots = &availableQuoteLots
	} else {
		qtyLots := lots.NativeToLots(inputAmount, m.Base.LotSize)
		if qtyLots == 0 {
			return SwapStepResult{}, xerrors.ErrZeroOrderAmount
		}
		order.QtyLots = qtyLots
	}

	placeResult, err := m.Book.Place(seq, order, m.MatchParams())
	if err != nil {
		return SwapStepResult{}, err
	}

	// The swap caller has no AccountID of its own; settlement only
	// needs one for labeling fill events, so use the zero value.
	var takerID types.AccountID
	settleResult, fillEvents, err := settlement.SettleMakerFills(side, marketID, m, placeResult.Matches, accounts, takerID)
	if err != nil {
		return SwapStepResult{}, err
	}

	takerFee := m.FeeCalculator.TakerFee(settleResult.QuoteTraded)
	referrerRebate := settlement.SettleReferrerRebate(accounts, h, m.Quote.TokenType, referrerID, takerFee-settleResult.TotalMakerRebate)
	netAccrued := takerFee - settleResult.TotalMakerRebate - referrerRebate
	m.IncrFeesAccrued(netAccrued)

	var output, refund uint64
	if side == types.Buy {
		output = settleResult.BaseTraded
		spent := settleResult.QuoteTraded + takerFee
		if spent > inputAmount {
			return SwapStepResult{}, xerrors.ErrOverspentViolation
		}
		refund = inputAmount - spent
	} else {
		output = settleResult.QuoteTraded - takerFee
		if settleResult.BaseTraded > inputAmount {
			return SwapStepResult{}, xerrors.ErrOverspentViolation
		}
		refund = inputAmount - settleResult.BaseTraded
	}

	if minOutput != nil && output < *minOutput {
		return SwapStepResult{}, xerrors.ErrExceededSlippage
	}

	return SwapStepResult{OutputAmount: output, InputRefund: refund, TakerFee: takerFee, FillEvents: fillEvents}, nil
}

// RunSwapChain executes a sequence of swap legs back to back, feeding
// each step's output into the next step's input, and reports the
// final output together with the first step's unspent input refund.
// A min-output violation on any leg aborts the whole chain: the caller
// is expected to have staged nothing irreversible before this runs.
func RunSwapChain(steps []SwapChainStep) (SwapChainResult, error) {
	if len(steps) == 0 {
		return SwapChainResult{}, xerrors.ErrInvalidAction
	}

	result, err := SwapStep(steps[0].Market, steps[0].MarketID, steps[0].Accounts, steps[0].Host, steps[0].Seq, steps[0].Side, steps[0].InputAmount, steps[0].MinOutput, steps[0].ReferrerID)
	if err != nil {
		return SwapChainResult{}, err
	}
	chainResult := SwapChainResult{InputRefund: result.InputRefund, TotalTakerFee: result.TakerFee}
	chainResult.FillEvents = append(chainResult.FillEvents, result.FillEvents...)
	output := result.OutputAmount

	for _, step := range steps[1:] {
		stepResult, err := SwapStep(step.Market, step.MarketID, step.Accounts, step.Host, step.Seq, step.Side, output, step.MinOutput, step.ReferrerID)
		if err != nil {
			return SwapChainResult{}, err
		}
		chainResult.FillEvents = append(chainResult.FillEvents, stepResult.FillEvents...)
		chainResult.TotalTakerFee += stepResult.TakerFee
		output = stepResult.OutputAmount
		// Intermediate refunds within a chain are not returned to the
		// caller between legs; only the first leg's unspent input and
		// the final leg's output are user-visible.
	}

	chainResult.OutputAmount = output
	return chainResult, nil
}

// SwapChainStep is one leg of a multi-market swap route.
type SwapChainStep struct {
	Market     *market.Market
	MarketID   types.MarketID
	Accounts   *account.Manager
	Host       host.Host
	Seq        types.SequenceNumber
	Side       types.Side
	InputAmount uint64
	MinOutput  *uint64
	ReferrerID *types.AccountID
}

// SwapChainResult is the net outcome of a full swap route.
type SwapChainResult struct {
	OutputAmount  uint64
	InputRefund   uint64
	TotalTakerFee uint64
	FillEvents    []settlement.FillEventData
}
