// Package pipelines implements the limit-buy, limit-sell, market, and
// swap order pipelines: computing max-debit/max-credit budgets,
// invoking the orderbook match, settling balances, and applying taker
// fees with maker and referrer rebates. Grounded on the original's
// limit_order.rs, restructured in the teacher's
// lock-compute-mutate-result-struct idiom.
package pipelines

import (
	"github.com/tonicdex/core/internal/settlement"
	"github.com/tonicdex/core/pkg/orderbook"
	"github.com/tonicdex/core/pkg/types"
)

// unboundedQtyLots stands in for "no explicit quantity cap", used by
// market orders whose sizing is driven entirely by the quote budget.
// Chosen well under the U256 overflow boundary used throughout pkg/lots.
const unboundedQtyLots = uint64(1) << 62

// NewOrderParams is the pipeline-facing request, mirroring the spec's
// NewOrderParams.
type NewOrderParams struct {
	LimitPriceLots *uint64
	MaxSpend       *uint64 // native quote budget, buy-side only
	QuantityNative uint64  // native base amount requested; caps limit orders and market sells (a limit buy is also capped by MaxSpend when set); market buys ignore it
	ClientID       *uint32
	ReferrerID     *types.AccountID
}

// PlaceOrderResult is the pipeline-facing outcome, mirroring the spec's
// PlaceOrderResultView plus the fee/event bookkeeping the pipeline
// computed along the way.
type PlaceOrderResult struct {
	ID             types.OrderID
	Matches        []orderbook.Match
	OpenQtyLots    uint64
	BestBid        *uint64
	BestAsk        *uint64
	Outcome        types.PlaceOrderOutcome
	TakerFee       uint64
	ReferrerRebate uint64
	FillEvents     []settlement.FillEventData
}

// CancelEventData mirrors the spec's CancelEventData payload.
type CancelEventData struct {
	OrderID      types.OrderID
	RefundAmount uint64
	RefundToken  types.TokenType
	CancelledQty uint64
}
