package contract

import (
	"encoding/json"

	"github.com/tonicdex/core/internal/xerrors"
	"github.com/tonicdex/core/pkg/types"
)

// Action is the tagged-JSON envelope used both by batch execute and by
// a token-receiver callback's msg payload: {"action": "...", "params": ...}.
type Action struct {
	ActionName string          `json:"action"`
	Params     json.RawMessage `json:"params"`
}

const (
	actionNewOrder        = "NewOrder"
	actionCancelOrders    = "CancelOrders"
	actionCancelAllOrders = "CancelAllOrders"
	actionSwap            = "Swap"
)

// NewOrderActionParams is the payload of a NewOrder action.
type NewOrderActionParams struct {
	Market         types.MarketID  `json:"market"`
	Side           types.Side      `json:"side"`
	OrderType      types.OrderType `json:"order_type"`
	LimitPriceLots *uint64         `json:"limit_price_lots,omitempty"`
	MaxSpend       *uint64         `json:"max_spend,omitempty"`
	QuantityNative uint64          `json:"quantity_native"`
	ClientID       *uint32         `json:"client_id,omitempty"`
	ReferrerID     *types.AccountID `json:"referrer_id,omitempty"`
}

// CancelOrdersActionParams is the payload of a CancelOrders action.
type CancelOrdersActionParams struct {
	Market   types.MarketID  `json:"market"`
	OrderIDs []types.OrderID `json:"order_ids"`
}

// CancelAllOrdersActionParams is the payload of a CancelAllOrders action.
type CancelAllOrdersActionParams struct {
	Market types.MarketID `json:"market"`
}

// SwapActionParams is one leg of a swap chain, matching the original's
// SwapAction.
type SwapActionParams struct {
	Market     types.MarketID   `json:"market"`
	Side       types.Side       `json:"side"`
	MinOutput  *uint64          `json:"min_output,omitempty"`
	ReferrerID *types.AccountID `json:"referrer_id,omitempty"`
}

// ActionResult is the per-action outcome returned from Execute.
type ActionResult struct {
	ActionName string      `json:"action"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func decodeParams(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return xerrors.ErrInvalidAction
	}
	return json.Unmarshal(raw, out)
}
