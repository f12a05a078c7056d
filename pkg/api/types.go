package api

// API response/request types for REST endpoints and WebSocket messages.

// MarketSummary is a market's configuration plus its current state and
// accrued fees, for the markets list and single-market views.
type MarketSummary struct {
	MarketID            string `json:"marketId"`
	BaseToken           string `json:"baseToken"`
	QuoteToken          string `json:"quoteToken"`
	BaseLotSize         uint64 `json:"baseLotSize"`
	QuoteLotSize        uint64 `json:"quoteLotSize"`
	State               string `json:"state"`
	TakerFeeBps         uint16 `json:"takerFeeBps"`
	MakerRebateBps      uint16 `json:"makerRebateBps"`
	MinimumBidBps       uint32 `json:"minimumBidBps"`
	MaximumAskBps       uint32 `json:"maximumAskBps"`
	MaxOrdersPerAccount uint8  `json:"maxOrdersPerAccount"`
	FeesAccrued         uint64 `json:"feesAccrued"`
}

// OrderbookSnapshot is a depth-limited view of one market's book.
type OrderbookSnapshot struct {
	MarketID  string       `json:"marketId"`
	Bids      []PriceLevel `json:"bids"` // best first
	Asks      []PriceLevel `json:"asks"` // best first
	Timestamp int64        `json:"timestamp"`
}

// PriceLevel is an aggregated [price, size] pair, in lots.
type PriceLevel struct {
	PriceLots uint64 `json:"priceLots"`
	QtyLots   uint64 `json:"qtyLots"`
}

// OpenOrderInfo describes one resting order owned by an account.
type OpenOrderInfo struct {
	OrderID     string `json:"orderId"`
	PriceLots   uint64 `json:"priceLots"`
	OpenQtyLots uint64 `json:"openQtyLots"`
	Side        string `json:"side"`
}

// BalancesResponse is the per-token native balance map for an account.
type BalancesResponse struct {
	AccountID string            `json:"accountId"`
	Balances  map[string]uint64 `json:"balances"`
}

// ==============================
// WebSocket message types
// ==============================

// WSMessage is the base structure for all WebSocket push messages.
type WSMessage struct {
	Type string      `json:"type"` // "fill", "order", "cancel", "new_market"
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is sent by a client to (un)subscribe to channels,
// e.g. "markets", "orders:<marketId>", "fills:<marketId>",
// "cancels:<marketId>".
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// ==============================
// REST request/response types
// ==============================

// NewOrderRequest is the payload for POST /api/v1/orders. The caller
// account is supplied out of band (by the host's predecessor-account
// authentication in production; by a header in this standalone server).
type NewOrderRequest struct {
	Market         string  `json:"market"`
	Side           string  `json:"side"`      // "buy" | "sell"
	OrderType      string  `json:"orderType"` // "limit" | "market" | "fok" | "ioc" | "post_only"
	LimitPriceLots *uint64 `json:"limitPriceLots,omitempty"`
	MaxSpend       *uint64 `json:"maxSpend,omitempty"`
	QuantityNative uint64  `json:"quantityNative"`
	ClientID       *uint32 `json:"clientId,omitempty"`
	ReferrerID     *string `json:"referrerId,omitempty"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel.
type CancelOrderRequest struct {
	Market  string `json:"market"`
	OrderID string `json:"orderId"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error string `json:"error"`
}
