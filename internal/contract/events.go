package contract

import (
	"go.uber.org/zap"

	"github.com/tonicdex/core/internal/pipelines"
	"github.com/tonicdex/core/internal/settlement"
	"github.com/tonicdex/core/pkg/types"
)

// NewMarketEvent is emitted once when create_market succeeds.
type NewMarketEvent struct {
	Creator  types.AccountID
	MarketID types.MarketID
	Base     types.TokenType
	Quote    types.TokenType
}

// OrderEvent is emitted for every accepted new_order, whether called
// directly or through an Execute NewOrder action. Swap legs emit no
// OrderEvent (only a FillEvent), so IsSwap is false on every OrderEvent
// the contract emits.
type OrderEvent struct {
	Account        types.AccountID
	Market         types.MarketID
	OrderID        types.OrderID
	LimitPrice     *uint64
	Quantity       uint64
	Side           types.Side
	OrderType      types.OrderType
	TakerFee       uint64
	Referrer       *types.AccountID
	ReferrerRebate uint64
	IsSwap         bool
	ClientID       *uint32
	BestBid        *uint64
	BestAsk        *uint64
	OpenQuantity   *uint64
}

// FillEvent wraps one order's fills for emission. For a swap chain it
// carries the fills of every leg together, with Market set to the last
// leg's market and OrderID left zero.
type FillEvent struct {
	Market  types.MarketID
	OrderID types.OrderID
	Fills   []settlement.FillEventData
}

// CancelEvent wraps one or more cancellations for emission.
type CancelEvent struct {
	Market types.MarketID
	Events []pipelines.CancelEventData
}

// Sink receives every event the contract emits. The view server's
// WebSocket hub implements this to fan events out to subscribers;
// tests can supply a recording stub.
type Sink interface {
	NewMarket(NewMarketEvent)
	Order(OrderEvent)
	Fill(FillEvent)
	Cancel(CancelEvent)
}

// zapSink logs every event at info level and optionally forwards it to
// a downstream Sink (typically the API server's WebSocket hub). Event
// delivery to subscribers is best-effort; logging is not.
type zapSink struct {
	logger *zap.Logger
	next   Sink
}

// NewZapSink builds a Sink that logs structurally via zap, adapted
// from the teacher's logging idiom, and forwards to next if non-nil.
func NewZapSink(logger *zap.Logger, next Sink) Sink {
	return &zapSink{logger: logger, next: next}
}

func (s *zapSink) NewMarket(ev NewMarketEvent) {
	s.logger.Info("new_market",
		zap.String("market_id", ev.MarketID.String()),
		zap.String("creator", ev.Creator.Hex()),
		zap.String("base", ev.Base.Key()),
		zap.String("quote", ev.Quote.Key()),
	)
	if s.next != nil {
		s.next.NewMarket(ev)
	}
}

func (s *zapSink) Order(ev OrderEvent) {
	s.logger.Info("order",
		zap.String("market_id", ev.Market.String()),
		zap.String("order_id", ev.OrderID.String()),
		zap.String("account", ev.Account.Hex()),
		zap.String("side", ev.Side.String()),
		zap.String("type", ev.OrderType.String()),
		zap.Uint64("taker_fee", ev.TakerFee),
		zap.Bool("is_swap", ev.IsSwap),
	)
	if s.next != nil {
		s.next.Order(ev)
	}
}

func (s *zapSink) Fill(ev FillEvent) {
	s.logger.Info("fill",
		zap.String("market_id", ev.Market.String()),
		zap.String("order_id", ev.OrderID.String()),
		zap.Int("num_fills", len(ev.Fills)),
	)
	if s.next != nil {
		s.next.Fill(ev)
	}
}

func (s *zapSink) Cancel(ev CancelEvent) {
	s.logger.Info("cancel",
		zap.String("market_id", ev.Market.String()),
		zap.Int("num_cancelled", len(ev.Events)),
	)
	if s.next != nil {
		s.next.Cancel(ev)
	}
}

// NopSink discards everything; useful where only logging matters and no
// Sink has been wired yet.
type NopSink struct{}

func (NopSink) NewMarket(NewMarketEvent) {}
func (NopSink) Order(OrderEvent)         {}
func (NopSink) Fill(FillEvent)           {}
func (NopSink) Cancel(CancelEvent)       {}
