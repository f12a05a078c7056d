// Package market owns one orderbook per trading venue: token specs,
// fee rates, trading-window bounds, accrued fees, and the lifecycle
// state machine (Uninitialized -> Active -> Paused/CancelOnly).
package market

import (
	"errors"

	"github.com/tonicdex/core/pkg/fees"
	"github.com/tonicdex/core/pkg/lots"
	"github.com/tonicdex/core/pkg/orderbook"
	"github.com/tonicdex/core/pkg/types"
)

// InvalidDecimals is the sentinel used before a foreign token's decimals
// callback has resolved.
const InvalidDecimals uint8 = 100

const (
	DefaultMaxOrdersPerAccount = 20
	DefaultMinimumBidBps       = 1_000   // 10%
	DefaultMaximumAskBps       = 300_000 // 3000%
)

var (
	ErrMarketMustBeActive   = errors.New("market: must be active")
	ErrMarketCannotCancel   = errors.New("market: cannot cancel in current state")
	ErrMarketCannotDelete   = errors.New("market: cannot delete non-empty or active market")
	ErrInvalidLotSize       = errors.New("market: invalid lot size")
	ErrInvalidLotDecimals   = errors.New("market: lot/decimal relation invalid")
	ErrSameToken            = errors.New("market: base and quote token must differ")
	ErrInvalidFeeRates      = errors.New("market: maker rebate must be less than taker fee")
	ErrBidOutsideWindow     = errors.New("market: bid outside trading window")
	ErrAskOutsideWindow     = errors.New("market: ask outside trading window")
)

// State is the per-market lifecycle state.
type State uint8

const (
	Uninitialized State = iota
	Active
	Paused
	CancelOnly
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Active:
		return "Active"
	case Paused:
		return "Paused"
	case CancelOnly:
		return "CancelOnly"
	default:
		return "Unknown"
	}
}

// Token is one side (base or quote) of a market.
type Token struct {
	TokenType types.TokenType
	LotSize   uint64
	Decimals  uint8 // InvalidDecimals until resolved
}

func (t Token) DecimalsKnown() bool { return t.Decimals != InvalidDecimals }

func (t Token) Denomination() uint64 { return lots.Denomination(t.Decimals) }

// Market is one trading venue: a base/quote token pair with its own
// orderbook, fee configuration, and lifecycle state.
type Market struct {
	// id is transient: set by the store after loading, never persisted,
	// because the cyclic Market<->MarketId reference would otherwise
	// have to be stored redundantly inside the orderbook.
	id    types.MarketID
	idSet bool

	Base  Token
	Quote Token

	State State

	Book *orderbook.OrderBook

	FeeCalculator fees.Calculator

	MaxOrdersPerAccount uint8
	MinimumBidBps       uint32
	MaximumAskBps       uint32

	FeesAccrued uint64 // in quote native units
}

// New constructs a market in the Uninitialized state. It becomes Active
// once SetDecimals has supplied both sides' decimals and the lot/decimal
// relation holds.
func New(base, quote Token, takerFeeBps, makerRebateBps uint16) (*Market, error) {
	if !lots.ValidLotSize(base.LotSize) || !lots.ValidLotSize(quote.LotSize) {
		return nil, ErrInvalidLotSize
	}
	if base.TokenType.Equal(quote.TokenType) {
		return nil, ErrSameToken
	}
	calc := fees.Calculator{TakerFeeBps: takerFeeBps, MakerRebateBps: makerRebateBps}
	if !calc.Valid() {
		return nil, ErrInvalidFeeRates
	}
	m := &Market{
		Base:                base,
		Quote:               quote,
		State:               Uninitialized,
		Book:                orderbook.New(),
		FeeCalculator:       calc,
		MaxOrdersPerAccount: DefaultMaxOrdersPerAccount,
		MinimumBidBps:       DefaultMinimumBidBps,
		MaximumAskBps:       DefaultMaximumAskBps,
	}
	m.maybeActivate()
	return m, nil
}

// SetID sets the transient market id after a load from storage. It is
// a no-op once already set, since the id never changes for a market's
// lifetime.
func (m *Market) SetID(id types.MarketID) {
	if !m.idSet {
		m.id = id
		m.idSet = true
	}
}

func (m *Market) ID() (types.MarketID, bool) { return m.id, m.idSet }

// SetDecimals resolves one side's decimals (e.g. from the external
// metadata callback) and activates the market if both sides are now
// known and the lot/decimal relation holds.
func (m *Market) SetDecimals(side types.PairSide, decimals uint8) error {
	if side == types.Base {
		m.Base.Decimals = decimals
	} else {
		m.Quote.Decimals = decimals
	}
	return m.maybeActivate()
}

func (m *Market) maybeActivate() error {
	if m.State != Uninitialized {
		return nil
	}
	if !m.Base.DecimalsKnown() || !m.Quote.DecimalsKnown() {
		return nil
	}
	if !lots.ValidLotDecimalRelation(m.Base.LotSize, m.Quote.LotSize, m.Base.Decimals) {
		return ErrInvalidLotDecimals
	}
	m.State = Active
	return nil
}

func (m *Market) AssertActive() error {
	if m.State != Active {
		return ErrMarketMustBeActive
	}
	return nil
}

func (m *Market) AssertCanCancel() error {
	if m.State != Active && m.State != CancelOnly {
		return ErrMarketCannotCancel
	}
	return nil
}

// Deletable mirrors the spec: only Uninitialized or Paused-with-an-
// empty-book markets may be deleted.
func (m *Market) Deletable() bool {
	if m.State == Uninitialized {
		return true
	}
	if m.State != Paused {
		return false
	}
	_, hasBid := m.Book.BestBid()
	_, hasAsk := m.Book.BestAsk()
	return !hasBid && !hasAsk
}

func (m *Market) SetState(s State) { m.State = s }

// CheckTradingWindow enforces the fat-finger guard: a new bid must
// price at or above minimum_bid_bps of the current best bid; a new ask
// must price at or below maximum_ask_bps of the current best ask. When
// the book has no best price on the order's own side, the window does
// not apply.
func (m *Market) CheckTradingWindow(side types.Side, priceLots uint64) error {
	if side == types.Buy {
		best, ok := m.Book.BestBid()
		if !ok || best == 0 {
			return nil
		}
		if priceLots*fees.BpsDivisor/best < uint64(m.MinimumBidBps) {
			return ErrBidOutsideWindow
		}
		return nil
	}
	best, ok := m.Book.BestAsk()
	if !ok || best == 0 {
		return nil
	}
	if priceLots*fees.BpsDivisor/best > uint64(m.MaximumAskBps) {
		return ErrAskOutsideWindow
	}
	return nil
}

func (m *Market) MatchParams() orderbookMatchParams {
	return orderbookMatchParams{
		BaseLot:   m.Base.LotSize,
		QuoteLot:  m.Quote.LotSize,
		BaseDenom: m.Base.Denomination(),
	}
}

// orderbookMatchParams is a thin local alias to avoid importing the
// orderbook package's exported struct name into every call site.
type orderbookMatchParams = orderbook.MatchParams

func (m *Market) IncrFeesAccrued(amount uint64) { m.FeesAccrued += amount }
