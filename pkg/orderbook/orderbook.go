// Package orderbook implements the per-market price-level-ordered book
// and its matching algorithm: price-time priority, self-trade
// protection, partial fills, and FOK/IOC/PostOnly/Limit/Market order
// semantics.
package orderbook

import (
	"container/heap"
	"errors"
	"sync"

	"github.com/tonicdex/core/pkg/lots"
	"github.com/tonicdex/core/pkg/types"
)

var (
	ErrSelfTrade    = errors.New("orderbook: self-trade")
	ErrOrderNotFound = errors.New("orderbook: order not found")
	ErrCrossedBook  = errors.New("orderbook: resulting book would cross")
)

// OpenLimitOrder is a resting order in the book.
type OpenLimitOrder struct {
	ID          types.OrderID
	OwnerID     types.AccountID
	OpenQtyLots uint64
	Sequence    types.SequenceNumber
	Side        types.Side
	ClientID    *uint32
	PriceRank   *uint32
}

// NewOrder is an incoming order submitted to Place.
type NewOrder struct {
	OwnerID            types.AccountID
	Side               types.Side
	OrderType          types.OrderType
	LimitPriceLots     uint64 // 0 with HasLimitPrice=false for Market orders
	HasLimitPrice      bool
	QtyLots            uint64
	AvailableQuoteLots *uint64 // budget for a Buy, nil = unlimited
	ClientID           *uint32
}

// Match describes one resting order consumed by an incoming order.
type Match struct {
	MakerOrderID        types.OrderID
	MakerOwnerID        types.AccountID
	FillPriceLots       uint64
	FillQtyLots         uint64
	NativeQuotePaid     uint64
	DidRemoveMakerOrder bool
}

// PlaceOrderResult is the outcome of a call to Place.
type PlaceOrderResult struct {
	ID          types.OrderID
	Matches     []Match
	OpenQtyLots uint64
	PriceRank   *uint32
	BestBid     *uint64
	BestAsk     *uint64
	Outcome     types.PlaceOrderOutcome
}

type indexEntry struct {
	price uint64
	side  types.Side
}

// OrderBook is the matching engine for one market. Lot sizes and
// decimals are supplied per call since they live on the owning Market,
// not duplicated here (see the design note on the Market/Orderbook
// cyclic reference).
type OrderBook struct {
	mu sync.RWMutex

	bidHeap *priceHeap
	askHeap *priceHeap

	bids map[uint64][]*OpenLimitOrder
	asks map[uint64][]*OpenLimitOrder

	bidPresent map[uint64]bool
	askPresent map[uint64]bool

	index map[types.OrderID]indexEntry
}

func New() *OrderBook {
	return &OrderBook{
		bidHeap:    newMaxPriceHeap(),
		askHeap:    newMinPriceHeap(),
		bids:       make(map[uint64][]*OpenLimitOrder),
		asks:       make(map[uint64][]*OpenLimitOrder),
		bidPresent: make(map[uint64]bool),
		askPresent: make(map[uint64]bool),
		index:      make(map[types.OrderID]indexEntry),
	}
}

// MatchParams carries the lot-size/decimals context needed to convert
// between lot counts and native quote amounts during a match.
type MatchParams struct {
	BaseLot   uint64
	QuoteLot  uint64
	BaseDenom uint64
}

func (b *OrderBook) bestBidLocked() (uint64, bool) {
	for b.bidHeap.Len() > 0 {
		top, _ := b.bidHeap.Peek()
		if len(b.bids[top]) > 0 {
			return top, true
		}
		heap.Pop(b.bidHeap)
		delete(b.bidPresent, top)
	}
	return 0, false
}

func (b *OrderBook) bestAskLocked() (uint64, bool) {
	for b.askHeap.Len() > 0 {
		top, _ := b.askHeap.Peek()
		if len(b.asks[top]) > 0 {
			return top, true
		}
		heap.Pop(b.askHeap)
		delete(b.askPresent, top)
	}
	return 0, false
}

// BestBid returns the best bid price in lots, if any.
func (b *OrderBook) BestBid() (uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bestBidLocked()
}

// BestAsk returns the best ask price in lots, if any.
func (b *OrderBook) BestAsk() (uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bestAskLocked()
}

type simFill struct {
	levelPrice  uint64
	makerIdx    int // index within level slice
	maker       *OpenLimitOrder
	fillQty     uint64
	nativeQuote uint64
}

// Place matches an incoming order against the opposite side in
// price-time order and, if eligible, posts the unfilled residue as a
// new resting order. The whole operation is computed as a dry-run
// first so that self-trade, FillOrKill, and PostOnly rejections never
// mutate book state — mirroring the host's "panic discards all writes"
// guarantee without needing an undo log.
func (b *OrderBook) Place(seq types.SequenceNumber, order NewOrder, mp MatchParams) (PlaceOrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	oppLevels := b.oppositeSide(order.Side)

	remainingQty := order.QtyLots
	var remainingBudget *uint64
	if order.AvailableQuoteLots != nil {
		v := *order.AvailableQuoteLots
		remainingBudget = &v
	}

	var fills []simFill

	// local view of remaining qty per maker order touched in this pass
	makerRemaining := make(map[types.OrderID]uint64)

	// The whole pass is a dry run: real book state (and therefore the
	// set of price levels and their maker orders) does not change until
	// applyFillLocked runs below, so the sorted price list taken here
	// stays valid for the entire loop. Walking it directly (instead of
	// re-peeking the live heap each iteration) lets the loop advance past
	// a level once every maker there is virtually exhausted.
	prices := make([]uint64, 0, len(oppLevels))
	for p := range oppLevels {
		prices = append(prices, p)
	}
	sortPrices(prices, order.Side == types.Sell)

priceLoop:
	for _, price := range prices {
		if remainingQty == 0 {
			break
		}
		if remainingBudget != nil && *remainingBudget == 0 {
			break
		}
		if order.HasLimitPrice {
			if order.Side == types.Buy && price > order.LimitPriceLots {
				break
			}
			if order.Side == types.Sell && price < order.LimitPriceLots {
				break
			}
		}

		level := oppLevels[price]
		for i := range level {
			maker := level[i]
			rem, seen := makerRemaining[maker.ID]
			if !seen {
				rem = maker.OpenQtyLots
			}
			if rem == 0 {
				continue
			}
			if remainingQty == 0 {
				break
			}
			fillQty := minU64(rem, remainingQty)
			if order.Side == types.Buy && remainingBudget != nil {
				maxByBudget, ok := lots.MaxFillLotsForQuoteBudget(*remainingBudget, price, mp.BaseLot, mp.QuoteLot, mp.BaseDenom)
				if !ok {
					return PlaceOrderResult{}, lots.ErrOverflow
				}
				if maxByBudget < fillQty {
					fillQty = maxByBudget
				}
			}
			if fillQty == 0 {
				remainingBudget = u64ptr(0)
				break priceLoop
			}
			if maker.OwnerID == order.OwnerID {
				return PlaceOrderResult{}, ErrSelfTrade
			}
			nativeQuote, ok := lots.QuoteNativeForFill(fillQty, mp.BaseLot, price, mp.QuoteLot, mp.BaseDenom)
			if !ok {
				return PlaceOrderResult{}, lots.ErrOverflow
			}
			fills = append(fills, simFill{levelPrice: price, makerIdx: i, maker: maker, fillQty: fillQty, nativeQuote: nativeQuote})
			makerRemaining[maker.ID] = rem - fillQty
			remainingQty -= fillQty
			if remainingBudget != nil {
				*remainingBudget -= nativeQuote
			}
		}
	}

	switch order.OrderType {
	case types.FillOrKill:
		if remainingQty > 0 {
			return PlaceOrderResult{ID: orderID(order, seq), Outcome: types.OutcomeRejected}, nil
		}
	case types.PostOnly:
		if len(fills) > 0 {
			return PlaceOrderResult{ID: orderID(order, seq), Outcome: types.OutcomeRejected}, nil
		}
	}

	// Commit the simulated fills to real book state.
	matches := make([]Match, 0, len(fills))
	for _, f := range fills {
		didRemove := b.applyFillLocked(f.maker, f.fillQty, order.Side.Opposite())
		matches = append(matches, Match{
			MakerOrderID:        f.maker.ID,
			MakerOwnerID:        f.maker.OwnerID,
			FillPriceLots:       f.levelPrice,
			FillQtyLots:         f.fillQty,
			NativeQuotePaid:     f.nativeQuote,
			DidRemoveMakerOrder: didRemove,
		})
	}
	result := PlaceOrderResult{ID: orderID(order, seq), Matches: matches, OpenQtyLots: remainingQty}

	switch order.OrderType {
	case types.Market:
		if remainingQty == 0 {
			result.Outcome = types.OutcomeFilled
		} else {
			result.Outcome = types.OutcomePartialFill
		}
	case types.ImmediateOrCancel:
		if remainingQty == 0 {
			result.Outcome = types.OutcomeFilled
		} else if len(matches) > 0 {
			result.Outcome = types.OutcomePartialFill
		} else {
			result.Outcome = types.OutcomeRejected
		}
	case types.FillOrKill:
		result.Outcome = types.OutcomeFilled
	case types.PostOnly:
		b.insertRestingLocked(order, seq, remainingQty)
		result.Outcome = types.OutcomePosted
	case types.Limit:
		if remainingQty == 0 {
			result.Outcome = types.OutcomeFilled
		} else {
			b.insertRestingLocked(order, seq, remainingQty)
			result.Outcome = types.OutcomePosted
		}
	}

	if bb, ok := b.bestBidLocked(); ok {
		result.BestBid = &bb
	}
	if ba, ok := b.bestAskLocked(); ok {
		result.BestAsk = &ba
	}
	if bb, bok := result.BestBid, result.BestAsk; bb != nil && bok != nil && *bb >= *bok {
		return PlaceOrderResult{}, ErrCrossedBook
	}

	return result, nil
}

func orderID(order NewOrder, seq types.SequenceNumber) types.OrderID {
	price := order.LimitPriceLots
	return types.NewOrderID(price, seq)
}

func u64ptr(v uint64) *uint64 { return &v }

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func (b *OrderBook) oppositeSide(side types.Side) map[uint64][]*OpenLimitOrder {
	if side == types.Buy {
		return b.asks
	}
	return b.bids
}

// applyFillLocked decrements a resting maker order by fillQty and, if it
// is fully consumed, removes it from the book. Returns true if removed.
func (b *OrderBook) applyFillLocked(maker *OpenLimitOrder, fillQty uint64, makerSide types.Side) bool {
	maker.OpenQtyLots -= fillQty
	if maker.OpenQtyLots > 0 {
		return false
	}
	b.removeFromLevelLocked(maker, makerSide)
	delete(b.index, maker.ID)
	return true
}

func (b *OrderBook) removeFromLevelLocked(order *OpenLimitOrder, side types.Side) {
	levels := b.bids
	if side == types.Sell {
		levels = b.asks
	}
	price := order.ID.PriceLots
	level := levels[price]
	for i, o := range level {
		if o.ID == order.ID {
			levels[price] = append(level[:i], level[i+1:]...)
			break
		}
	}
	if len(levels[price]) == 0 {
		delete(levels, price)
	}
}

func (b *OrderBook) insertRestingLocked(order NewOrder, seq types.SequenceNumber, qty uint64) {
	id := types.NewOrderID(order.LimitPriceLots, seq)
	resting := &OpenLimitOrder{
		ID:          id,
		OwnerID:     order.OwnerID,
		OpenQtyLots: qty,
		Sequence:    seq,
		Side:        order.Side,
		ClientID:    order.ClientID,
	}
	price := order.LimitPriceLots
	if order.Side == types.Buy {
		b.bids[price] = append(b.bids[price], resting)
		if !b.bidPresent[price] {
			heap.Push(b.bidHeap, price)
			b.bidPresent[price] = true
		}
	} else {
		b.asks[price] = append(b.asks[price], resting)
		if !b.askPresent[price] {
			heap.Push(b.askHeap, price)
			b.askPresent[price] = true
		}
	}
	b.index[id] = indexEntry{price: price, side: order.Side}
}

// CancelOrder removes a resting order and returns it, or ErrOrderNotFound.
func (b *OrderBook) CancelOrder(id types.OrderID) (*OpenLimitOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.index[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	levels := b.bids
	if entry.side == types.Sell {
		levels = b.asks
	}
	level := levels[entry.price]
	for i, o := range level {
		if o.ID == id {
			levels[entry.price] = append(level[:i], level[i+1:]...)
			if len(levels[entry.price]) == 0 {
				delete(levels, entry.price)
			}
			delete(b.index, id)
			return o, nil
		}
	}
	delete(b.index, id)
	return nil, ErrOrderNotFound
}

// GetOrder looks up a resting order by id without removing it.
func (b *OrderBook) GetOrder(id types.OrderID) (*OpenLimitOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.index[id]
	if !ok {
		return nil, false
	}
	levels := b.bids
	if entry.side == types.Sell {
		levels = b.asks
	}
	for _, o := range levels[entry.price] {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// PriceLevel is an aggregated view of one side's price level, for views
// and order-book depth snapshots.
type PriceLevel struct {
	PriceLots uint64
	QtyLots   uint64
}

// Levels returns up to depth aggregated price levels for a side, best
// price first.
func (b *OrderBook) Levels(side types.Side, depth int) []PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	levels := b.bids
	if side == types.Sell {
		levels = b.asks
	}
	prices := make([]uint64, 0, len(levels))
	for p := range levels {
		prices = append(prices, p)
	}
	sortPrices(prices, side == types.Buy)
	if depth > 0 && len(prices) > depth {
		prices = prices[:depth]
	}
	out := make([]PriceLevel, 0, len(prices))
	for _, p := range prices {
		var qty uint64
		for _, o := range levels[p] {
			qty += o.OpenQtyLots
		}
		out = append(out, PriceLevel{PriceLots: p, QtyLots: qty})
	}
	return out
}

func sortPrices(p []uint64, descending bool) {
	for i := 1; i < len(p); i++ {
		for j := i; j > 0; j-- {
			swap := p[j-1] < p[j]
			if !descending {
				swap = p[j-1] > p[j]
			}
			if swap {
				p[j-1], p[j] = p[j], p[j-1]
			} else {
				break
			}
		}
	}
}

// IterateOwned returns every resting order id belonging to owner, from
// both sides of the book, in no particular order — used for cancel-all
// and for the open-orders view.
func (b *OrderBook) IterateOwned(owner types.AccountID) []types.OrderID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []types.OrderID
	for _, levels := range []map[uint64][]*OpenLimitOrder{b.bids, b.asks} {
		for _, level := range levels {
			for _, o := range level {
				if o.OwnerID == owner {
					out = append(out, o.ID)
				}
			}
		}
	}
	return out
}

// AllOrders returns every resting order currently on the book,
// regardless of owner or side — used by admin_clear_orderbook.
func (b *OrderBook) AllOrders() []*OpenLimitOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*OpenLimitOrder
	for _, levels := range []map[uint64][]*OpenLimitOrder{b.bids, b.asks} {
		for _, level := range levels {
			out = append(out, level...)
		}
	}
	return out
}

// RestoreOrder reinserts a previously resting order straight into its
// price level and the priority index, bypassing matching entirely.
// Used only when reloading a book snapshot from storage, where the
// order was already matched against the book state at the time it was
// written and must not be matched again.
func (b *OrderBook) RestoreOrder(o *OpenLimitOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	price := o.ID.PriceLots
	if o.Side == types.Buy {
		b.bids[price] = append(b.bids[price], o)
		if !b.bidPresent[price] {
			heap.Push(b.bidHeap, price)
			b.bidPresent[price] = true
		}
	} else {
		b.asks[price] = append(b.asks[price], o)
		if !b.askPresent[price] {
			heap.Push(b.askHeap, price)
			b.askPresent[price] = true
		}
	}
	b.index[o.ID] = indexEntry{price: price, side: o.Side}
}
