package orderbook

// priceHeap is a container/heap of price levels ordered by less, which
// decides which of two prices should sit on top. The bid side uses a
// "greater than" comparator (highest price first); the ask side uses
// "less than" (lowest price first) — same structure, opposite
// ordering, so one generic type serves both sides of the book.
type priceHeap struct {
	prices []uint64
	less   func(a, b uint64) bool
}

func newMaxPriceHeap() *priceHeap {
	return &priceHeap{less: func(a, b uint64) bool { return a > b }}
}

func newMinPriceHeap() *priceHeap {
	return &priceHeap{less: func(a, b uint64) bool { return a < b }}
}

func (h *priceHeap) Len() int           { return len(h.prices) }
func (h *priceHeap) Less(i, j int) bool { return h.less(h.prices[i], h.prices[j]) }
func (h *priceHeap) Swap(i, j int)      { h.prices[i], h.prices[j] = h.prices[j], h.prices[i] }

func (h *priceHeap) Push(x interface{}) { h.prices = append(h.prices, x.(uint64)) }

func (h *priceHeap) Pop() interface{} {
	old := h.prices
	n := len(old)
	x := old[n-1]
	h.prices = old[:n-1]
	return x
}

func (h *priceHeap) Peek() (uint64, bool) {
	if len(h.prices) == 0 {
		return 0, false
	}
	return h.prices[0], true
}
