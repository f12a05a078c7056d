// Package fees implements the deterministic taker-fee, maker-rebate,
// and referrer-rebate math, all expressed in basis points of the quote
// notional of a trade.
package fees

// BpsDivisor is the basis-point divisor; a rate of 20 means 20/10000 = 0.2%.
const BpsDivisor = 10_000

// Calculator holds a market's two configured rates, in bps.
type Calculator struct {
	TakerFeeBps  uint16
	MakerRebateBps uint16
}

// TakerFee returns floor(quote * taker_rate / 10000).
func (c Calculator) TakerFee(quote uint64) uint64 {
	return quote * uint64(c.TakerFeeBps) / BpsDivisor
}

// MakerRebate returns floor(quote * maker_rate / 10000).
func (c Calculator) MakerRebate(quote uint64) uint64 {
	return quote * uint64(c.MakerRebateBps) / BpsDivisor
}

// WithholdTakerFee returns quote minus the taker fee on quote.
func (c Calculator) WithholdTakerFee(quote uint64) uint64 {
	return quote - c.TakerFee(quote)
}

// ReferrerRebate is a fixed 20% of the taker fee remaining after maker
// rebates are subtracted, independent of any per-market rate.
func ReferrerRebate(takerFeeLessMakerRebate uint64) uint64 {
	return takerFeeLessMakerRebate / 5
}

// Valid reports the configuration invariant: the maker rebate must be
// strictly less than the taker fee, unless both are zero.
func (c Calculator) Valid() bool {
	if c.MakerRebateBps == 0 && c.TakerFeeBps == 0 {
		return true
	}
	return c.MakerRebateBps < c.TakerFeeBps
}
