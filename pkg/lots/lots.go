// Package lots implements the lot-arithmetic discipline from the spec:
// conversions between native token amounts and lot counts, and the
// checked 256-bit intermediate math that the order pipelines need to
// size a fill without risking overflow or silent dust loss.
package lots

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrOverflow is returned whenever a computation would not fit back
// into a uint64 after being carried out at U256 precision.
var ErrOverflow = errors.New("lots: arithmetic overflow")

// Denomination returns 10^decimals as a uint64. Decimals is bounded by
// token metadata (never more than ~24 for native currency), so this
// never overflows a uint64 in practice; callers needing more headroom
// should use DenominationU256.
func Denomination(decimals uint8) uint64 {
	d := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < decimals; i++ {
		d.Mul(d, ten)
	}
	return d.Uint64()
}

func DenominationU256(decimals uint8) *uint256.Int {
	d := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < decimals; i++ {
		d.Mul(d, ten)
	}
	return d
}

// NativeToLots converts a native token amount to a lot count, discarding
// any remainder (dust) smaller than one lot size.
func NativeToLots(native uint64, lotSize uint64) uint64 {
	if lotSize == 0 {
		return 0
	}
	return native / lotSize
}

// LotsToNative converts a lot count back to a native amount.
func LotsToNative(lots uint64, lotSize uint64) (uint64, bool) {
	a := uint256.NewInt(lots)
	a.Mul(a, uint256.NewInt(lotSize))
	return checkedUint64(a)
}

// QuoteNativeForFill computes the native quote amount paid for a fill of
// qtyLots base lots at priceLots quote-lots-per-base-denomination:
//
//	native_quote_paid = qty_lots * base_lot * price_lots * quote_lot / base_denom
//
// All intermediate products are carried out in 256-bit arithmetic and
// the final result is checked to fit in a uint64.
func QuoteNativeForFill(qtyLots, baseLot, priceLots, quoteLot, baseDenom uint64) (uint64, bool) {
	if baseDenom == 0 {
		return 0, false
	}
	acc := uint256.NewInt(qtyLots)
	acc.Mul(acc, uint256.NewInt(baseLot))
	acc.Mul(acc, uint256.NewInt(priceLots))
	acc.Mul(acc, uint256.NewInt(quoteLot))
	denom := uint256.NewInt(baseDenom)
	acc.Div(acc, denom)
	return checkedUint64(acc)
}

// QuoteNativeForFillCeil is the same computation as QuoteNativeForFill
// but rounds the division up, used when sizing a maximum debit so that
// the budget is never short by a fraction of a lot.
func QuoteNativeForFillCeil(qtyLots, baseLot, priceLots, quoteLot, baseDenom uint64) (uint64, bool) {
	if baseDenom == 0 {
		return 0, false
	}
	acc := uint256.NewInt(qtyLots)
	acc.Mul(acc, uint256.NewInt(baseLot))
	acc.Mul(acc, uint256.NewInt(priceLots))
	acc.Mul(acc, uint256.NewInt(quoteLot))
	denom := uint256.NewInt(baseDenom)

	quo := new(uint256.Int)
	rem := new(uint256.Int)
	quo.DivMod(acc, denom, rem)
	if !rem.IsZero() {
		quo.AddUint64(quo, 1)
	}
	return checkedUint64(quo)
}

// MaxFillLotsForQuoteBudget computes the largest fill quantity (in base
// lots) affordable with a quote-lot budget B, at priceLots quote-lots
// per base-denomination:
//
//	max_lots = floor(B * base_denom / (price_lots * base_lot * quote_lot))
//
// Expressed directly as the spec gives it — B / (price * base_lot /
// base_denom * quote_lot) — computed without an intermediate float.
func MaxFillLotsForQuoteBudget(budgetQuoteLots, priceLots, baseLot, quoteLot, baseDenom uint64) (uint64, bool) {
	if priceLots == 0 || baseLot == 0 || quoteLot == 0 {
		return 0, false
	}
	// max_lots = floor(B * base_denom / (price_lots * base_lot * quote_lot))
	num := uint256.NewInt(budgetQuoteLots)
	num.Mul(num, uint256.NewInt(baseDenom))

	denom := uint256.NewInt(priceLots)
	denom.Mul(denom, uint256.NewInt(baseLot))
	denom.Mul(denom, uint256.NewInt(quoteLot))
	if denom.IsZero() {
		return 0, false
	}
	num.Div(num, denom)
	return checkedUint64(num)
}

func checkedUint64(v *uint256.Int) (uint64, bool) {
	if !v.IsUint64() {
		return 0, false
	}
	return v.Uint64(), true
}

// ValidLotSize reports whether a lot size satisfies the spec's rule:
// must be 1 or a multiple of 10.
func ValidLotSize(lotSize uint64) bool {
	return lotSize == 1 || (lotSize > 0 && lotSize%10 == 0)
}

// ValidLotDecimalRelation checks base_lot * quote_lot >= 10^base_decimals,
// the condition required so the smallest tradeable quote quantity for
// one base lot is at least one quote lot.
func ValidLotDecimalRelation(baseLot, quoteLot uint64, baseDecimals uint8) bool {
	prod := uint256.NewInt(baseLot)
	prod.Mul(prod, uint256.NewInt(quoteLot))
	return prod.Cmp(DenominationU256(baseDecimals)) >= 0
}
