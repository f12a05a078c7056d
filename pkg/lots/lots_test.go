package lots

import "testing"

func TestDenomination(t *testing.T) {
	tests := []struct {
		decimals uint8
		want     uint64
	}{
		{0, 1},
		{6, 1_000_000},
		{24, 1_000_000_000_000_000_000_000_000},
	}
	for _, tt := range tests {
		if got := Denomination(tt.decimals); got != tt.want {
			t.Errorf("Denomination(%d) = %d, want %d", tt.decimals, got, tt.want)
		}
	}
}

func TestNativeToLots(t *testing.T) {
	if got := NativeToLots(1050, 100); got != 10 {
		t.Errorf("NativeToLots(1050, 100) = %d, want 10 (dust discarded)", got)
	}
	if got := NativeToLots(100, 0); got != 0 {
		t.Errorf("NativeToLots with zero lot size = %d, want 0", got)
	}
}

func TestLotsToNative(t *testing.T) {
	got, ok := LotsToNative(10, 100)
	if !ok || got != 1000 {
		t.Errorf("LotsToNative(10, 100) = (%d, %v), want (1000, true)", got, ok)
	}

	_, ok = LotsToNative(^uint64(0), ^uint64(0))
	if ok {
		t.Error("expected overflow for max lots * max lot size")
	}
}

func TestQuoteNativeForFill(t *testing.T) {
	// 10 base lots at 100 price-lots, base_lot=1000, quote_lot=1, base_denom=1000
	// => 10 * 1000 * 100 * 1 / 1000 = 1000
	got, ok := QuoteNativeForFill(10, 1000, 100, 1, 1000)
	if !ok || got != 1000 {
		t.Errorf("QuoteNativeForFill(...) = (%d, %v), want (1000, true)", got, ok)
	}

	if _, ok := QuoteNativeForFill(1, 1, 1, 1, 0); ok {
		t.Error("expected failure for zero base denomination")
	}
}

func TestQuoteNativeForFillCeilRoundsUp(t *testing.T) {
	// Choose inputs whose division leaves a nonzero remainder.
	floor, ok := QuoteNativeForFill(3, 7, 5, 2, 100)
	if !ok {
		t.Fatal("QuoteNativeForFill failed")
	}
	ceil, ok := QuoteNativeForFillCeil(3, 7, 5, 2, 100)
	if !ok {
		t.Fatal("QuoteNativeForFillCeil failed")
	}
	if ceil < floor {
		t.Errorf("ceil result %d should never be less than floor result %d", ceil, floor)
	}
}

func TestMaxFillLotsForQuoteBudget(t *testing.T) {
	// budget=1000 quote lots, price=100, base_lot=1, quote_lot=1, base_denom=1
	// max_lots = floor(1000 * 1 / (100 * 1 * 1)) = 10
	got, ok := MaxFillLotsForQuoteBudget(1000, 100, 1, 1, 1)
	if !ok || got != 10 {
		t.Errorf("MaxFillLotsForQuoteBudget(...) = (%d, %v), want (10, true)", got, ok)
	}

	if _, ok := MaxFillLotsForQuoteBudget(1000, 0, 1, 1, 1); ok {
		t.Error("expected failure for zero price")
	}
}

func TestValidLotSize(t *testing.T) {
	tests := []struct {
		lotSize uint64
		want    bool
	}{
		{1, true},
		{10, true},
		{100, true},
		{0, false},
		{5, false},
		{11, false},
	}
	for _, tt := range tests {
		if got := ValidLotSize(tt.lotSize); got != tt.want {
			t.Errorf("ValidLotSize(%d) = %v, want %v", tt.lotSize, got, tt.want)
		}
	}
}

func TestValidLotDecimalRelation(t *testing.T) {
	// baseLot * quoteLot must be >= 10^baseDecimals.
	if !ValidLotDecimalRelation(1000, 1000, 6) {
		t.Error("expected 1000*1000 >= 10^6 to hold")
	}
	if ValidLotDecimalRelation(1, 1, 6) {
		t.Error("expected 1*1 >= 10^6 to fail")
	}
}
