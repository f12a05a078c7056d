package fees

import "testing"

func TestTakerFee(t *testing.T) {
	c := Calculator{TakerFeeBps: 30} // 0.3%
	if got := c.TakerFee(10_000); got != 30 {
		t.Errorf("TakerFee(10000) = %d, want 30", got)
	}
	if got := c.TakerFee(99); got != 0 {
		t.Errorf("TakerFee(99) = %d, want 0 (floors down)", got)
	}
}

func TestMakerRebate(t *testing.T) {
	c := Calculator{MakerRebateBps: 5} // 0.05%
	if got := c.MakerRebate(20_000); got != 10 {
		t.Errorf("MakerRebate(20000) = %d, want 10", got)
	}
}

func TestWithholdTakerFee(t *testing.T) {
	c := Calculator{TakerFeeBps: 30}
	quote := uint64(10_000)
	got := c.WithholdTakerFee(quote)
	want := quote - c.TakerFee(quote)
	if got != want {
		t.Errorf("WithholdTakerFee(%d) = %d, want %d", quote, got, want)
	}
}

func TestReferrerRebate(t *testing.T) {
	if got := ReferrerRebate(100); got != 20 {
		t.Errorf("ReferrerRebate(100) = %d, want 20 (20%%)", got)
	}
	if got := ReferrerRebate(4); got != 0 {
		t.Errorf("ReferrerRebate(4) = %d, want 0 (floors down)", got)
	}
}

func TestCalculatorValid(t *testing.T) {
	tests := []struct {
		name string
		c    Calculator
		want bool
	}{
		{"both zero", Calculator{0, 0}, true},
		{"rebate below fee", Calculator{TakerFeeBps: 30, MakerRebateBps: 5}, true},
		{"rebate equals fee", Calculator{TakerFeeBps: 30, MakerRebateBps: 30}, false},
		{"rebate exceeds fee", Calculator{TakerFeeBps: 10, MakerRebateBps: 30}, false},
		{"fee zero rebate nonzero", Calculator{TakerFeeBps: 0, MakerRebateBps: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
