package pipelines

import (
	"testing"

	"github.com/tonicdex/core/internal/xerrors"
	"github.com/tonicdex/core/pkg/account"
	"github.com/tonicdex/core/pkg/orderbook"
	"github.com/tonicdex/core/pkg/types"
)

func TestPlaceMarketOrderBuyPartialFillDiscardsResidue(t *testing.T) {
	m := newTestMarket(t, 100, 0) // 1% taker fee, no maker rebate
	accounts := newTestAccounts(t)
	accounts.Create(alice)
	accounts.Create(bob)
	accounts.WithAccount(alice, func(acc *account.Account) error {
		acc.Deposit(m.Quote.TokenType, 3000)
		return nil
	})

	// bob rests a sell of 50 lots, far more than the taker's budget covers.
	if _, err := m.Book.Place(1, orderbook.NewOrder{
		OwnerID: bob, Side: types.Sell, OrderType: types.Limit,
		LimitPriceLots: 100, HasLimitPrice: true, QtyLots: 50,
	}, m.MatchParams()); err != nil {
		t.Fatalf("seeding resting sell: unexpected error: %v", err)
	}

	h := newTestHost()
	maxSpend := uint64(3000)
	result, err := PlaceMarketOrder(m, testMarketID, accounts, h, 2, alice, types.Buy, NewOrderParams{MaxSpend: &maxSpend})
	if err != nil {
		t.Fatalf("PlaceMarketOrder() unexpected error: %v", err)
	}
	if result.Outcome != types.OutcomePartialFill {
		t.Errorf("Outcome = %v, want PartialFill", result.Outcome)
	}
	if result.TakerFee != 29 {
		t.Errorf("TakerFee = %d, want 29", result.TakerFee)
	}

	aliceAcc, _ := accounts.Get(alice)
	if got := aliceAcc.GetBalance(m.Base.TokenType); got != 29 {
		t.Errorf("alice base balance = %d, want 29", got)
	}
	if got := aliceAcc.GetBalance(m.Quote.TokenType); got != 71 {
		t.Errorf("alice quote balance = %d, want 71 (3000 - 2929 spent)", got)
	}

	bobAcc, _ := accounts.Get(bob)
	if got := bobAcc.GetBalance(m.Quote.TokenType); got != 2900 {
		t.Errorf("bob quote balance = %d, want 2900", got)
	}

	// The unmatched residue of bob's resting order stays on the book: a
	// market order never posts, so nothing further happens to it here.
	resting, ok := m.Book.GetOrder(types.NewOrderID(100, 1))
	if !ok {
		t.Fatal("expected bob's resting order to still exist")
	}
	if resting.OpenQtyLots != 21 {
		t.Errorf("bob's resting order OpenQtyLots = %d, want 21", resting.OpenQtyLots)
	}
}

func TestPlaceMarketOrderSellFullFillCreditsQuoteMinusFee(t *testing.T) {
	m := newTestMarket(t, 100, 0)
	accounts := newTestAccounts(t)
	accounts.Create(alice)
	accounts.Create(bob)
	accounts.WithAccount(bob, func(acc *account.Account) error {
		acc.Deposit(m.Base.TokenType, 50)
		return nil
	})

	if _, err := m.Book.Place(1, orderbook.NewOrder{
		OwnerID: alice, Side: types.Buy, OrderType: types.Limit,
		LimitPriceLots: 100, HasLimitPrice: true, QtyLots: 50,
	}, m.MatchParams()); err != nil {
		t.Fatalf("seeding resting buy: unexpected error: %v", err)
	}

	h := newTestHost()
	result, err := PlaceMarketOrder(m, testMarketID, accounts, h, 2, bob, types.Sell, NewOrderParams{QuantityNative: 50})
	if err != nil {
		t.Fatalf("PlaceMarketOrder() unexpected error: %v", err)
	}
	if result.Outcome != types.OutcomeFilled {
		t.Errorf("Outcome = %v, want Filled", result.Outcome)
	}
	if result.TakerFee != 50 {
		t.Errorf("TakerFee = %d, want 50", result.TakerFee)
	}

	bobAcc, _ := accounts.Get(bob)
	if got := bobAcc.GetBalance(m.Base.TokenType); got != 0 {
		t.Errorf("bob base balance = %d, want 0", got)
	}
	if got := bobAcc.GetBalance(m.Quote.TokenType); got != 4950 {
		t.Errorf("bob quote balance = %d, want 4950", got)
	}

	aliceAcc, _ := accounts.Get(alice)
	if got := aliceAcc.GetBalance(m.Base.TokenType); got != 50 {
		t.Errorf("alice base balance = %d, want 50", got)
	}
}

func TestPlaceMarketOrderBuyZeroMaxSpendRejected(t *testing.T) {
	m := newTestMarket(t, 100, 0)
	accounts := newTestAccounts(t)
	accounts.Create(alice)
	h := newTestHost()

	zero := uint64(0)
	_, err := PlaceMarketOrder(m, testMarketID, accounts, h, 1, alice, types.Buy, NewOrderParams{MaxSpend: &zero})
	if err != xerrors.ErrZeroOrderAmount {
		t.Errorf("PlaceMarketOrder() error = %v, want ErrZeroOrderAmount", err)
	}
}

func TestPlaceMarketOrderSellZeroQuantityRejected(t *testing.T) {
	m := newTestMarket(t, 100, 0)
	accounts := newTestAccounts(t)
	accounts.Create(alice)
	h := newTestHost()

	_, err := PlaceMarketOrder(m, testMarketID, accounts, h, 1, alice, types.Sell, NewOrderParams{QuantityNative: 0})
	if err != xerrors.ErrZeroOrderAmount {
		t.Errorf("PlaceMarketOrder() error = %v, want ErrZeroOrderAmount", err)
	}
}
