package contract

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tonicdex/core/internal/custody"
	"github.com/tonicdex/core/internal/host"
	"github.com/tonicdex/core/internal/pipelines"
	"github.com/tonicdex/core/internal/xerrors"
	"github.com/tonicdex/core/pkg/account"
	"github.com/tonicdex/core/pkg/market"
	"github.com/tonicdex/core/pkg/orderbook"
	"github.com/tonicdex/core/pkg/types"
)

var (
	owner = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000BB")
)

// recordingSink captures every event the contract emits so tests can
// assert on them without depending on zap's log output.
type recordingSink struct {
	newMarkets []NewMarketEvent
	orders     []OrderEvent
	fills      []FillEvent
	cancels    []CancelEvent
}

func (s *recordingSink) NewMarket(ev NewMarketEvent) { s.newMarkets = append(s.newMarkets, ev) }
func (s *recordingSink) Order(ev OrderEvent)         { s.orders = append(s.orders, ev) }
func (s *recordingSink) Fill(ev FillEvent)           { s.fills = append(s.fills, ev) }
func (s *recordingSink) Cancel(ev CancelEvent)       { s.cancels = append(s.cancels, ev) }

func newTestContract(t *testing.T) (*Contract, *account.Manager, *recordingSink) {
	t.Helper()
	store, err := account.NewStore(filepath.Join(t.TempDir(), "accounts"))
	if err != nil {
		t.Fatalf("account.NewStore() unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	accounts := account.NewManager(store)
	markets := market.NewRegistry()
	h := host.NewInProcess(0, "exchange.near")
	custodyMgr := custody.New(accounts, custody.NewOutbox(), h)

	c := New(owner, markets, accounts, custodyMgr, h, zap.NewNop())
	sink := &recordingSink{}
	c.SetSink(sink)
	return c, accounts, sink
}

// createActiveMarket registers a market with trivial lot sizes and
// resolves both sides' decimals so it activates immediately.
func createActiveMarket(t *testing.T, c *Contract, takerFeeBps, makerRebateBps uint16) types.MarketID {
	t.Helper()
	id, err := c.CreateMarket(owner, CreateMarketParams{
		BaseToken:              types.FungibleToken("base.near"),
		QuoteToken:             types.FungibleToken("quote.near"),
		BaseTokenLotSize:       1,
		QuoteTokenLotSize:      1,
		TakerFeeBaseRateBps:    takerFeeBps,
		MakerRebateBaseRateBps: makerRebateBps,
	})
	if err != nil {
		t.Fatalf("CreateMarket() unexpected error: %v", err)
	}
	if err := c.SetMarketDecimals(owner, id, types.Base, 0); err != nil {
		t.Fatalf("SetMarketDecimals(Base) unexpected error: %v", err)
	}
	if err := c.SetMarketDecimals(owner, id, types.Quote, 0); err != nil {
		t.Fatalf("SetMarketDecimals(Quote) unexpected error: %v", err)
	}
	m, err := c.GetMarket(id)
	if err != nil {
		t.Fatalf("GetMarket() unexpected error: %v", err)
	}
	if m.State != market.Active {
		t.Fatalf("market state = %v, want Active", m.State)
	}
	return id
}

func TestNewContractOwnerAndState(t *testing.T) {
	c, _, _ := newTestContract(t)
	if got := c.GetOwner(); got != owner {
		t.Errorf("GetOwner() = %v, want %v", got, owner)
	}
	if got := c.GetContractState(); got != types.ContractActive {
		t.Errorf("GetContractState() = %v, want Active", got)
	}
}

func TestSetContractStateRejectsNonOwner(t *testing.T) {
	c, _, _ := newTestContract(t)
	if err := c.SetContractState(alice, types.ContractPaused); err != xerrors.ErrNotOwner {
		t.Errorf("SetContractState() error = %v, want ErrNotOwner", err)
	}
	if got := c.GetContractState(); got != types.ContractActive {
		t.Errorf("GetContractState() = %v, want unchanged Active", got)
	}
}

func TestSetContractStateByOwnerTakesEffect(t *testing.T) {
	c, _, _ := newTestContract(t)
	if err := c.SetContractState(owner, types.ContractPaused); err != nil {
		t.Fatalf("SetContractState() unexpected error: %v", err)
	}
	if got := c.GetContractState(); got != types.ContractPaused {
		t.Errorf("GetContractState() = %v, want Paused", got)
	}
}

func TestCreateMarketNonOwnerRejected(t *testing.T) {
	c, _, _ := newTestContract(t)
	_, err := c.CreateMarket(alice, CreateMarketParams{
		BaseToken:         types.FungibleToken("base.near"),
		QuoteToken:        types.FungibleToken("quote.near"),
		BaseTokenLotSize:  1,
		QuoteTokenLotSize: 1,
	})
	if err != xerrors.ErrNotOwner {
		t.Errorf("CreateMarket() error = %v, want ErrNotOwner", err)
	}
}

func TestCreateMarketActivatesAfterBothDecimalsSetAndEmitsEvent(t *testing.T) {
	c, _, sink := newTestContract(t)
	if got := c.GetNumberOfMarkets(); got != 0 {
		t.Fatalf("GetNumberOfMarkets() before create = %d, want 0", got)
	}

	id := createActiveMarket(t, c, 0, 0)

	if got := c.GetNumberOfMarkets(); got != 1 {
		t.Errorf("GetNumberOfMarkets() = %d, want 1", got)
	}
	listed := c.ListMarkets(0, 10)
	if len(listed) != 1 || listed[0] != id {
		t.Errorf("ListMarkets() = %v, want [%v]", listed, id)
	}
	if len(sink.newMarkets) != 1 {
		t.Fatalf("len(sink.newMarkets) = %d, want 1", len(sink.newMarkets))
	}
	if sink.newMarkets[0].MarketID != id || sink.newMarkets[0].Creator != owner {
		t.Errorf("NewMarketEvent = %+v, unexpected fields", sink.newMarkets[0])
	}
}

func TestAdminDeleteMarketRejectsActiveMarket(t *testing.T) {
	c, _, _ := newTestContract(t)
	id := createActiveMarket(t, c, 0, 0)
	if err := c.AdminDeleteMarket(owner, id); err != xerrors.ErrMarketCannotDelete {
		t.Errorf("AdminDeleteMarket() error = %v, want ErrMarketCannotDelete", err)
	}
}

func TestAdminDeleteMarketSucceedsOncePausedAndEmpty(t *testing.T) {
	c, _, _ := newTestContract(t)
	id := createActiveMarket(t, c, 0, 0)
	if err := c.SetMarketState(owner, id, market.Paused); err != nil {
		t.Fatalf("SetMarketState() unexpected error: %v", err)
	}
	if err := c.AdminDeleteMarket(owner, id); err != nil {
		t.Fatalf("AdminDeleteMarket() unexpected error: %v", err)
	}
	if _, err := c.GetMarket(id); err != market.ErrMarketNotFound {
		t.Errorf("GetMarket() after delete error = %v, want ErrMarketNotFound", err)
	}
}

func TestNewOrderDispatchesLimitBuyAndEmitsOrderEvent(t *testing.T) {
	c, accounts, sink := newTestContract(t)
	id := createActiveMarket(t, c, 100, 20) // 1% taker fee, 0.2% maker rebate
	accounts.Create(alice)
	accounts.Create(bob)
	accounts.WithAccount(alice, func(acc *account.Account) error {
		acc.Deposit(types.FungibleToken("quote.near"), 10000)
		return nil
	})

	m, _ := c.GetMarket(id)
	if _, err := m.Book.Place(1, bobRestingSell(100, 50), m.MatchParams()); err != nil {
		t.Fatalf("seeding resting sell: unexpected error: %v", err)
	}

	priceLots := uint64(100)
	result, err := c.NewOrder(alice, id, types.Buy, types.Limit, pipelines.NewOrderParams{
		LimitPriceLots: &priceLots,
		QuantityNative: 50,
	})
	if err != nil {
		t.Fatalf("NewOrder() unexpected error: %v", err)
	}
	if result.Outcome != types.OutcomeFilled {
		t.Errorf("Outcome = %v, want Filled", result.Outcome)
	}

	if len(sink.orders) != 1 {
		t.Fatalf("len(sink.orders) = %d, want 1", len(sink.orders))
	}
	ev := sink.orders[0]
	if ev.Account != alice || ev.Market != id || ev.Side != types.Buy {
		t.Errorf("OrderEvent = %+v, unexpected fields", ev)
	}
	if ev.TakerFee != result.TakerFee {
		t.Errorf("OrderEvent.TakerFee = %d, want %d", ev.TakerFee, result.TakerFee)
	}
	if len(sink.fills) != 1 || len(sink.fills[0].Fills) == 0 {
		t.Errorf("expected a fill event with at least one fill, got %+v", sink.fills)
	}
}

func TestNewOrderRejectedWhenContractNotActive(t *testing.T) {
	c, accounts, _ := newTestContract(t)
	id := createActiveMarket(t, c, 0, 0)
	accounts.Create(alice)
	if err := c.SetContractState(owner, types.ContractPaused); err != nil {
		t.Fatalf("SetContractState() unexpected error: %v", err)
	}

	priceLots := uint64(100)
	_, err := c.NewOrder(alice, id, types.Buy, types.Limit, pipelines.NewOrderParams{
		LimitPriceLots: &priceLots,
		QuantityNative: 10,
	})
	if err != xerrors.ErrContractMustBeActive {
		t.Errorf("NewOrder() error = %v, want ErrContractMustBeActive", err)
	}
}

func TestCancelOrderRejectsNonOwnerAndEmitsOnSuccess(t *testing.T) {
	c, accounts, sink := newTestContract(t)
	id := createActiveMarket(t, c, 0, 0)
	accounts.Create(alice)

	m, _ := c.GetMarket(id)
	placeResult, err := m.Book.Place(1, aliceRestingBuy(100, 10), m.MatchParams())
	if err != nil {
		t.Fatalf("seeding resting buy: unexpected error: %v", err)
	}
	accounts.WithAccount(alice, func(acc *account.Account) error {
		return acc.SaveOrderInfo(id, placeResult.ID, 10, 20, 0)
	})

	if _, err := c.CancelOrder(bob, id, placeResult.ID); err != xerrors.ErrNotOrderOwner {
		t.Errorf("CancelOrder() error = %v, want ErrNotOrderOwner", err)
	}

	ev, err := c.CancelOrder(alice, id, placeResult.ID)
	if err != nil {
		t.Fatalf("CancelOrder() unexpected error: %v", err)
	}
	if ev.CancelledQty != 10 {
		t.Errorf("CancelledQty = %d, want 10", ev.CancelledQty)
	}
	if len(sink.cancels) != 1 || len(sink.cancels[0].Events) != 1 {
		t.Errorf("expected one cancel event batch with one entry, got %+v", sink.cancels)
	}
}

func TestCancelOrderRejectedWhenMarketPaused(t *testing.T) {
	c, accounts, _ := newTestContract(t)
	id := createActiveMarket(t, c, 0, 0)
	accounts.Create(alice)

	m, _ := c.GetMarket(id)
	placeResult, err := m.Book.Place(1, aliceRestingBuy(100, 10), m.MatchParams())
	if err != nil {
		t.Fatalf("seeding resting buy: unexpected error: %v", err)
	}

	if err := c.SetMarketState(owner, id, market.Paused); err != nil {
		t.Fatalf("SetMarketState() unexpected error: %v", err)
	}
	if _, err := c.CancelOrder(alice, id, placeResult.ID); err != market.ErrMarketCannotCancel {
		t.Errorf("CancelOrder() error = %v, want ErrMarketCannotCancel", err)
	}
}

func TestAdminCancelOrderBypassesOwnership(t *testing.T) {
	c, accounts, sink := newTestContract(t)
	id := createActiveMarket(t, c, 0, 0)
	accounts.Create(alice)

	m, _ := c.GetMarket(id)
	placeResult, err := m.Book.Place(1, aliceRestingBuy(100, 10), m.MatchParams())
	if err != nil {
		t.Fatalf("seeding resting buy: unexpected error: %v", err)
	}

	if _, err := c.AdminCancelOrder(bob, id, placeResult.ID); err != xerrors.ErrNotOwner {
		t.Errorf("AdminCancelOrder() by non-owner error = %v, want ErrNotOwner", err)
	}

	ev, err := c.AdminCancelOrder(owner, id, placeResult.ID)
	if err != nil {
		t.Fatalf("AdminCancelOrder() unexpected error: %v", err)
	}
	if ev.CancelledQty != 10 {
		t.Errorf("CancelledQty = %d, want 10", ev.CancelledQty)
	}
	if len(sink.cancels) != 1 {
		t.Errorf("len(sink.cancels) = %d, want 1", len(sink.cancels))
	}
}

func TestExecuteBatchAbortsOnFirstFailure(t *testing.T) {
	c, accounts, _ := newTestContract(t)
	id := createActiveMarket(t, c, 0, 0)
	accounts.Create(alice)
	accounts.WithAccount(alice, func(acc *account.Account) error {
		acc.Deposit(types.FungibleToken("quote.near"), 1000)
		return nil
	})

	priceLots := uint64(100)
	actions := []Action{
		newOrderAction(t, id, types.Buy, types.Limit, pipelines.NewOrderParams{
			LimitPriceLots: &priceLots,
			QuantityNative: 5,
		}),
		{ActionName: "Swap"},
	}

	results, err := c.Execute(alice, actions)
	if err != xerrors.ErrInvalidAction {
		t.Fatalf("Execute() error = %v, want ErrInvalidAction", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (only the first action applied)", len(results))
	}
}

func TestExecuteUnknownActionRejected(t *testing.T) {
	c, accounts, _ := newTestContract(t)
	accounts.Create(alice)

	_, err := c.Execute(alice, []Action{{ActionName: "DoSomethingElse"}})
	if err != xerrors.ErrInvalidAction {
		t.Errorf("Execute() error = %v, want ErrInvalidAction", err)
	}
}

func TestExecuteNewOrderThenCancelOrders(t *testing.T) {
	c, accounts, _ := newTestContract(t)
	id := createActiveMarket(t, c, 0, 0)
	accounts.Create(alice)
	accounts.WithAccount(alice, func(acc *account.Account) error {
		acc.Deposit(types.FungibleToken("quote.near"), 1000)
		return nil
	})

	priceLots := uint64(100)
	orderAction := newOrderAction(t, id, types.Buy, types.Limit, pipelines.NewOrderParams{
		LimitPriceLots: &priceLots,
		QuantityNative: 5,
	})
	results, err := c.Execute(alice, []Action{orderAction})
	if err != nil {
		t.Fatalf("Execute() unexpected error: %v", err)
	}
	placed, ok := results[0].Result.(pipelines.PlaceOrderResult)
	if !ok {
		t.Fatalf("results[0].Result type = %T, want pipelines.PlaceOrderResult", results[0].Result)
	}

	cancelAction := Action{ActionName: actionCancelOrders, Params: mustMarshal(t, CancelOrdersActionParams{
		Market:   id,
		OrderIDs: []types.OrderID{placed.ID},
	})}
	results, err = c.Execute(alice, []Action{cancelAction})
	if err != nil {
		t.Fatalf("Execute() cancel unexpected error: %v", err)
	}
	events, ok := results[0].Result.([]pipelines.CancelEventData)
	if !ok || len(events) != 1 {
		t.Fatalf("results[0].Result = %+v, want one CancelEventData", results[0].Result)
	}
}

func TestFTOnTransferEmptyMsgDeposits(t *testing.T) {
	c, accounts, _ := newTestContract(t)
	accounts.Create(alice)

	if _, err := c.FTOnTransfer(alice, types.FungibleToken("quote.near"), 500, ""); err != nil {
		t.Fatalf("FTOnTransfer() unexpected error: %v", err)
	}
	aliceAcc, _ := accounts.Get(alice)
	if got := aliceAcc.GetBalance(types.FungibleToken("quote.near")); got != 500 {
		t.Errorf("alice quote balance = %d, want 500", got)
	}
}

func TestFTOnTransferSwapMsgRoutesToSwapChain(t *testing.T) {
	c, accounts, _ := newTestContract(t)
	id := createActiveMarket(t, c, 100, 0) // 1% taker fee
	accounts.Create(alice)
	accounts.Create(bob)

	m, _ := c.GetMarket(id)
	if _, err := m.Book.Place(1, bobRestingSell(100, 50), m.MatchParams()); err != nil {
		t.Fatalf("seeding resting sell: unexpected error: %v", err)
	}

	msg := `{"action":"Swap","params":[{"market":"` + id.String() + `","side":0}]}`
	result, err := c.FTOnTransfer(alice, types.FungibleToken("quote.near"), 3000, msg)
	if err != nil {
		t.Fatalf("FTOnTransfer() unexpected error: %v", err)
	}
	if result.OutputAmount != 29 {
		t.Errorf("OutputAmount = %d, want 29", result.OutputAmount)
	}
	if result.InputRefund != 71 {
		t.Errorf("InputRefund = %d, want 71", result.InputRefund)
	}

	bobAcc, _ := accounts.Get(bob)
	if got := bobAcc.GetBalance(types.FungibleToken("quote.near")); got != 2900 {
		t.Errorf("bob quote balance = %d, want 2900", got)
	}
}

func TestFTOnTransferMalformedMsgRejected(t *testing.T) {
	c, accounts, _ := newTestContract(t)
	accounts.Create(alice)

	if _, err := c.FTOnTransfer(alice, types.FungibleToken("quote.near"), 100, "not json"); err != xerrors.ErrInvalidAction {
		t.Errorf("FTOnTransfer() error = %v, want ErrInvalidAction", err)
	}
}

func TestStorageDepositWithdrawUnregisterRoundTrip(t *testing.T) {
	c, _, _ := newTestContract(t)

	acc, err := c.StorageDeposit(alice, 1_000_000, false)
	if err != nil {
		t.Fatalf("StorageDeposit() unexpected error: %v", err)
	}
	if acc.StorageBalance != 1_000_000 {
		t.Errorf("StorageBalance = %d, want 1000000", acc.StorageBalance)
	}

	withdrawn, _, err := c.StorageWithdraw(alice, nil)
	if err != nil {
		t.Fatalf("StorageWithdraw() unexpected error: %v", err)
	}
	if withdrawn == 0 {
		t.Errorf("StorageWithdraw() withdrew 0, want > 0 of the unlocked balance")
	}

	refund, err := c.StorageUnregister(alice, false)
	if err != nil {
		t.Fatalf("StorageUnregister() unexpected error: %v", err)
	}
	if refund != 1_000_000-withdrawn {
		t.Errorf("StorageUnregister() refund = %d, want %d", refund, 1_000_000-withdrawn)
	}
	if _, err := c.GetBalance(alice, types.Native()); err != account.ErrAccountNotFound {
		t.Errorf("GetBalance() after unregister error = %v, want ErrAccountNotFound", err)
	}
}

func TestDepositAndWithdrawNear(t *testing.T) {
	c, accounts, _ := newTestContract(t)
	accounts.Create(alice)

	if err := c.DepositNear(alice, 500); err != nil {
		t.Fatalf("DepositNear() unexpected error: %v", err)
	}
	bal, err := c.GetBalance(alice, types.Native())
	if err != nil {
		t.Fatalf("GetBalance() unexpected error: %v", err)
	}
	if bal != 500 {
		t.Errorf("balance = %d, want 500", bal)
	}

	transferID, err := c.WithdrawNear(alice, 200)
	if err != nil {
		t.Fatalf("WithdrawNear() unexpected error: %v", err)
	}
	if transferID == 0 {
		t.Error("expected a non-zero transfer id")
	}
	bal, _ = c.GetBalance(alice, types.Native())
	if bal != 300 {
		t.Errorf("balance after withdraw = %d, want 300", bal)
	}

	resolution, err := c.ResolveWithdraw(transferID, false)
	if err != nil {
		t.Fatalf("ResolveWithdraw() unexpected error: %v", err)
	}
	if resolution != custody.Failed {
		t.Errorf("resolution = %v, want Failed", resolution)
	}
	bal, _ = c.GetBalance(alice, types.Native())
	if bal != 500 {
		t.Errorf("balance after failed-withdraw reversal = %d, want 500", bal)
	}
}

func bobRestingSell(priceLots, qtyLots uint64) orderbook.NewOrder {
	return orderbook.NewOrder{
		OwnerID: bob, Side: types.Sell, OrderType: types.Limit,
		LimitPriceLots: priceLots, HasLimitPrice: true, QtyLots: qtyLots,
	}
}

func aliceRestingBuy(priceLots, qtyLots uint64) orderbook.NewOrder {
	return orderbook.NewOrder{
		OwnerID: alice, Side: types.Buy, OrderType: types.Limit,
		LimitPriceLots: priceLots, HasLimitPrice: true, QtyLots: qtyLots,
	}
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() unexpected error: %v", err)
	}
	return raw
}

func newOrderAction(t *testing.T, marketID types.MarketID, side types.Side, orderType types.OrderType, params pipelines.NewOrderParams) Action {
	t.Helper()
	return Action{ActionName: actionNewOrder, Params: mustMarshal(t, NewOrderActionParams{
		Market:         marketID,
		Side:           side,
		OrderType:      orderType,
		LimitPriceLots: params.LimitPriceLots,
		MaxSpend:       params.MaxSpend,
		QuantityNative: params.QuantityNative,
		ClientID:       params.ClientID,
		ReferrerID:     params.ReferrerID,
	}))
}
