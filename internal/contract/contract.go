// Package contract is the exchange's single entry point: owner-only
// admin actions, the order/cancel/swap surface, the batch action
// executor, and the read-only views. Grounded on the teacher's
// `pkg/app/core/core.go` "one struct owns everything, one mutex guards
// it" shape, generalized from a single perp engine to a market
// registry plus custody layer.
package contract

import (
	"encoding/json"
	"errors"
	"sync"

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

// Contract is the whole exchange's root state: the market registry,
// the account manager, the custody/outbox layer, and the global
// lifecycle state. Every exported method is guarded by mu, matching
// the host's guarantee that entry points never run concurrently
// against the same state.
type Contract struct {
	mu sync.Mutex

	owner types.AccountID
	state types.ContractState

	markets  *market.Registry
	accounts *account.Manager
	custody  *custody.Manager
	host     host.Host
	sink     Sink

	seq types.SequenceNumber
}

// New constructs a contract owned by owner, in the Active state.
func New(owner types.AccountID, markets *market.Registry, accounts *account.Manager, custodyMgr *custody.Manager, h host.Host, logger *zap.Logger) *Contract {
	return &Contract{
		owner:    owner,
		state:    types.ContractActive,
		markets:  markets,
		accounts: accounts,
		custody:  custodyMgr,
		host:     h,
		sink:     NewZapSink(logger, NopSink{}),
	}
}

// SetSink replaces the event sink, used to wire in the API server's
// WebSocket hub after construction.
func (c *Contract) SetSink(next Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = NewZapSink(zap.NewNop(), next)
}

func (c *Contract) nextSeq() types.SequenceNumber {
	c.seq++
	return c.seq
}

func (c *Contract) assertOwner(caller types.AccountID) error {
	if caller != c.owner {
		return xerrors.ErrNotOwner
	}
	return nil
}

func (c *Contract) assertContractActive() error {
	if c.state != types.ContractActive {
		return xerrors.ErrContractMustBeActive
	}
	return nil
}

// --- Owner-only admin actions (spec §6) ---

func (c *Contract) SetContractState(caller types.AccountID, state types.ContractState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.assertOwner(caller); err != nil {
		return err
	}
	c.state = state
	return nil
}

// CreateMarketParams mirrors the spec's create_market payload.
type CreateMarketParams struct {
	BaseToken          types.TokenType
	QuoteToken         types.TokenType
	BaseTokenLotSize   uint64
	QuoteTokenLotSize  uint64
	TakerFeeBaseRateBps uint16
	MakerRebateBaseRateBps uint16
}

// CreateMarket builds and registers a new market, computing its
// MarketID as the hash of the contract account and both token specs.
// The decimals for each side are resolved separately (via
// SetMarketDecimals, mirroring the metadata callback the original
// relies on) before the market can go Active.
func (c *Contract) CreateMarket(caller types.AccountID, params CreateMarketParams) (types.MarketID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.assertOwner(caller); err != nil {
		return types.MarketID{}, err
	}

	base := market.Token{TokenType: params.BaseToken, LotSize: params.BaseTokenLotSize, Decimals: market.InvalidDecimals}
	quote := market.Token{TokenType: params.QuoteToken, LotSize: params.QuoteTokenLotSize, Decimals: market.InvalidDecimals}
	if params.BaseToken.Kind == types.TokenNative {
		base.Decimals = types.NativeDecimals
	}
	if params.QuoteToken.Kind == types.TokenNative {
		quote.Decimals = types.NativeDecimals
	}

	m, err := market.New(base, quote, params.TakerFeeBaseRateBps, params.MakerRebateBaseRateBps)
	if err != nil {
		return types.MarketID{}, err
	}

	id := types.NewMarketID(c.host.CurrentAccountID(), base.TokenType.Key(), base.LotSize, quote.TokenType.Key(), quote.LotSize)
	if err := c.markets.Register(id, m); err != nil {
		return types.MarketID{}, xerrors.ErrMarketExists
	}

	c.sink.NewMarket(NewMarketEvent{Creator: caller, MarketID: id, Base: base.TokenType, Quote: quote.TokenType})
	return id, nil
}

// SetMarketDecimals resolves one side's decimals, e.g. once a token
// metadata callback has returned, potentially activating the market.
func (c *Contract) SetMarketDecimals(caller types.AccountID, marketID types.MarketID, side types.PairSide, decimals uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.assertOwner(caller); err != nil {
		return err
	}
	m, err := c.markets.Get(marketID)
	if err != nil {
		return err
	}
	return m.SetDecimals(side, decimals)
}

func (c *Contract) SetMarketState(caller types.AccountID, marketID types.MarketID, state market.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.assertOwner(caller); err != nil {
		return err
	}
	m, err := c.markets.Get(marketID)
	if err != nil {
		return err
	}
	m.SetState(state)
	return nil
}

func (c *Contract) SetMarketBidWindow(caller types.AccountID, marketID types.MarketID, minimumBidBps uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.assertOwner(caller); err != nil {
		return err
	}
	m, err := c.markets.Get(marketID)
	if err != nil {
		return err
	}
	m.MinimumBidBps = minimumBidBps
	return nil
}

func (c *Contract) SetMarketAskWindow(caller types.AccountID, marketID types.MarketID, maximumAskBps uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.assertOwner(caller); err != nil {
		return err
	}
	m, err := c.markets.Get(marketID)
	if err != nil {
		return err
	}
	m.MaximumAskBps = maximumAskBps
	return nil
}

func (c *Contract) AdminDeleteMarket(caller types.AccountID, marketID types.MarketID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.assertOwner(caller); err != nil {
		return err
	}
	m, err := c.markets.Get(marketID)
	if err != nil {
		return err
	}
	if !m.Deletable() {
		return xerrors.ErrMarketCannotDelete
	}
	return c.markets.Remove(marketID)
}

func (c *Contract) AdminCancelOrder(caller types.AccountID, marketID types.MarketID, orderID types.OrderID) (pipelines.CancelEventData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.assertOwner(caller); err != nil {
		return pipelines.CancelEventData{}, err
	}
	m, err := c.markets.Get(marketID)
	if err != nil {
		return pipelines.CancelEventData{}, err
	}
	resting, ok := m.Book.GetOrder(orderID)
	if !ok {
		return pipelines.CancelEventData{}, xerrors.ErrOrderNotFound
	}
	ev, err := pipelines.CancelOrder(m, marketID, c.accounts, resting.OwnerID, orderID)
	if err != nil {
		return pipelines.CancelEventData{}, err
	}
	c.sink.Cancel(CancelEvent{Market: marketID, Events: []pipelines.CancelEventData{ev}})
	return ev, nil
}

func (c *Contract) AdminCancelAllUserOrders(caller types.AccountID, marketID types.MarketID, owner types.AccountID) ([]pipelines.CancelEventData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.assertOwner(caller); err != nil {
		return nil, err
	}
	m, err := c.markets.Get(marketID)
	if err != nil {
		return nil, err
	}
	events, err := pipelines.CancelAllOrders(m, marketID, c.accounts, owner)
	if err != nil {
		return events, err
	}
	if len(events) > 0 {
		c.sink.Cancel(CancelEvent{Market: marketID, Events: events})
	}
	return events, nil
}

func (c *Contract) AdminClearOrderbook(caller types.AccountID, marketID types.MarketID) ([]pipelines.CancelEventData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.assertOwner(caller); err != nil {
		return nil, err
	}
	m, err := c.markets.Get(marketID)
	if err != nil {
		return nil, err
	}
	events, err := pipelines.AdminClearOrderbook(m, marketID, c.accounts)
	if err != nil {
		return events, err
	}
	if len(events) > 0 {
		c.sink.Cancel(CancelEvent{Market: marketID, Events: events})
	}
	return events, nil
}

// --- Order / cancel surface ---

// NewOrder runs new_order(market_id, params): dispatch to the market
// pipeline when orderType is Market, otherwise to the limit-buy or
// limit-sell pipeline depending on side.
func (c *Contract) NewOrder(caller types.AccountID, marketID types.MarketID, side types.Side, orderType types.OrderType, params pipelines.NewOrderParams) (pipelines.PlaceOrderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.assertContractActive(); err != nil {
		return pipelines.PlaceOrderResult{}, err
	}
	m, err := c.markets.Get(marketID)
	if err != nil {
		return pipelines.PlaceOrderResult{}, err
	}

	var result pipelines.PlaceOrderResult
	if orderType == types.Market {
		result, err = pipelines.PlaceMarketOrder(m, marketID, c.accounts, c.host, c.nextSeq(), caller, side, params)
	} else if side == types.Buy {
		result, err = pipelines.PlaceLimitBuy(m, marketID, c.accounts, c.host, c.nextSeq(), caller, orderType, params)
	} else {
		result, err = pipelines.PlaceLimitSell(m, marketID, c.accounts, c.host, c.nextSeq(), caller, orderType, params)
	}
	if err != nil {
		return pipelines.PlaceOrderResult{}, err
	}

	c.emitOrderResult(marketID, caller, side, orderType, params, result, false)
	return result, nil
}

func (c *Contract) emitOrderResult(marketID types.MarketID, caller types.AccountID, side types.Side, orderType types.OrderType, params pipelines.NewOrderParams, result pipelines.PlaceOrderResult, isSwap bool) {
	var openQty *uint64
	if result.OpenQtyLots > 0 {
		v := result.OpenQtyLots
		openQty = &v
	}
	c.sink.Order(OrderEvent{
		Account:        caller,
		Market:         marketID,
		OrderID:        result.ID,
		LimitPrice:     params.LimitPriceLots,
		Quantity:       params.QuantityNative,
		Side:           side,
		OrderType:      orderType,
		TakerFee:       result.TakerFee,
		Referrer:       params.ReferrerID,
		ReferrerRebate: result.ReferrerRebate,
		IsSwap:         isSwap,
		ClientID:       params.ClientID,
		BestBid:        result.BestBid,
		BestAsk:        result.BestAsk,
		OpenQuantity:   openQty,
	})
	if len(result.FillEvents) > 0 {
		c.sink.Fill(FillEvent{Market: marketID, OrderID: result.ID, Fills: result.FillEvents})
	}
}

func (c *Contract) CancelOrder(caller types.AccountID, marketID types.MarketID, orderID types.OrderID) (pipelines.CancelEventData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.markets.Get(marketID)
	if err != nil {
		return pipelines.CancelEventData{}, err
	}
	if err := m.AssertCanCancel(); err != nil {
		return pipelines.CancelEventData{}, err
	}
	ev, err := pipelines.CancelOrder(m, marketID, c.accounts, caller, orderID)
	if err != nil {
		return pipelines.CancelEventData{}, err
	}
	c.sink.Cancel(CancelEvent{Market: marketID, Events: []pipelines.CancelEventData{ev}})
	return ev, nil
}

func (c *Contract) CancelAllOrders(caller types.AccountID, marketID types.MarketID) ([]pipelines.CancelEventData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.markets.Get(marketID)
	if err != nil {
		return nil, err
	}
	if err := m.AssertCanCancel(); err != nil {
		return nil, err
	}
	events, err := pipelines.CancelAllOrders(m, marketID, c.accounts, caller)
	if err != nil {
		return events, err
	}
	if len(events) > 0 {
		c.sink.Cancel(CancelEvent{Market: marketID, Events: events})
	}
	return events, nil
}

// --- Deposit / withdraw / storage ---

func (c *Contract) DepositNear(caller types.AccountID, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.custody.Deposit(caller, types.Native(), amount)
}

func (c *Contract) WithdrawNear(caller types.AccountID, amount uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.custody.Withdraw(caller, types.Native(), amount)
}

func (c *Contract) WithdrawFT(caller types.AccountID, token types.TokenType, amount uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.custody.Withdraw(caller, token, amount)
}

func (c *Contract) ResolveWithdraw(transferID uint64, succeeded bool) (custody.Resolution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.custody.ResolveWithdraw(transferID, succeeded, c.owner)
}

func (c *Contract) StorageDeposit(accountID types.AccountID, amount uint64, registrationOnly bool) (*account.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.custody.StorageDeposit(accountID, amount, registrationOnly)
}

func (c *Contract) StorageWithdraw(caller types.AccountID, amount *uint64) (uint64, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.custody.StorageWithdraw(caller, amount)
}

func (c *Contract) StorageUnregister(caller types.AccountID, force bool) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.custody.StorageUnregister(caller, force)
}

// FTOnTransfer implements the token-receiver callback: an empty msg
// deposits to the sender's account; a non-empty msg is parsed as a
// Swap action chain and routed to the swap pipeline with this
// transfer's amount as the chain's input.
func (c *Contract) FTOnTransfer(sender types.AccountID, token types.TokenType, amount uint64, msg string) (pipelines.SwapChainResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg == "" {
		return pipelines.SwapChainResult{}, c.custody.Deposit(sender, token, amount)
	}
	var action Action
	if err := json.Unmarshal([]byte(msg), &action); err != nil || action.ActionName != actionSwap {
		return pipelines.SwapChainResult{}, xerrors.ErrInvalidAction
	}
	var legs []SwapActionParams
	if err := decodeParams(action.Params, &legs); err != nil {
		return pipelines.SwapChainResult{}, err
	}
	return c.runSwapLocked(legs, amount)
}

// runSwapLocked must be called with mu held. It chains the swap legs,
// feeding each leg's output amount into the next leg's input, starting
// from inputAmount.
func (c *Contract) runSwapLocked(legs []SwapActionParams, inputAmount uint64) (pipelines.SwapChainResult, error) {
	if len(legs) == 0 {
		return pipelines.SwapChainResult{}, xerrors.ErrInvalidAction
	}
	steps := make([]pipelines.SwapChainStep, 0, len(legs))
	for _, leg := range legs {
		m, err := c.markets.Get(leg.Market)
		if err != nil {
			return pipelines.SwapChainResult{}, err
		}
		steps = append(steps, pipelines.SwapChainStep{
			Market:     m,
			MarketID:   leg.Market,
			Accounts:   c.accounts,
			Host:       c.host,
			Seq:        c.nextSeq(),
			Side:       leg.Side,
			MinOutput:  leg.MinOutput,
			ReferrerID: leg.ReferrerID,
		})
	}
	steps[0].InputAmount = inputAmount

	result, err := pipelines.RunSwapChain(steps)
	if err != nil {
		return pipelines.SwapChainResult{}, err
	}
	if len(result.FillEvents) > 0 {
		c.sink.Fill(FillEvent{Market: legs[len(legs)-1].Market, Fills: result.FillEvents})
	}
	return result, nil
}

// SwapNear implements swap_near([SwapAction]): the attached native
// deposit is the chain's input amount.
func (c *Contract) SwapNear(attachedDeposit uint64, legs []SwapActionParams) (pipelines.SwapChainResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runSwapLocked(legs, attachedDeposit)
}

// --- Batch action executor ---

// Execute runs actions sequentially on behalf of caller. Any action
// failure aborts the remaining batch and returns the error; actions
// already applied before the failure are not rolled back individually
// by this executor — each pipeline call is itself atomic (it either
// fully applies or returns an error before mutating state), so a
// failing action never leaves partial effects of its own.
func (c *Contract) Execute(caller types.AccountID, actions []Action) (results []ActionResult, execErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				execErr = err
			} else {
				execErr = errors.New("contract: action panicked")
			}
		}
	}()

	if err := c.assertContractActive(); err != nil {
		return nil, err
	}

	for _, a := range actions {
		res := ActionResult{ActionName: a.ActionName}
		switch a.ActionName {
		case actionNewOrder:
			var p NewOrderActionParams
			if err := decodeParams(a.Params, &p); err != nil {
				return results, err
			}
			m, err := c.markets.Get(p.Market)
			if err != nil {
				return results, err
			}
			orderParams := pipelines.NewOrderParams{
				LimitPriceLots: p.LimitPriceLots,
				MaxSpend:       p.MaxSpend,
				QuantityNative: p.QuantityNative,
				ClientID:       p.ClientID,
				ReferrerID:     p.ReferrerID,
			}
			var placeResult pipelines.PlaceOrderResult
			if p.OrderType == types.Market {
				placeResult, err = pipelines.PlaceMarketOrder(m, p.Market, c.accounts, c.host, c.nextSeq(), caller, p.Side, orderParams)
			} else if p.Side == types.Buy {
				placeResult, err = pipelines.PlaceLimitBuy(m, p.Market, c.accounts, c.host, c.nextSeq(), caller, p.OrderType, orderParams)
			} else {
				placeResult, err = pipelines.PlaceLimitSell(m, p.Market, c.accounts, c.host, c.nextSeq(), caller, p.OrderType, orderParams)
			}
			if err != nil {
				return results, err
			}
			c.emitOrderResult(p.Market, caller, p.Side, p.OrderType, orderParams, placeResult, false)
			res.Result = placeResult

		case actionCancelOrders:
			var p CancelOrdersActionParams
			if err := decodeParams(a.Params, &p); err != nil {
				return results, err
			}
			m, err := c.markets.Get(p.Market)
			if err != nil {
				return results, err
			}
			var events []pipelines.CancelEventData
			for _, id := range p.OrderIDs {
				ev, err := pipelines.CancelOrder(m, p.Market, c.accounts, caller, id)
				if err != nil {
					return results, err
				}
				events = append(events, ev)
			}
			if len(events) > 0 {
				c.sink.Cancel(CancelEvent{Market: p.Market, Events: events})
			}
			res.Result = events

		case actionCancelAllOrders:
			var p CancelAllOrdersActionParams
			if err := decodeParams(a.Params, &p); err != nil {
				return results, err
			}
			m, err := c.markets.Get(p.Market)
			if err != nil {
				return results, err
			}
			events, err := pipelines.CancelAllOrders(m, p.Market, c.accounts, caller)
			if err != nil {
				return results, err
			}
			if len(events) > 0 {
				c.sink.Cancel(CancelEvent{Market: p.Market, Events: events})
			}
			res.Result = events

		case actionSwap:
			// Swap may only be invoked from the token-receiver entry
			// point, where the input amount comes from the transfer
			// itself, not from a batch.
			return results, xerrors.ErrInvalidAction

		default:
			return results, xerrors.ErrInvalidAction
		}
		results = append(results, res)
	}

	return results, nil
}

// --- Views ---

func (c *Contract) GetMarket(marketID types.MarketID) (*market.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.markets.Get(marketID)
}

func (c *Contract) GetOrderbook(marketID types.MarketID, depth int) (bids, asks []orderbook.PriceLevel, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.markets.Get(marketID)
	if err != nil {
		return nil, nil, err
	}
	return m.Book.Levels(types.Buy, depth), m.Book.Levels(types.Sell, depth), nil
}

func (c *Contract) GetOpenOrders(marketID types.MarketID, owner types.AccountID) ([]types.OrderID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.markets.Get(marketID)
	if err != nil {
		return nil, err
	}
	return m.Book.IterateOwned(owner), nil
}

func (c *Contract) GetOrder(marketID types.MarketID, orderID types.OrderID) (*orderbook.OpenLimitOrder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, err := c.markets.Get(marketID)
	if err != nil {
		return nil, err
	}
	o, ok := m.Book.GetOrder(orderID)
	if !ok {
		return nil, xerrors.ErrOrderNotFound
	}
	return o, nil
}

func (c *Contract) GetBalance(accountID types.AccountID, token types.TokenType) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, err := c.accounts.Get(accountID)
	if err != nil {
		return 0, err
	}
	return acc.GetBalance(token), nil
}

func (c *Contract) GetBalances(accountID types.AccountID) (map[string]uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, err := c.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}
	return acc.GetBalances(), nil
}

func (c *Contract) ListMarkets(from, limit int) []types.MarketID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.markets.List(from, limit)
}

func (c *Contract) GetNumberOfMarkets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.markets.Count()
}

func (c *Contract) GetOwner() types.AccountID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

func (c *Contract) GetContractState() types.ContractState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
