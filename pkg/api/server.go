// Package api exposes the contract's views and actions over REST and
// WebSocket, the way the teacher's pkg/api does for its perp engine.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/tonicdex/core/internal/contract"
	"github.com/tonicdex/core/internal/pipelines"
	"github.com/tonicdex/core/pkg/market"
	"github.com/tonicdex/core/pkg/orderbook"
	"github.com/tonicdex/core/pkg/types"
)

var (
	errInvalidAddress   = errors.New("api: invalid account address")
	errInvalidSide      = errors.New("api: invalid side")
	errInvalidOrderType = errors.New("api: invalid order type")
)

// Server serves the contract's REST views/actions and pushes events
// over the WebSocket hub.
type Server struct {
	contract *contract.Contract
	router   *mux.Router
	hub      *Hub
	log      *zap.SugaredLogger
}

func NewServer(c *contract.Contract, logger *zap.Logger) *Server {
	s := &Server{
		contract: c,
		router:   mux.NewRouter(),
		hub:      NewHub(),
		log:      logger.Sugar(),
	}
	c.SetSink(contract.NewZapSink(logger, NewHubSink(s.hub)))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/markets", s.handleListMarkets).Methods("GET")
	api.HandleFunc("/markets/{marketId}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{marketId}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{marketId}/orders", s.handleGetOpenOrders).Methods("GET")
	api.HandleFunc("/markets/{marketId}/orders/{orderId}", s.handleGetOrder).Methods("GET")

	api.HandleFunc("/accounts/{address}/balances", s.handleGetBalances).Methods("GET")
	api.HandleFunc("/accounts/{address}/balances/{token}", s.handleGetBalance).Methods("GET")

	api.HandleFunc("/orders", s.handleNewOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/cancel-all", s.handleCancelAllOrders).Methods("POST")
	api.HandleFunc("/actions", s.handleExecute).Methods("POST")

	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Account-Id"},
		AllowCredentials: false,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST handlers
// ==============================

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	from, limit := 0, 100
	if v := r.URL.Query().Get("from"); v != "" {
		from, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	ids := s.contract.ListMarkets(from, limit)
	out := make([]MarketSummary, 0, len(ids))
	for _, id := range ids {
		m, err := s.contract.GetMarket(id)
		if err != nil {
			continue
		}
		out = append(out, marketSummary(id, m))
	}
	respondJSON(w, out)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	marketID, err := parseMarketID(mux.Vars(r)["marketId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	m, err := s.contract.GetMarket(marketID)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondJSON(w, marketSummary(marketID, m))
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	marketID, err := parseMarketID(mux.Vars(r)["marketId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	depth := 50
	if v := r.URL.Query().Get("depth"); v != "" {
		depth, _ = strconv.Atoi(v)
	}
	bids, asks, err := s.contract.GetOrderbook(marketID, depth)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondJSON(w, OrderbookSnapshot{
		MarketID:  marketID.String(),
		Bids:      toPriceLevels(bids),
		Asks:      toPriceLevels(asks),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetOpenOrders(w http.ResponseWriter, r *http.Request) {
	marketID, err := parseMarketID(mux.Vars(r)["marketId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	addr, err := parseAccountID(r.URL.Query().Get("account"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	ids, err := s.contract.GetOpenOrders(marketID, addr)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	out := make([]OpenOrderInfo, 0, len(ids))
	for _, id := range ids {
		o, err := s.contract.GetOrder(marketID, id)
		if err != nil || o == nil {
			continue
		}
		out = append(out, OpenOrderInfo{
			OrderID:     o.ID.String(),
			PriceLots:   o.ID.PriceLots,
			OpenQtyLots: o.OpenQtyLots,
			Side:        o.Side.String(),
		})
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	marketID, err := parseMarketID(vars["marketId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var orderID types.OrderID
	if err := orderID.UnmarshalText([]byte(vars["orderId"])); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	o, err := s.contract.GetOrder(marketID, orderID)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondJSON(w, OpenOrderInfo{
		OrderID:     o.ID.String(),
		PriceLots:   o.ID.PriceLots,
		OpenQtyLots: o.OpenQtyLots,
		Side:        o.Side.String(),
	})
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAccountID(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	balances, err := s.contract.GetBalances(addr)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondJSON(w, BalancesResponse{AccountID: addr.Hex(), Balances: balances})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addr, err := parseAccountID(vars["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	token := tokenFromKey(vars["token"])
	balance, err := s.contract.GetBalance(addr, token)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondJSON(w, map[string]uint64{"balance": balance})
}

func (s *Server) handleNewOrder(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAccount(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err)
		return
	}
	var req NewOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	marketID, err := parseMarketID(req.Market)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	orderType, err := parseOrderType(req.OrderType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var referrer *types.AccountID
	if req.ReferrerID != nil {
		refAddr, err := parseAccountID(*req.ReferrerID)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		referrer = &refAddr
	}
	result, err := s.contract.NewOrder(caller, marketID, side, orderType, pipelines.NewOrderParams{
		LimitPriceLots: req.LimitPriceLots,
		MaxSpend:       req.MaxSpend,
		QuantityNative: req.QuantityNative,
		ClientID:       req.ClientID,
		ReferrerID:     referrer,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, result)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAccount(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err)
		return
	}
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	marketID, err := parseMarketID(req.Market)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var orderID types.OrderID
	if err := orderID.UnmarshalText([]byte(req.OrderID)); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	event, err := s.contract.CancelOrder(caller, marketID, orderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, event)
}

func (s *Server) handleCancelAllOrders(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAccount(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err)
		return
	}
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	marketID, err := parseMarketID(req.Market)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	events, err := s.contract.CancelAllOrders(caller, marketID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, events)
}

// handleExecute runs a batch of contract.Action envelopes, the same
// shape cmd/orderctl prints, via the contract's batch executor.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAccount(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err)
		return
	}
	var actions []contract.Action
	if err := json.NewDecoder(r.Body).Decode(&actions); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	results, err := s.contract.Execute(caller, actions)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, results)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"owner":         s.contract.GetOwner().Hex(),
		"state":         s.contract.GetContractState().String(),
		"numberMarkets": s.contract.GetNumberOfMarkets(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func marketSummary(id types.MarketID, m *market.Market) MarketSummary {
	return MarketSummary{
		MarketID:            id.String(),
		BaseToken:           m.Base.TokenType.Key(),
		QuoteToken:          m.Quote.TokenType.Key(),
		BaseLotSize:         m.Base.LotSize,
		QuoteLotSize:        m.Quote.LotSize,
		State:               m.State.String(),
		TakerFeeBps:         m.FeeCalculator.TakerFeeBps,
		MakerRebateBps:      m.FeeCalculator.MakerRebateBps,
		MinimumBidBps:       m.MinimumBidBps,
		MaximumAskBps:       m.MaximumAskBps,
		MaxOrdersPerAccount: m.MaxOrdersPerAccount,
		FeesAccrued:         m.FeesAccrued,
	}
}

func parseMarketID(s string) (types.MarketID, error) {
	var id types.MarketID
	err := id.UnmarshalText([]byte(s))
	return id, err
}

func parseAccountID(s string) (types.AccountID, error) {
	if !common.IsHexAddress(s) {
		return types.AccountID{}, errInvalidAddress
	}
	return common.HexToAddress(s), nil
}

// callerAccount reads the acting account from a header, standing in
// for the host's authenticated predecessor account in this standalone
// server; production deployment authenticates the caller at the host
// boundary instead.
func callerAccount(r *http.Request) (types.AccountID, error) {
	return parseAccountID(r.Header.Get("X-Account-Id"))
}

func tokenFromKey(key string) types.TokenType {
	if key == "NEAR" {
		return types.Native()
	}
	return types.FungibleToken(key)
}

func parseSide(s string) (types.Side, error) {
	switch s {
	case "buy":
		return types.Buy, nil
	case "sell":
		return types.Sell, nil
	default:
		return 0, errInvalidSide
	}
}

func parseOrderType(s string) (types.OrderType, error) {
	switch s {
	case "limit":
		return types.Limit, nil
	case "market":
		return types.Market, nil
	case "fok":
		return types.FillOrKill, nil
	case "ioc":
		return types.ImmediateOrCancel, nil
	case "post_only":
		return types.PostOnly, nil
	default:
		return 0, errInvalidOrderType
	}
}

func toPriceLevels(in []orderbook.PriceLevel) []PriceLevel {
	out := make([]PriceLevel, len(in))
	for i, l := range in {
		out[i] = PriceLevel{PriceLots: l.PriceLots, QtyLots: l.QtyLots}
	}
	return out
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}
