// Command orderctl builds the tagged-JSON Action envelope the exchange
// core expects (see internal/contract.Action) and either prints it or
// posts it to a running node's batch-execute endpoint. Adapted from
// cmd/sign-order/main.go, minus its EIP-712 signing step: the actions
// here are contract method calls authenticated by the host's
// predecessor-account convention, not self-contained signed payloads.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tonicdex/core/internal/contract"
	"github.com/tonicdex/core/pkg/types"
)

func main() {
	action := flag.String("action", "new_order", "new_order | cancel_order | cancel_all_orders")
	market := flag.String("market", "", "market id, hex-encoded")
	side := flag.String("side", "buy", "buy | sell (new_order only)")
	orderType := flag.String("type", "limit", "limit | market | fok | ioc | post_only (new_order only)")
	priceLots := flag.Uint64("price-lots", 0, "limit price in lots (new_order only)")
	quantity := flag.Uint64("quantity", 0, "native quantity requested (new_order only)")
	orderID := flag.String("order-id", "", "order id to cancel (cancel_order only)")
	post := flag.String("post", "", "if set, POST the action to this node URL instead of printing it")
	account := flag.String("account", "", "caller account id, hex address, sent as X-Account-Id when posting")
	flag.Parse()

	var marketID types.MarketID
	if *market != "" {
		if err := marketID.UnmarshalText([]byte(*market)); err != nil {
			fail("invalid -market: %v", err)
		}
	}

	var act contract.Action
	switch *action {
	case "new_order":
		s, err := parseSide(*side)
		if err != nil {
			fail("%v", err)
		}
		ot, err := parseOrderType(*orderType)
		if err != nil {
			fail("%v", err)
		}
		params := contract.NewOrderActionParams{
			Market:         marketID,
			Side:           s,
			OrderType:      ot,
			QuantityNative: *quantity,
		}
		if *priceLots > 0 {
			params.LimitPriceLots = priceLots
		}
		act = buildAction("NewOrder", params)

	case "cancel_order":
		if *orderID == "" {
			fail("-order-id is required for cancel_order")
		}
		var id types.OrderID
		if err := id.UnmarshalText([]byte(*orderID)); err != nil {
			fail("invalid -order-id: %v", err)
		}
		act = buildAction("CancelOrders", contract.CancelOrdersActionParams{
			Market:   marketID,
			OrderIDs: []types.OrderID{id},
		})

	case "cancel_all_orders":
		act = buildAction("CancelAllOrders", contract.CancelAllOrdersActionParams{Market: marketID})

	default:
		fail("unknown -action %q", *action)
	}

	body, err := json.MarshalIndent([]contract.Action{act}, "", "  ")
	if err != nil {
		fail("marshal action: %v", err)
	}

	if *post == "" {
		fmt.Println(string(body))
		return
	}

	if !common.IsHexAddress(*account) {
		fail("-account must be a hex address when posting")
	}

	req, err := http.NewRequest(http.MethodPost, *post, bytes.NewReader(body))
	if err != nil {
		fail("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Account-Id", *account)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fail("post action: %v", err)
	}
	defer resp.Body.Close()

	var results []contract.ActionResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		fail("decode response: %v", err)
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(out))
}

func buildAction(name string, params interface{}) contract.Action {
	raw, err := json.Marshal(params)
	if err != nil {
		fail("marshal params: %v", err)
	}
	return contract.Action{ActionName: name, Params: raw}
}

func parseSide(s string) (types.Side, error) {
	switch s {
	case "buy":
		return types.Buy, nil
	case "sell":
		return types.Sell, nil
	default:
		return 0, fmt.Errorf("invalid side %q", s)
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
		return 0, fmt.Errorf("invalid order type %q", s)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
