package pipelines

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tonicdex/core/internal/host"
	"github.com/tonicdex/core/pkg/account"
	"github.com/tonicdex/core/pkg/market"
	"github.com/tonicdex/core/pkg/types"
)

var (
	alice    = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob      = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	referrer = common.HexToAddress("0xCC00000000000000000000000000000000000000")
)

// newTestMarket returns an Active market with trivial lot sizes (base and
// quote lot size 1, both denominated at zero decimals) so that native
// amounts and lot counts coincide, keeping the pipeline arithmetic in
// these tests easy to verify by hand.
func newTestMarket(t *testing.T, takerFeeBps, makerRebateBps uint16) *market.Market {
	t.Helper()
	base := market.Token{TokenType: types.FungibleToken("base.near"), LotSize: 1, Decimals: market.InvalidDecimals}
	quote := market.Token{TokenType: types.FungibleToken("quote.near"), LotSize: 1, Decimals: market.InvalidDecimals}
	m, err := market.New(base, quote, takerFeeBps, makerRebateBps)
	if err != nil {
		t.Fatalf("market.New() unexpected error: %v", err)
	}
	if err := m.SetDecimals(types.Base, 0); err != nil {
		t.Fatalf("SetDecimals(Base): %v", err)
	}
	if err := m.SetDecimals(types.Quote, 0); err != nil {
		t.Fatalf("SetDecimals(Quote): %v", err)
	}
	return m
}

func newTestAccounts(t *testing.T) *account.Manager {
	t.Helper()
	store, err := account.NewStore(filepath.Join(t.TempDir(), "accounts"))
	if err != nil {
		t.Fatalf("account.NewStore() unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return account.NewManager(store)
}

func newTestHost() *host.InProcess {
	return host.NewInProcess(0, "exchange.near")
}

var testMarketID = types.NewMarketID("exchange.near", "ft:base.near", 1, "ft:quote.near", 1)
