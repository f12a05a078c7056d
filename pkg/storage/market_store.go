// Package storage persists market snapshots to a Pebble instance,
// JSON-encoded, the way the teacher repo's own store layer does for
// accounts and blocks.
package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"

	"github.com/tonicdex/core/pkg/market"
	"github.com/tonicdex/core/pkg/orderbook"
	"github.com/tonicdex/core/pkg/types"
)

const prefixMarket = "mkt:"

func marketKey(id types.MarketID) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixMarket, id.String()))
}

// record is the on-disk shape of a market: its exported fields plus a
// flat snapshot of every resting order, since OrderBook itself holds a
// sync.Mutex and heap indices that JSON can't round-trip directly.
type record struct {
	Base  market.Token `json:"base"`
	Quote market.Token `json:"quote"`

	State market.State `json:"state"`

	TakerFeeBps    uint16 `json:"taker_fee_bps"`
	MakerRebateBps uint16 `json:"maker_rebate_bps"`

	MaxOrdersPerAccount uint8  `json:"max_orders_per_account"`
	MinimumBidBps       uint32 `json:"minimum_bid_bps"`
	MaximumAskBps       uint32 `json:"maximum_ask_bps"`

	FeesAccrued uint64 `json:"fees_accrued"`

	RestingOrders []*orderbook.OpenLimitOrder `json:"resting_orders"`
}

// Store persists market snapshots to Pebble. Grounded on
// pkg/account.Store's options tuning, generalized from accounts to
// markets.
type Store struct {
	db *pebble.DB
}

func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(128 << 20),
		MemTableSize:          64 << 20,
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		LBaseMaxBytes:         64 << 20,
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10,
	}
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveMarket snapshots a market's configuration and every resting
// order on its book.
func (s *Store) SaveMarket(id types.MarketID, m *market.Market) error {
	rec := record{
		Base:                m.Base,
		Quote:               m.Quote,
		State:               m.State,
		TakerFeeBps:         m.FeeCalculator.TakerFeeBps,
		MakerRebateBps:      m.FeeCalculator.MakerRebateBps,
		MaxOrdersPerAccount: m.MaxOrdersPerAccount,
		MinimumBidBps:       m.MinimumBidBps,
		MaximumAskBps:       m.MaximumAskBps,
		FeesAccrued:         m.FeesAccrued,
		RestingOrders:       m.Book.AllOrders(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage: marshal market: %w", err)
	}
	if err := s.db.Set(marketKey(id), data, pebble.Sync); err != nil {
		return fmt.Errorf("storage: save market: %w", err)
	}
	return nil
}

// LoadMarket returns (nil, nil) if the market does not exist.
func (s *Store) LoadMarket(id types.MarketID) (*market.Market, error) {
	data, closer, err := s.db.Get(marketKey(id))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load market: %w", err)
	}
	defer closer.Close()

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("storage: unmarshal market: %w", err)
	}
	return rebuild(id, rec)
}

func rebuild(id types.MarketID, rec record) (*market.Market, error) {
	m, err := market.New(rec.Base, rec.Quote, rec.TakerFeeBps, rec.MakerRebateBps)
	if err != nil {
		return nil, fmt.Errorf("storage: rebuild market %s: %w", id, err)
	}
	m.SetID(id)
	m.SetState(rec.State)
	m.MaxOrdersPerAccount = rec.MaxOrdersPerAccount
	m.MinimumBidBps = rec.MinimumBidBps
	m.MaximumAskBps = rec.MaximumAskBps
	m.IncrFeesAccrued(rec.FeesAccrued)

	// Restore each price level in time priority so FIFO ordering within
	// a level survives the round trip; the snapshot itself has no
	// ordering guarantee since AllOrders walks a map.
	orders := append([]*orderbook.OpenLimitOrder(nil), rec.RestingOrders...)
	sort.Slice(orders, func(i, j int) bool { return orders[i].Sequence < orders[j].Sequence })
	for _, o := range orders {
		m.Book.RestoreOrder(o)
	}
	return m, nil
}

func (s *Store) DeleteMarket(id types.MarketID) error {
	if err := s.db.Delete(marketKey(id), pebble.Sync); err != nil {
		return fmt.Errorf("storage: delete market: %w", err)
	}
	return nil
}

// IterateMarkets visits every persisted market, used to repopulate the
// registry on process start.
func (s *Store) IterateMarkets(fn func(types.MarketID, *market.Market) error) error {
	lower := []byte(prefixMarket)
	upper := keyUpperBound(lower)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key())
		idHex := key[len(prefixMarket):]
		var id types.MarketID
		if err := id.UnmarshalText([]byte(idHex)); err != nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		m, err := rebuild(id, rec)
		if err != nil {
			continue
		}
		if err := fn(id, m); err != nil {
			return err
		}
	}
	return nil
}

func keyUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}
