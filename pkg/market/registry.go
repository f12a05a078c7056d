package market

import (
	"errors"
	"sync"

	"github.com/tonicdex/core/pkg/types"
)

var (
	ErrMarketNotFound = errors.New("market: not found")
	ErrMarketExists   = errors.New("market: already exists")
)

// Registry holds every market, keyed by MarketID, plus a separately
// maintained insertion-ordered list so enumeration never needs a
// paginated map scan.
type Registry struct {
	mu      sync.RWMutex
	markets map[types.MarketID]*Market
	order   []types.MarketID
}

func NewRegistry() *Registry {
	return &Registry{markets: make(map[types.MarketID]*Market)}
}

// Register adds a brand-new market. Markets are created by the owner
// and never implicitly deleted.
func (r *Registry) Register(id types.MarketID, m *Market) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.markets[id]; exists {
		return ErrMarketExists
	}
	m.SetID(id)
	r.markets[id] = m
	r.order = append(r.order, id)
	return nil
}

func (r *Registry) Get(id types.MarketID) (*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[id]
	if !ok {
		return nil, ErrMarketNotFound
	}
	return m, nil
}

// List returns up to limit market ids starting at the given insertion
// offset, matching the spec's list_markets(from, limit) view.
func (r *Registry) List(from, limit int) []types.MarketID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if from < 0 || from >= len(r.order) {
		return nil
	}
	end := from + limit
	if limit <= 0 || end > len(r.order) {
		end = len(r.order)
	}
	out := make([]types.MarketID, end-from)
	copy(out, r.order[from:end])
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Remove deletes a market. Only Uninitialized or Paused-with-empty-book
// markets are deletable (enforced by the caller via Market.Deletable).
func (r *Registry) Remove(id types.MarketID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.markets[id]; !ok {
		return ErrMarketNotFound
	}
	delete(r.markets, id)
	for i, mid := range r.order {
		if mid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
