// Package matcher implements the paper-trading matching engine: order
// submission with simulated latency, market-order walk-the-book
// execution, limit-order advancement from the trade tape, fees, and
// cancellation (spec §4.4).
package matcher

import (
	"sync"

	"github.com/saiputravu/microstructure/internal/common"
)

// store is the order catalog plus the open-order index (spec §4, §9
// "Open-order index"): a map of all submitted orders and a set of the ids
// currently OPEN, kept small by removing on fill/cancel.
type store struct {
	mu         sync.Mutex
	orders     map[string]*common.Order
	openOrders map[string]struct{}
}

func newStore() *store {
	return &store{
		orders:     make(map[string]*common.Order),
		openOrders: make(map[string]struct{}),
	}
}

func (s *store) put(o *common.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *store) get(id string) (*common.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

func (s *store) markOpen(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openOrders[id] = struct{}{}
}

func (s *store) removeOpen(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.openOrders, id)
}

// openIDs returns a snapshot of currently open order ids, in map
// iteration order (not stable between calls), safe to range over while individual orders may be removed mid-iteration
// by the caller (spec §4.4 process_limit_orders iterates list(open_orders)).
func (s *store) openIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.openOrders))
	for id := range s.openOrders {
		ids = append(ids, id)
	}
	return ids
}

func (s *store) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.openOrders)
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[string]*common.Order)
	s.openOrders = make(map[string]struct{})
}
