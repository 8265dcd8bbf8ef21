package matcher

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/saiputravu/microstructure/internal/book"
	"github.com/saiputravu/microstructure/internal/common"
	"github.com/saiputravu/microstructure/internal/portfolio"
)

// defaultMinLatencyMS and defaultMaxLatencyMS bound the simulated
// submission latency (spec §4.4, §9: "production draws uniformly in
// [min_latency, max_latency] ms").
const (
	defaultMinLatencyMS = 50
	defaultMaxLatencyMS = 200
)

// LatencySource draws one simulated submission latency. It is
// test-injectable per spec §9 ("The RNG must be test-injectable").
type LatencySource func() time.Duration

// UniformLatency returns a LatencySource drawing uniformly from
// [min, max] milliseconds, using rng (pass a seeded *rand.Rand in tests
// for determinism).
func UniformLatency(min, max int, rng *rand.Rand) LatencySource {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	spread := max - min
	return func() time.Duration {
		ms := min
		if spread > 0 {
			ms += rng.Intn(spread + 1)
		}
		return time.Duration(ms) * time.Millisecond
	}
}

// Matcher is the paper-trading matching engine (spec §4.4): it owns the
// order store and drives a Portfolio's balance mutations, but never
// mutates the live book replica it is handed for market execution.
type Matcher struct {
	symbol    string
	store     *store
	portfolio *portfolio.Portfolio
	latency   LatencySource
	now       func() time.Time
	newID     func() string
}

// Option configures a Matcher at construction.
type Option func(*Matcher)

// WithLatency overrides the default [50ms, 200ms] uniform latency source.
func WithLatency(src LatencySource) Option {
	return func(m *Matcher) { m.latency = src }
}

// WithClock overrides the order-creation clock (for deterministic tests).
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

// WithIDSource overrides order id generation (for deterministic tests).
func WithIDSource(newID func() string) Option {
	return func(m *Matcher) { m.newID = newID }
}

// New creates a Matcher for symbol backed by portfolio.
func New(symbol string, pf *portfolio.Portfolio, opts ...Option) *Matcher {
	m := &Matcher{
		symbol:    symbol,
		store:     newStore(),
		portfolio: pf,
		latency:   UniformLatency(defaultMinLatencyMS, defaultMaxLatencyMS, nil),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PlaceOrder creates an order, assigns it an id, then waits out the
// simulated submission latency before acknowledging it (spec §4.4
// place_order). A LIMIT order transitions to OPEN and joins the
// open-order index; a MARKET order is left PENDING for the caller to
// drive through ExecuteMarket. Cancelling ctx during the latency wait
// returns ctx.Err() and leaves no account-state mutation: the order
// never reaches OPEN and no balance changes.
func (m *Matcher) PlaceOrder(ctx context.Context, side common.Side, orderType common.OrderType, qty, price float64) (string, error) {
	if qty <= 0 {
		return "", common.ErrInvalidOrderInput
	}
	if orderType == common.LimitOrder && price <= 0 {
		return "", common.ErrInvalidOrderInput
	}

	order := &common.Order{
		ID:        m.newID(),
		Symbol:    m.symbol,
		Side:      side,
		Type:      orderType,
		Quantity:  qty,
		Price:     price,
		CreatedAt: m.now(),
		Status:    common.Pending,
	}
	m.store.put(order)

	timer := time.NewTimer(m.latency())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	if orderType == common.LimitOrder {
		order.Status = common.Open
		m.store.markOpen(order.ID)
		log.Info().Str("id", order.ID).Str("side", side.String()).
			Float64("qty", qty).Float64("price", price).Msg("limit order open")
	}

	return order.ID, nil
}

// ExecuteMarket fills a PENDING market order by walking the opposite
// side of b best-to-worst (spec §4.4 "Market execution"). It never
// mutates b: the live book replica belongs to the feed session, not the
// paper matcher. A partial fill on liquidity exhaustion is finalized and
// common.ErrInsufficientLiquidity is returned as a warning, not a hard
// failure.
func (m *Matcher) ExecuteMarket(id string, b *book.Book) error {
	order, ok := m.store.get(id)
	if !ok {
		return common.ErrOrderNotFound
	}
	if order.Status != common.Pending {
		return common.ErrOrderNotOpen
	}

	var levels *book.Levels
	if order.Side == common.Buy {
		levels = b.AskLevels()
	} else {
		levels = b.BidLevels()
	}

	remaining := order.Quantity
	var cost, filled float64
	for _, lvl := range levels.Items() {
		if remaining <= 0 {
			break
		}
		fill := min(remaining, lvl.Qty)
		cost += fill * lvl.Price
		remaining -= fill
		filled += fill
	}

	if filled == 0 {
		return common.ErrInsufficientLiquidity
	}

	avgPrice := cost / filled
	m.finalizeFill(order, filled, avgPrice, false)

	if remaining > 0 {
		log.Warn().Str("id", id).Float64("remaining", remaining).
			Msg("market order partially filled: insufficient liquidity")
		return common.ErrInsufficientLiquidity
	}
	return nil
}

// AdvanceLimitOrders applies one trade-tape event to every open limit
// order, per the through-trade / processed-volume rule in spec §4.4
// "Limit advancement from the trade tape": a trade crossing our price
// unconditionally fills us; a trade at our price only advances us.
func (m *Matcher) AdvanceLimitOrders(trade common.TapeEvent) {
	for _, id := range m.store.openIDs() {
		order, ok := m.store.get(id)
		if !ok || order.Status != common.Open {
			continue
		}

		switch order.Side {
		case common.Buy:
			switch {
			case trade.Price < order.Price:
				m.finalizeFill(order, order.Quantity, order.Price, true)
			case trade.Price == order.Price && trade.BuyerIsMaker:
				order.ProcessedVolume += trade.Quantity
				if order.ProcessedVolume > order.Quantity {
					m.finalizeFill(order, order.Quantity, order.Price, true)
				}
			}
		case common.Sell:
			switch {
			case trade.Price > order.Price:
				m.finalizeFill(order, order.Quantity, order.Price, true)
			case trade.Price == order.Price && !trade.BuyerIsMaker:
				order.ProcessedVolume += trade.Quantity
				if order.ProcessedVolume > order.Quantity {
					m.finalizeFill(order, order.Quantity, order.Price, true)
				}
			}
		}
	}
}

// finalizeFill applies the fee model via the portfolio, marks the order
// FILLED, and removes it from the open-order index (spec §4.4
// finalize_fill).
func (m *Matcher) finalizeFill(order *common.Order, qty, price float64, isMaker bool) {
	var fee float64
	if order.Side == common.Buy {
		fee = m.portfolio.ApplyBuyFill(qty, price, isMaker)
	} else {
		fee = m.portfolio.ApplySellFill(qty, price, isMaker)
	}

	order.FilledQuantity = qty
	order.AvgFillPrice = price
	order.Status = common.Filled
	m.store.removeOpen(order.ID)

	log.Info().Str("id", order.ID).Str("side", order.Side.String()).
		Float64("qty", qty).Float64("price", price).Bool("maker", isMaker).
		Float64("fee", fee).Msg("order filled")
}

// Cancel flips an OPEN order to CANCELLED and removes it from the
// open-order index (spec §4.4).
func (m *Matcher) Cancel(id string) error {
	order, ok := m.store.get(id)
	if !ok {
		return common.ErrOrderNotFound
	}
	if order.Status != common.Open {
		return common.ErrOrderNotOpen
	}
	order.Status = common.Cancelled
	m.store.removeOpen(id)
	return nil
}

// CancelAll cancels every OPEN order and returns how many were cancelled.
func (m *Matcher) CancelAll() int {
	ids := m.store.openIDs()
	count := 0
	for _, id := range ids {
		if err := m.Cancel(id); err == nil {
			count++
		}
	}
	return count
}

// Reset clears all orders and the open-order index, then resets the
// backing portfolio, preserving the Matcher's own identity in place
// (spec §4.4 Reset, §9).
func (m *Matcher) Reset() {
	m.store.reset()
	m.portfolio.Reset()
}

// Order returns a copy of the order with id, if known.
func (m *Matcher) Order(id string) (common.Order, bool) {
	o, ok := m.store.get(id)
	if !ok {
		return common.Order{}, false
	}
	return *o, true
}

// OpenOrderCount is the number of currently OPEN orders (spec §8
// invariant 7: "An order is in the open-order index iff its status is
// OPEN").
func (m *Matcher) OpenOrderCount() int { return m.store.openCount() }

// PortfolioSnapshot returns the account snapshot at markPrice (spec §6).
func (m *Matcher) PortfolioSnapshot(markPrice float64) portfolio.Snapshot {
	return m.portfolio.TakeSnapshot(markPrice, m.store.openCount())
}
