// Package engine wires the book replica, metric pipeline, paper matcher
// and portfolio together behind the single exclusive lock the
// concurrency model calls for when targeting true parallelism, and
// exposes the Order API consumed by an (external, out of scope) HTTP
// layer plus the HandleDepthEvent/HandleTradeEvent/LadderPayload hooks
// consumed by the feed session and publisher.
package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/saiputravu/microstructure/internal/book"
	"github.com/saiputravu/microstructure/internal/common"
	"github.com/saiputravu/microstructure/internal/ladder"
	"github.com/saiputravu/microstructure/internal/matcher"
	"github.com/saiputravu/microstructure/internal/metrics"
	"github.com/saiputravu/microstructure/internal/portfolio"
)

// Settings are the user-visible runtime toggles (External Interfaces:
// "Settings: {fees_enabled: bool}").
type Settings struct {
	FeesEnabled bool
}

// Engine owns one symbol's full pipeline. mu is the single exclusive
// lock spanning one full ApplyDiff call, one ladder payload build, and
// one order submission/matching sequence, standing in for a
// single-threaded cooperative scheduler in an implementation that
// targets true parallelism.
type Engine struct {
	mu sync.Mutex

	symbol string
	depth  int

	book     *book.Book
	pipeline *metrics.Pipeline
	matcher  *matcher.Matcher
	pf       *portfolio.Portfolio
}

// New creates an Engine for symbol. initialQuoteUSD seeds the paper
// portfolio; makerFee/takerFee are the fee rates; depth is the default
// ladder depth used by LadderPayload.
func New(symbol string, depth int, initialQuoteUSD, makerFee, takerFee float64, opts ...matcher.Option) *Engine {
	pipeline := metrics.NewPipeline()
	b := book.New(pipeline)
	pf := portfolio.New(initialQuoteUSD, makerFee, takerFee)
	m := matcher.New(symbol, pf, opts...)

	return &Engine{
		symbol:   symbol,
		depth:    depth,
		book:     b,
		pipeline: pipeline,
		matcher:  m,
		pf:       pf,
	}
}

// HandleDepthEvent applies one depth-diff event under the exclusive
// lock and drives the feed session's resync policy: ID_GAP and
// CROSSED_BOOK are fatal-to-session and returned to the caller so it can
// force a resync; BRIDGING_FAILED is logged and swallowed (skip this
// event, retry the next); any other error is a parse failure, also
// swallowed.
func (e *Engine) HandleDepthEvent(event book.DepthEvent, strict bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.book.ApplyDiff(event, strict)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrIDGap), errors.Is(err, common.ErrCrossedBook):
		return err
	case errors.Is(err, common.ErrBridgingFailed):
		log.Warn().Str("symbol", e.symbol).Msg("bridging predicate failed, skipping event")
		return nil
	default:
		log.Warn().Err(err).Str("symbol", e.symbol).Msg("depth event parse failure, skipping")
		return nil
	}
}

// LoadSnapshot seeds the book replica under the exclusive lock.
func (e *Engine) LoadSnapshot(snap book.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.book.LoadSnapshot(snap)
}

// HandleTradeEvent updates CVD and advances resting limit orders from
// one trade-tape print, under the exclusive lock.
func (e *Engine) HandleTradeEvent(trade common.TapeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pipeline.OnTrade(trade.Quantity, trade.BuyerIsMaker)
	e.matcher.AdvanceLimitOrders(trade)
}

// LadderPayload builds one immutable ladder payload snapshot under the
// exclusive lock. depth overrides the Engine's default when > 0,
// preserving that two call sites (a snapshot endpoint and a periodic
// broadcaster) may use different depths.
func (e *Engine) LadderPayload(depth int) ladder.Payload {
	e.mu.Lock()
	defer e.mu.Unlock()

	if depth <= 0 {
		depth = e.depth
	}
	return ladder.Build(e.symbol, e.book, e.pipeline, depth, e.pf, e.matcher.OpenOrderCount())
}

// Submit places an order through the paper matcher. It deliberately does
// not hold e.mu: matcher.PlaceOrder only touches its own order store and
// the simulated-latency wait must not stall depth-event processing or
// other order submissions. The exclusive lock is acquired later, around
// ExecuteMarket and AdvanceLimitOrders, which are the calls that
// actually read or mutate the book. Invalid input (non-positive
// quantity, non-positive price on a limit order) is rejected
// synchronously with no state mutated.
func (e *Engine) Submit(ctx context.Context, side common.Side, orderType common.OrderType, qty, price float64) (string, error) {
	return e.matcher.PlaceOrder(ctx, side, orderType, qty, price)
}

// ExecuteMarket walks the live book to fill a pending market order,
// under the exclusive lock (it reads e.book while matching).
func (e *Engine) ExecuteMarket(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matcher.ExecuteMarket(id, e.book)
}

// CancelAll cancels every open order under the exclusive lock.
func (e *Engine) CancelAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matcher.CancelAll()
}

// Reset reinitializes the matcher, portfolio and metric pipeline (OFI
// window and CVD) in place under the exclusive lock, preserving every
// component's instance identity.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matcher.Reset()
	e.pipeline.Reset()
}

// UpdateSettings applies the user-visible settings toggle (currently:
// fees on/off) under the exclusive lock.
func (e *Engine) UpdateSettings(settings Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pf.SetFeesEnabled(settings.FeesEnabled)
}

// Order returns a copy of the order with id, if known.
func (e *Engine) Order(id string) (common.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matcher.Order(id)
}
