package matcher

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiputravu/microstructure/internal/book"
	"github.com/saiputravu/microstructure/internal/common"
	"github.com/saiputravu/microstructure/internal/portfolio"
)

func zeroLatency() LatencySource {
	return func() time.Duration { return 0 }
}

func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + string(rune('0'+n))
	}
}

func bookWithAsks(levels ...[2]float64) *book.Book {
	b := book.New(nil)
	b.LoadSnapshot(book.Snapshot{
		LastUpdateID: 1,
		Bids:         [][2]float64{{99, 10}},
		Asks:         levels[:],
	})
	return b
}

func bookWithBids(levels ...[2]float64) *book.Book {
	b := book.New(nil)
	b.LoadSnapshot(book.Snapshot{
		LastUpdateID: 1,
		Bids:         levels[:],
		Asks:         [][2]float64{{200, 10}},
	})
	return b
}

func TestMarketBuyWalksTheBook(t *testing.T) {
	// spec §8 scenario 5: market buy qty 3 against asks 1@100, 2@101.
	pf := portfolio.New(100000, 0.0002, 0.0004)
	m := New("BTCUSDT", pf, WithLatency(zeroLatency()), WithIDSource(seqIDs("o")))
	b := bookWithAsks([2]float64{100, 1}, [2]float64{101, 2})

	id, err := m.PlaceOrder(context.Background(), common.Buy, common.MarketOrder, 3, 0)
	require.NoError(t, err)

	err = m.ExecuteMarket(id, b)
	require.NoError(t, err)

	order, ok := m.Order(id)
	require.True(t, ok)
	assert.Equal(t, common.Filled, order.Status)
	assert.InDelta(t, 3.0, order.FilledQuantity, 1e-9)
	assert.InDelta(t, 100.66666666666667, order.AvgFillPrice, 1e-6)
	assert.Equal(t, 3.0, pf.BaseBalance())
}

func TestMarketBuyPartialFillReturnsInsufficientLiquidityWarning(t *testing.T) {
	pf := portfolio.New(100000, 0, 0)
	m := New("BTCUSDT", pf, WithLatency(zeroLatency()), WithIDSource(seqIDs("o")))
	b := bookWithAsks([2]float64{100, 1})

	id, err := m.PlaceOrder(context.Background(), common.Buy, common.MarketOrder, 5, 0)
	require.NoError(t, err)

	err = m.ExecuteMarket(id, b)
	assert.True(t, errors.Is(err, common.ErrInsufficientLiquidity))

	order, _ := m.Order(id)
	assert.Equal(t, common.Filled, order.Status)
	assert.InDelta(t, 1.0, order.FilledQuantity, 1e-9)
}

func TestMarketSellWalksBidsNonMutating(t *testing.T) {
	pf := portfolio.New(100000, 0, 0)
	m := New("BTCUSDT", pf, WithLatency(zeroLatency()), WithIDSource(seqIDs("o")))
	b := bookWithBids([2]float64{100, 2}, [2]float64{99, 5})

	id, err := m.PlaceOrder(context.Background(), common.Sell, common.MarketOrder, 2, 0)
	require.NoError(t, err)
	require.NoError(t, m.ExecuteMarket(id, b))

	// the live book must be untouched: paper matcher never mutates it.
	price, qty, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, 100.0, price)
	assert.Equal(t, 2.0, qty)
}

func TestLimitBuyFillsWhenTradePricesThrough(t *testing.T) {
	// spec §8 scenario 6: BUY limit at 100, a trade prints at 99 (through
	// our price) -> fills us as maker at our limit price.
	pf := portfolio.New(100000, 0.0002, 0.0004)
	pf.SetFeesEnabled(false)
	m := New("BTCUSDT", pf, WithLatency(zeroLatency()), WithIDSource(seqIDs("o")))

	id, err := m.PlaceOrder(context.Background(), common.Buy, common.LimitOrder, 1, 100)
	require.NoError(t, err)

	m.AdvanceLimitOrders(common.TapeEvent{Price: 99, Quantity: 1, BuyerIsMaker: false})

	order, _ := m.Order(id)
	assert.Equal(t, common.Filled, order.Status)
	assert.Equal(t, 100.0, order.AvgFillPrice)
	assert.Equal(t, 100000-100.0, pf.QuoteBalance())
}

func TestLimitBuyAdvancesByProcessedVolumeAtSamePrice(t *testing.T) {
	pf := portfolio.New(100000, 0, 0)
	m := New("BTCUSDT", pf, WithLatency(zeroLatency()), WithIDSource(seqIDs("o")))

	id, err := m.PlaceOrder(context.Background(), common.Buy, common.LimitOrder, 1, 100)
	require.NoError(t, err)

	m.AdvanceLimitOrders(common.TapeEvent{Price: 100, Quantity: 0.5, BuyerIsMaker: true})
	order, _ := m.Order(id)
	assert.Equal(t, common.Open, order.Status)
	assert.InDelta(t, 0.5, order.ProcessedVolume, 1e-9)

	m.AdvanceLimitOrders(common.TapeEvent{Price: 100, Quantity: 0.6, BuyerIsMaker: true})
	order, _ = m.Order(id)
	assert.Equal(t, common.Filled, order.Status)
}

func TestLimitBuyAtSamePriceButBuyerAggressingDoesNotAdvance(t *testing.T) {
	pf := portfolio.New(100000, 0, 0)
	m := New("BTCUSDT", pf, WithLatency(zeroLatency()), WithIDSource(seqIDs("o")))

	id, err := m.PlaceOrder(context.Background(), common.Buy, common.LimitOrder, 1, 100)
	require.NoError(t, err)

	m.AdvanceLimitOrders(common.TapeEvent{Price: 100, Quantity: 10, BuyerIsMaker: false})
	order, _ := m.Order(id)
	assert.Equal(t, common.Open, order.Status)
	assert.Equal(t, 0.0, order.ProcessedVolume)
}

func TestPlaceOrderInvalidInputRejectedSynchronously(t *testing.T) {
	pf := portfolio.New(100000, 0, 0)
	m := New("BTCUSDT", pf, WithLatency(zeroLatency()))

	_, err := m.PlaceOrder(context.Background(), common.Buy, common.LimitOrder, 0, 100)
	assert.ErrorIs(t, err, common.ErrInvalidOrderInput)

	_, err = m.PlaceOrder(context.Background(), common.Buy, common.LimitOrder, 1, 0)
	assert.ErrorIs(t, err, common.ErrInvalidOrderInput)

	assert.Equal(t, 0, m.OpenOrderCount())
}

func TestPlaceOrderCancelledDuringLatencyMutatesNoState(t *testing.T) {
	pf := portfolio.New(100000, 0, 0)
	m := New("BTCUSDT", pf, WithLatency(func() time.Duration { return time.Hour }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.PlaceOrder(ctx, common.Buy, common.LimitOrder, 1, 100)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.OpenOrderCount())
	assert.Equal(t, 100000.0, pf.QuoteBalance())
}

func TestCancelAllThenPlaceNewLimitsOpenCountInvariant(t *testing.T) {
	// spec §8 invariant 7: cancel_all then submit M limits -> open count == M.
	pf := portfolio.New(100000, 0, 0)
	m := New("BTCUSDT", pf, WithLatency(zeroLatency()), WithIDSource(seqIDs("o")))

	for i := 0; i < 3; i++ {
		_, err := m.PlaceOrder(context.Background(), common.Buy, common.LimitOrder, 1, float64(90+i))
		require.NoError(t, err)
	}
	require.Equal(t, 3, m.OpenOrderCount())

	cancelled := m.CancelAll()
	assert.Equal(t, 3, cancelled)
	assert.Equal(t, 0, m.OpenOrderCount())

	for i := 0; i < 5; i++ {
		_, err := m.PlaceOrder(context.Background(), common.Sell, common.LimitOrder, 1, float64(110+i))
		require.NoError(t, err)
	}
	assert.Equal(t, 5, m.OpenOrderCount())
}

func TestResetPreservesMatcherIdentityAndClearsState(t *testing.T) {
	pf := portfolio.New(100000, 0, 0)
	m := New("BTCUSDT", pf, WithLatency(zeroLatency()), WithIDSource(seqIDs("o")))
	_, err := m.PlaceOrder(context.Background(), common.Buy, common.LimitOrder, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 1, m.OpenOrderCount())

	m.Reset()

	assert.Equal(t, 0, m.OpenOrderCount())
	assert.Equal(t, 100000.0, pf.QuoteBalance())
}

func TestCancelUnknownOrNotOpenOrder(t *testing.T) {
	pf := portfolio.New(100000, 0, 0)
	m := New("BTCUSDT", pf, WithLatency(zeroLatency()), WithIDSource(seqIDs("o")))

	err := m.Cancel("missing")
	assert.ErrorIs(t, err, common.ErrOrderNotFound)

	id, err := m.PlaceOrder(context.Background(), common.Buy, common.MarketOrder, 1, 0)
	require.NoError(t, err)
	err = m.Cancel(id)
	assert.ErrorIs(t, err, common.ErrOrderNotOpen)
}

func TestUniformLatencyBoundsAndDeterminism(t *testing.T) {
	src := UniformLatency(50, 200, rand.New(rand.NewSource(1)))
	for i := 0; i < 50; i++ {
		d := src()
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}

	first := UniformLatency(50, 200, rand.New(rand.NewSource(7)))
	second := UniformLatency(50, 200, rand.New(rand.NewSource(7)))
	for i := 0; i < 50; i++ {
		assert.Equal(t, first(), second())
	}
}
