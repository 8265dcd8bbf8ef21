package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiputravu/microstructure/internal/book"
	"github.com/saiputravu/microstructure/internal/common"
	"github.com/saiputravu/microstructure/internal/matcher"
)

func newTestEngine() *Engine {
	return New("BTCUSDT", 10, 100000, 0, 0, matcher.WithLatency(func() time.Duration { return 0 }))
}

func TestHandleDepthEventIDGapPropagatesForResync(t *testing.T) {
	e := newTestEngine()
	e.LoadSnapshot(book.Snapshot{LastUpdateID: 100, Bids: [][2]float64{{99, 1}}, Asks: [][2]float64{{100, 1}}})

	err := e.HandleDepthEvent(book.DepthEvent{FirstUpdateID: 150, LastUpdateID: 151}, true)
	assert.ErrorIs(t, err, common.ErrIDGap)
}

func TestHandleDepthEventBridgingFailureSwallowed(t *testing.T) {
	e := newTestEngine()
	e.LoadSnapshot(book.Snapshot{LastUpdateID: 100, Bids: [][2]float64{{99, 1}}, Asks: [][2]float64{{100, 1}}})

	err := e.HandleDepthEvent(book.DepthEvent{FirstUpdateID: 149, LastUpdateID: 150}, false)
	assert.NoError(t, err)
}

func TestLadderPayloadReflectsBookAndMetrics(t *testing.T) {
	e := newTestEngine()
	e.LoadSnapshot(book.Snapshot{
		LastUpdateID: 1,
		Bids:         [][2]float64{{100, 1}},
		Asks:         [][2]float64{{101, 1}},
	})

	payload := e.LadderPayload(0)
	assert.Equal(t, "BTCUSDT", payload.Symbol)
	assert.Equal(t, 100.5, payload.Metrics.Mid)
	require.NotNil(t, payload.Portfolio)
	assert.Equal(t, 100000.0, payload.Portfolio.QuoteBalance)
}

func TestSubmitThenExecuteMarketFillsUnderLock(t *testing.T) {
	e := newTestEngine()
	e.LoadSnapshot(book.Snapshot{
		LastUpdateID: 1,
		Bids:         [][2]float64{{99, 10}},
		Asks:         [][2]float64{{100, 1}, {101, 2}},
	})

	id, err := e.Submit(context.Background(), common.Buy, common.MarketOrder, 3, 0)
	require.NoError(t, err)

	require.NoError(t, e.ExecuteMarket(id))

	order, ok := e.Order(id)
	require.True(t, ok)
	assert.Equal(t, common.Filled, order.Status)
}

func TestSubmitInvalidInputRejectedSynchronously(t *testing.T) {
	e := newTestEngine()
	_, err := e.Submit(context.Background(), common.Buy, common.LimitOrder, -1, 100)
	assert.True(t, errors.Is(err, common.ErrInvalidOrderInput))
}

func TestResetClearsOpenOrdersAndMetrics(t *testing.T) {
	e := newTestEngine()
	_, err := e.Submit(context.Background(), common.Buy, common.LimitOrder, 1, 90)
	require.NoError(t, err)
	e.HandleTradeEvent(common.TapeEvent{Price: 100, Quantity: 2, BuyerIsMaker: false})
	require.Equal(t, 2.0, e.LadderPayload(0).Metrics.CVD)

	e.Reset()

	payload := e.LadderPayload(0)
	assert.Equal(t, 0, payload.Portfolio.OpenOrders)
	assert.Equal(t, 0.0, payload.Metrics.CVD)
}

func TestUpdateSettingsTogglesFees(t *testing.T) {
	e := newTestEngine()
	e.UpdateSettings(Settings{FeesEnabled: false})

	e.LoadSnapshot(book.Snapshot{
		LastUpdateID: 1,
		Bids:         [][2]float64{{99, 10}},
		Asks:         [][2]float64{{100, 10}},
	})
	id, err := e.Submit(context.Background(), common.Buy, common.MarketOrder, 1, 0)
	require.NoError(t, err)
	require.NoError(t, e.ExecuteMarket(id))

	payload := e.LadderPayload(0)
	assert.Equal(t, 100000-100.0, payload.Portfolio.QuoteBalance)
}
