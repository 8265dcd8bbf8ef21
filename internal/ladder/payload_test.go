package ladder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiputravu/microstructure/internal/book"
	"github.com/saiputravu/microstructure/internal/metrics"
	"github.com/saiputravu/microstructure/internal/portfolio"
)

func TestBuildWithoutPortfolioOmitsIt(t *testing.T) {
	pipeline := metrics.NewPipeline()
	b := book.New(pipeline)
	b.LoadSnapshot(book.Snapshot{
		LastUpdateID: 1,
		Bids:         [][2]float64{{100, 2}, {99, 3}},
		Asks:         [][2]float64{{101, 1}, {102, 4}},
	})

	payload := Build("BTCUSDT", b, pipeline, 10, nil, 0)

	assert.Nil(t, payload.Portfolio)
	assert.Equal(t, 100.5, payload.Metrics.Mid)
	assert.Equal(t, 1.0, payload.Metrics.Spread)
	assert.Len(t, payload.Bids, 2)
	assert.Len(t, payload.Asks, 2)
}

func TestBuildWithPortfolioEmbedsSnapshotAtMid(t *testing.T) {
	pipeline := metrics.NewPipeline()
	b := book.New(pipeline)
	b.LoadSnapshot(book.Snapshot{
		LastUpdateID: 1,
		Bids:         [][2]float64{{100, 1}},
		Asks:         [][2]float64{{102, 1}},
	})
	pf := portfolio.New(100000, 0, 0)

	payload := Build("BTCUSDT", b, pipeline, 10, pf, 2)

	require.NotNil(t, payload.Portfolio)
	assert.Equal(t, 101.0, payload.Metrics.Mid)
	assert.Equal(t, 100000.0, payload.Portfolio.Equity)
	assert.Equal(t, 2, payload.Portfolio.OpenOrders)
}

func TestBuildRespectsDepthParameter(t *testing.T) {
	pipeline := metrics.NewPipeline()
	b := book.New(pipeline)
	b.LoadSnapshot(book.Snapshot{
		LastUpdateID: 1,
		Bids:         [][2]float64{{100, 1}, {99, 1}, {98, 1}},
		Asks:         [][2]float64{{101, 1}, {102, 1}, {103, 1}},
	})

	payload := Build("BTCUSDT", b, pipeline, 2, nil, 0)

	assert.Len(t, payload.Bids, 2)
	assert.Len(t, payload.Asks, 2)
}
