// Package ladder builds the immutable downstream payload combining the
// book replica's top-N levels, the derived metric vector, and an optional
// portfolio snapshot (External Interfaces: the periodic broadcast shape).
package ladder

import (
	"github.com/saiputravu/microstructure/internal/book"
	"github.com/saiputravu/microstructure/internal/metrics"
	"github.com/saiputravu/microstructure/internal/portfolio"
)

// MetricVector is the closed set of derived metrics carried on every
// ladder payload (spec's metric vector: imb/spread/mid/micro/ofi/cvd).
type MetricVector struct {
	Imbalance float64 `json:"imb"`
	Spread    float64 `json:"spread"`
	Mid       float64 `json:"mid"`
	Micro     float64 `json:"micro"`
	OFI       float64 `json:"ofi"`
	CVD       float64 `json:"cvd"`
}

// Payload is one immutable snapshot of the ladder: a value type, not a
// pointer into live book state, so it is safe to hand to a publisher
// goroutine after the exclusive lock is released.
type Payload struct {
	Symbol    string              `json:"symbol"`
	Bids      [][2]float64        `json:"bids"`
	Asks      [][2]float64        `json:"asks"`
	Metrics   MetricVector        `json:"metrics"`
	Portfolio *portfolio.Snapshot `json:"portfolio,omitempty"`
}

// Build snapshots the top depth levels of b on both sides, computes the
// metric vector from the pipeline's current state, and optionally embeds
// a portfolio snapshot taken at the current mid price. depth is a
// parameter rather than a package constant because two call sites in the
// original system use different depths (a REST snapshot endpoint at 13,
// the periodic broadcaster at 10).
func Build(symbol string, b *book.Book, pipeline *metrics.Pipeline, depth int, pf *portfolio.Portfolio, openOrders int) Payload {
	bids := b.TopBids(depth)
	asks := b.TopAsks(depth)

	bestBid, bestBidQty, haveBid := b.BestBid()
	bestAsk, bestAskQty, haveAsk := b.BestAsk()

	vector := MetricVector{
		Imbalance: metrics.Imbalance(bids, asks),
		Spread:    metrics.Spread(bestBid, bestAsk, haveBid, haveAsk),
		Mid:       metrics.Mid(bestBid, bestAsk, haveBid, haveAsk),
		Micro:     metrics.Microprice(bestBid, bestAsk, bestBidQty, bestAskQty, haveBid, haveAsk),
		OFI:       pipeline.OFI(),
		CVD:       pipeline.CVD(),
	}

	payload := Payload{
		Symbol:  symbol,
		Bids:    bids,
		Asks:    asks,
		Metrics: vector,
	}

	if pf != nil {
		mark := vector.Mid
		snap := pf.TakeSnapshot(mark, openOrders)
		payload.Portfolio = &snap
	}

	return payload
}
