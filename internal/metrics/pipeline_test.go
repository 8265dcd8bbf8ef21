package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saiputravu/microstructure/internal/book"
)

func TestPipelineOFIWindowCapAndSum(t *testing.T) {
	p := NewPipeline()

	prev := book.TopOfBook{BidPrice: 100, BidQty: 1, AskPrice: 101, AskQty: 1}
	for i := 0; i < ofiWindowCapacity+10; i++ {
		curr := book.TopOfBook{BidPrice: 100, BidQty: float64(i + 1), AskPrice: 101, AskQty: 1}
		p.OnTopOfBookChange(prev, curr)
		prev = curr
	}

	assert.LessOrEqual(t, p.WindowLen(), 50)
	assert.Equal(t, 50, p.WindowLen())
	// every step after the first grows the bid qty by 1 at an unchanged
	// price (e_bid = +1, e_ask = 0), and the window keeps only those.
	assert.InDelta(t, 50.0, p.OFI(), 1e-9)
}

func TestPipelineSkipsWhenEitherSideEmpty(t *testing.T) {
	p := NewPipeline()
	prev := book.TopOfBook{BidPrice: 0, AskPrice: 101, AskQty: 1}
	curr := book.TopOfBook{BidPrice: 100, BidQty: 1, AskPrice: 101, AskQty: 1}
	p.OnTopOfBookChange(prev, curr)
	assert.Equal(t, 0, p.WindowLen())
}

func TestPipelineCVDSignConvention(t *testing.T) {
	p := NewPipeline()
	p.OnTrade(2, false) // buyer is taker -> +qty
	p.OnTrade(1, true)  // buyer is maker -> -qty
	assert.InDelta(t, 1.0, p.CVD(), 1e-9)
}

func TestPipelineReset(t *testing.T) {
	p := NewPipeline()
	p.OnTrade(5, false)
	prev := book.TopOfBook{BidPrice: 100, BidQty: 1, AskPrice: 101, AskQty: 1}
	curr := book.TopOfBook{BidPrice: 100.5, BidQty: 2, AskPrice: 101, AskQty: 1}
	p.OnTopOfBookChange(prev, curr)

	p.Reset()
	assert.Equal(t, 0.0, p.CVD())
	assert.Equal(t, 0, p.WindowLen())
	assert.Equal(t, 0.0, p.OFI())
}
