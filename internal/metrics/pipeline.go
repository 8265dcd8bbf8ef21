package metrics

import (
	"sync"

	"github.com/saiputravu/microstructure/internal/book"
)

// ofiWindowCapacity is the OFI window's capacity (spec §3): bounded
// ordered sequence of per-step contributions, oldest evicted on overflow.
const ofiWindowCapacity = 50

// Pipeline is the stateful half of the metric subsystem: it turns the
// book replica's top-of-book transitions into OFI contributions and the
// trade tape into a CVD accumulator. It implements book.OFIObserver.
type Pipeline struct {
	mu sync.Mutex

	ofiWindow []float64 // ring buffer, oldest at index 0
	cvd       float64
}

// NewPipeline returns a pipeline with an empty OFI window and zero CVD.
func NewPipeline() *Pipeline {
	return &Pipeline{
		ofiWindow: make([]float64, 0, ofiWindowCapacity),
	}
}

// OnTopOfBookChange implements book.OFIObserver: it computes the OFI step
// contribution from the previous and current top-of-book and pushes it
// onto the window, evicting the oldest entry at capacity (spec §4.3).
func (p *Pipeline) OnTopOfBookChange(prev, curr book.TopOfBook) {
	if prev.BidPrice <= 0 || prev.AskPrice <= 0 || curr.BidPrice <= 0 || curr.AskPrice <= 0 {
		return
	}

	step := OFIStep(
		curr.BidPrice, curr.BidQty, prev.BidPrice, prev.BidQty,
		curr.AskPrice, curr.AskQty, prev.AskPrice, prev.AskQty,
	)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushLocked(step)
}

func (p *Pipeline) pushLocked(step float64) {
	if len(p.ofiWindow) == ofiWindowCapacity {
		copy(p.ofiWindow, p.ofiWindow[1:])
		p.ofiWindow[ofiWindowCapacity-1] = step
		return
	}
	p.ofiWindow = append(p.ofiWindow, step)
}

// OnTrade updates the CVD accumulator from one trade-tape event:
// buyer-is-taker (buyerIsMaker == false) adds qty, buyer-is-maker
// subtracts it (spec §4.3).
func (p *Pipeline) OnTrade(qty float64, buyerIsMaker bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if buyerIsMaker {
		p.cvd -= qty
	} else {
		p.cvd += qty
	}
}

// OFI is the sum over the current OFI window.
func (p *Pipeline) OFI() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var sum float64
	for _, v := range p.ofiWindow {
		sum += v
	}
	return sum
}

// CVD is the current cumulative volume delta.
func (p *Pipeline) CVD() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cvd
}

// WindowLen reports the current OFI window length (invariant: <= 50).
func (p *Pipeline) WindowLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ofiWindow)
}

// Reset clears the OFI window and CVD accumulator. OFI Window and CVD
// are process-lifetime accumulators; reset is a user-visible operation
// (spec §3).
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ofiWindow = p.ofiWindow[:0]
	p.cvd = 0
}
