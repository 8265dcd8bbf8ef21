package book

import (
	"github.com/rs/zerolog/log"

	"github.com/saiputravu/microstructure/internal/common"
)

// TopOfBook is a snapshot of the best bid/ask price and quantity at one
// instant. The book replica diffs consecutive TopOfBook values to drive
// the metric pipeline's per-step OFI (spec §3 "Top-of-Book Memory").
type TopOfBook struct {
	BidPrice, BidQty float64
	AskPrice, AskQty float64
}

// OFIObserver is notified once per applied diff with the top-of-book
// state immediately before and after the diff (spec §4.1 step 6). The
// metric pipeline implements this.
type OFIObserver interface {
	OnTopOfBookChange(prev, curr TopOfBook)
}

// Snapshot is the REST depth snapshot shape from the feed collaborator
// (spec §6): LastUpdateID plus full bid/ask ladders as [price, qty] pairs.
type Snapshot struct {
	LastUpdateID uint64
	Bids         [][2]float64
	Asks         [][2]float64
}

// DepthEvent is one entry from the streamed depth-diff feed (spec §6):
// U/u bound the update-id range this event covers, b/a are deltas.
type DepthEvent struct {
	FirstUpdateID uint64 // U
	LastUpdateID  uint64 // u
	Bids          [][2]float64
	Asks          [][2]float64
}

// Book is the local replica of one symbol's order book.
type Book struct {
	bids *Levels
	asks *Levels

	lastUpdateID uint64
	top          TopOfBook

	observer OFIObserver
}

// New creates an empty, unsynchronized book. Call LoadSnapshot before
// applying diffs.
func New(observer OFIObserver) *Book {
	return &Book{
		bids:     newBidLevels(),
		asks:     newAskLevels(),
		observer: observer,
	}
}

// LoadSnapshot clears both sides, repopulates them from snap, and seeds
// the top-of-book memory without emitting an OFI contribution (spec
// §4.1 load_snapshot).
func (b *Book) LoadSnapshot(snap Snapshot) {
	b.bids = newBidLevels()
	b.asks = newAskLevels()

	for _, lvl := range snap.Bids {
		if lvl[1] > 0 {
			b.bids.Set(&PriceLevel{Price: lvl[0], Qty: lvl[1]})
		}
	}
	for _, lvl := range snap.Asks {
		if lvl[1] > 0 {
			b.asks.Set(&PriceLevel{Price: lvl[0], Qty: lvl[1]})
		}
	}

	b.lastUpdateID = snap.LastUpdateID
	b.top = b.currentTop()
}

// LastUpdateID reports the sequence id of the last applied snapshot or diff.
func (b *Book) LastUpdateID() uint64 { return b.lastUpdateID }

// ApplyDiff applies one depth-diff event per the spec §4.1 algorithm:
// drop stale events, enforce continuity (strict or bridging), apply the
// bid/ask deltas, advance last_update_id, recompute top-of-book and
// reject a crossed result, then notify the OFI observer.
//
// Returns common.ErrIDGap or common.ErrCrossedBook for conditions the
// caller must treat as fatal-to-session (tear down and resync).
// common.ErrBridgingFailed is non-fatal: skip this event, retry the next.
// A stale event is silently dropped and also returns nil.
func (b *Book) ApplyDiff(event DepthEvent, strict bool) error {
	if event.LastUpdateID <= b.lastUpdateID {
		return nil
	}

	if strict {
		if event.FirstUpdateID != b.lastUpdateID+1 {
			return common.ErrIDGap
		}
	} else {
		if !(event.FirstUpdateID <= b.lastUpdateID+1 && b.lastUpdateID+1 <= event.LastUpdateID) {
			return common.ErrBridgingFailed
		}
	}

	for _, delta := range event.Bids {
		applyDelta(b.bids, delta[0], delta[1])
	}
	for _, delta := range event.Asks {
		applyDelta(b.asks, delta[0], delta[1])
	}

	b.lastUpdateID = event.LastUpdateID

	newTop := b.currentTop()
	if newTop.BidPrice > 0 && newTop.AskPrice > 0 && newTop.BidPrice >= newTop.AskPrice {
		log.Error().
			Float64("bid", newTop.BidPrice).
			Float64("ask", newTop.AskPrice).
			Msg("book crossed after diff, resync required")
		return common.ErrCrossedBook
	}

	if b.observer != nil {
		b.observer.OnTopOfBookChange(b.top, newTop)
	}
	b.top = newTop

	return nil
}

func (b *Book) currentTop() TopOfBook {
	var top TopOfBook
	if lvl, ok := b.bids.Min(); ok {
		top.BidPrice, top.BidQty = lvl.Price, lvl.Qty
	}
	if lvl, ok := b.asks.Min(); ok {
		top.AskPrice, top.AskQty = lvl.Price, lvl.Qty
	}
	return top
}

// BestBid returns the best bid price/qty and whether the bid side is
// non-empty.
func (b *Book) BestBid() (price, qty float64, ok bool) {
	lvl, ok := b.bids.Min()
	if !ok {
		return 0, 0, false
	}
	return lvl.Price, lvl.Qty, true
}

// BestAsk returns the best ask price/qty and whether the ask side is
// non-empty.
func (b *Book) BestAsk() (price, qty float64, ok bool) {
	lvl, ok := b.asks.Min()
	if !ok {
		return 0, 0, false
	}
	return lvl.Price, lvl.Qty, true
}

// TopBids returns up to depth bid levels, best (highest price) first.
func (b *Book) TopBids(depth int) [][2]float64 { return topLevels(b.bids, depth) }

// TopAsks returns up to depth ask levels, best (lowest price) first.
func (b *Book) TopAsks(depth int) [][2]float64 { return topLevels(b.asks, depth) }

// AskLevels exposes the ask side for a market buy's walk-the-book
// execution (spec §4.4). Callers must not mutate the returned levels.
func (b *Book) AskLevels() *Levels { return b.asks }

// BidLevels exposes the bid side for a market sell's walk-the-book
// execution (spec §4.4). Callers must not mutate the returned levels.
func (b *Book) BidLevels() *Levels { return b.bids }
