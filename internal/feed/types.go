// Package feed supplies the local book replica and matcher with exchange
// data: a REST depth snapshot fetch plus a streamed depth-diff/trade feed,
// driven by a reconnecting session state machine.
package feed

import (
	"context"

	"github.com/saiputravu/microstructure/internal/book"
	"github.com/saiputravu/microstructure/internal/common"
)

// EventKind distinguishes the two event types multiplexed on Source.Stream.
type EventKind int

const (
	DepthUpdate EventKind = iota
	TradeUpdate
)

// Event is one item off the multiplexed stream: exactly one of Depth or
// Trade is populated, selected by Kind.
type Event struct {
	Kind  EventKind
	Depth book.DepthEvent
	Trade common.TapeEvent
}

// Source is the external feed collaborator the book replica and matcher
// pull data from (spec's External Interfaces section): a REST snapshot
// fetch and a streamed multiplexed depth+trade feed.
type Source interface {
	LoadSnapshot(ctx context.Context, symbol string, depth int) (book.Snapshot, error)
	Stream(ctx context.Context, symbol string) (<-chan Event, error)
}

// State is the feed session's position in its reconnect/resync lifecycle.
type State int

const (
	Disconnected State = iota
	SnapshotLoading
	Bridging
	Streaming
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case SnapshotLoading:
		return "SNAPSHOT_LOADING"
	case Bridging:
		return "BRIDGING"
	case Streaming:
		return "STREAMING"
	default:
		return "UNKNOWN"
	}
}
