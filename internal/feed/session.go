package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"golang.org/x/time/rate"

	"github.com/saiputravu/microstructure/internal/book"
	"github.com/saiputravu/microstructure/internal/common"
)

// minReconnectBackoff is the floor on how often Session may attempt a
// fresh snapshot+stream cycle after a fatal book error or dropped
// connection (External Interfaces: "backoff >= 1s, retry indefinitely").
const minReconnectBackoff = time.Second

// TradeHandler is invoked once per trade-tape event read off the stream.
type TradeHandler func(common.TapeEvent)

// SnapshotLoader seeds the caller's book replica from snap. DepthHandler
// applies one depth-diff event and returns the book's verdict
// (nil/ErrBridgingFailed/ErrIDGap/ErrCrossedBook/other), exactly the
// shape of engine.Engine.LoadSnapshot and engine.Engine.HandleDepthEvent
// — Session depends on these function types rather than on *book.Book or
// *engine.Engine directly, so a caller that owns a single exclusive lock
// spanning book mutation (per the concurrency model) can apply it inside
// the callback without Session ever bypassing that lock.
type SnapshotLoader func(book.Snapshot)
type DepthHandler func(event book.DepthEvent, strict bool) error

// Session drives the Disconnected -> SnapshotLoading -> Bridging ->
// Streaming state machine against a Source, routing depth events through
// onDepth and trades through onTrade. It is supervised by a tomb.Tomb in
// the same style the teacher's internal/net/server.go and
// internal/worker.go use to run and tear down long-lived goroutines:
// Run starts the loop under t.Go, and Stop/ctx cancellation propagates
// through t.Dying() to unwind it cleanly.
type Session struct {
	source Source
	symbol string
	depth  int
	strict bool

	loadSnapshot SnapshotLoader
	onDepth      DepthHandler
	onTrade      TradeHandler

	limiter *rate.Limiter

	mu    sync.Mutex
	state State

	t *tomb.Tomb
}

// SessionOption configures a Session at construction.
type SessionOption func(*Session)

// WithStrictContinuity makes ApplyDiff require exact U == last+1 instead
// of the bridging predicate. The original listener runs with strict=false;
// this is exposed for callers (tests, alternate feeds) that want the
// stricter mode.
func WithStrictContinuity() SessionOption {
	return func(s *Session) { s.strict = true }
}

// NewSession builds a Session for symbol against source. loadSnapshot and
// onDepth route into the caller's book replica (typically
// engine.Engine.LoadSnapshot / engine.Engine.HandleDepthEvent); onTrade
// routes trade-tape prints onward (typically engine.Engine.HandleTradeEvent).
// depth bounds the initial snapshot fetch.
func NewSession(source Source, symbol string, depth int, loadSnapshot SnapshotLoader, onDepth DepthHandler, onTrade TradeHandler, opts ...SessionOption) *Session {
	s := &Session{
		source:       source,
		symbol:       symbol,
		depth:        depth,
		loadSnapshot: loadSnapshot,
		onDepth:      onDepth,
		onTrade:      onTrade,
		limiter:      rate.NewLimiter(rate.Every(minReconnectBackoff), 1),
		state:        Disconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports the session's current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run starts the session loop under a tomb-supervised goroutine and
// blocks until either ctx is cancelled or the loop dies. Callers
// typically run this in its own goroutine alongside a periodic publisher
// (External Interfaces: "one task drives the feed, one periodic task
// publishes snapshots").
func (s *Session) Run(ctx context.Context) error {
	var dyingCtx context.Context
	s.t, dyingCtx = tomb.WithContext(ctx)

	s.t.Go(func() error {
		return s.loop(dyingCtx)
	})

	return s.t.Wait()
}

// Stop requests the session to unwind; Run's goroutine returns once the
// in-flight reconnect/stream iteration observes t.Dying().
func (s *Session) Stop() {
	s.t.Kill(nil)
}

func (s *Session) loop(ctx context.Context) error {
	for {
		select {
		case <-s.t.Dying():
			return nil
		default:
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}

		if err := s.connectAndStream(ctx); err != nil {
			log.Error().Err(err).Str("symbol", s.symbol).Msg("feed session cycle ended, reconnecting")
		}

		s.setState(Disconnected)
	}
}

func (s *Session) connectAndStream(ctx context.Context) error {
	s.setState(SnapshotLoading)
	snap, err := s.source.LoadSnapshot(ctx, s.symbol, s.depth)
	if err != nil {
		return err
	}
	s.loadSnapshot(snap)
	log.Info().Str("symbol", s.symbol).Uint64("lastUpdateId", snap.LastUpdateID).Msg("snapshot loaded")

	s.setState(Bridging)
	events, err := s.source.Stream(ctx, s.symbol)
	if err != nil {
		return err
	}

	for {
		select {
		case <-s.t.Dying():
			return nil
		case event, ok := <-events:
			if !ok {
				return common.ErrFeedDisconnect
			}

			switch event.Kind {
			case DepthUpdate:
				if err := s.onDepth(event.Depth, s.strict); err != nil {
					switch {
					case errors.Is(err, common.ErrBridgingFailed):
						continue
					case errors.Is(err, common.ErrIDGap), errors.Is(err, common.ErrCrossedBook):
						return err
					default:
						log.Warn().Err(err).Msg("feed: dropping malformed depth event")
						continue
					}
				}
				if s.State() != Streaming {
					s.setState(Streaming)
				}
			case TradeUpdate:
				if s.onTrade != nil {
					s.onTrade(event.Trade)
				}
			}
		}
	}
}
