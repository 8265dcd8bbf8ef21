package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/saiputravu/microstructure/internal/book"
	"github.com/saiputravu/microstructure/internal/common"
)

// BinanceSource is the concrete Source: a REST depth-snapshot fetch plus a
// multiplexed depth-diff/trade WebSocket stream, exactly the two upstream
// calls named in the External Interfaces section.
type BinanceSource struct {
	rest   *resty.Client
	wsBase string
}

// NewBinanceSource builds a BinanceSource pointed at restBaseURL (the
// depth-snapshot REST host) and wsBaseURL (the combined-stream WebSocket
// host, e.g. "wss://stream.binance.com:9443").
func NewBinanceSource(restBaseURL, wsBaseURL string) *BinanceSource {
	client := resty.New().SetBaseURL(restBaseURL)
	return &BinanceSource{rest: client, wsBase: wsBaseURL}
}

type depthSnapshotResponse struct {
	LastUpdateID uint64     `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// LoadSnapshot issues GET /api/v3/depth?symbol=...&limit=depth.
func (s *BinanceSource) LoadSnapshot(ctx context.Context, symbol string, depth int) (book.Snapshot, error) {
	var out depthSnapshotResponse
	resp, err := s.rest.R().
		SetContext(ctx).
		SetQueryParam("symbol", strings.ToUpper(symbol)).
		SetQueryParam("limit", strconv.Itoa(depth)).
		SetResult(&out).
		Get("/api/v3/depth")
	if err != nil {
		return book.Snapshot{}, fmt.Errorf("feed: snapshot fetch: %w", err)
	}
	if resp.IsError() {
		return book.Snapshot{}, fmt.Errorf("feed: snapshot fetch: status %s", resp.Status())
	}

	bids, err := parseLevels(out.Bids)
	if err != nil {
		return book.Snapshot{}, fmt.Errorf("%w: %v", common.ErrParseFailure, err)
	}
	asks, err := parseLevels(out.Asks)
	if err != nil {
		return book.Snapshot{}, fmt.Errorf("%w: %v", common.ErrParseFailure, err)
	}

	return book.Snapshot{
		LastUpdateID: out.LastUpdateID,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

func parseLevels(raw [][]string) ([][2]float64, error) {
	out := make([][2]float64, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) != 2 {
			return nil, fmt.Errorf("malformed level %v", lvl)
		}
		price, err := strconv.ParseFloat(lvl[0], 64)
		if err != nil {
			return nil, err
		}
		qty, err := strconv.ParseFloat(lvl[1], 64)
		if err != nil {
			return nil, err
		}
		out = append(out, [2]float64{price, qty})
	}
	return out, nil
}

type combinedStreamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type depthDiffPayload struct {
	FirstUpdateID uint64     `json:"U"`
	LastUpdateID  uint64     `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

type tradePayload struct {
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	BuyerIsMaker bool   `json:"m"`
}

// Stream dials the combined stream
// "<wsBase>/stream?streams=<symbol>@depth@100ms/<symbol>@trade" and
// demultiplexes each envelope by its "stream" field into Event values.
// The returned channel is closed when ctx is cancelled or the connection
// drops; callers treat either as common.ErrFeedDisconnect.
func (s *BinanceSource) Stream(ctx context.Context, symbol string) (<-chan Event, error) {
	lower := strings.ToLower(symbol)
	url := fmt.Sprintf("%s/stream?streams=%s@depth@100ms/%s@trade", s.wsBase, lower, lower)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFeedDisconnect, err)
	}

	out := make(chan Event, 256)
	go func() {
		defer close(out)
		defer conn.Close()

		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("symbol", symbol).Msg("feed stream read failed")
				return
			}

			var env combinedStreamEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				log.Warn().Err(err).Msg("feed: malformed stream envelope, skipping")
				continue
			}

			event, ok, err := decodeEnvelope(env)
			if err != nil {
				log.Warn().Err(err).Str("stream", env.Stream).Msg("feed: malformed payload, skipping")
				continue
			}
			if !ok {
				continue
			}

			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func decodeEnvelope(env combinedStreamEnvelope) (Event, bool, error) {
	switch {
	case strings.Contains(env.Stream, "depth"):
		var d depthDiffPayload
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Event{}, false, err
		}
		bids, err := parseLevels(d.Bids)
		if err != nil {
			return Event{}, false, err
		}
		asks, err := parseLevels(d.Asks)
		if err != nil {
			return Event{}, false, err
		}
		return Event{
			Kind: DepthUpdate,
			Depth: book.DepthEvent{
				FirstUpdateID: d.FirstUpdateID,
				LastUpdateID:  d.LastUpdateID,
				Bids:          bids,
				Asks:          asks,
			},
		}, true, nil

	case strings.Contains(env.Stream, "trade"):
		var tr tradePayload
		if err := json.Unmarshal(env.Data, &tr); err != nil {
			return Event{}, false, err
		}
		price, err := strconv.ParseFloat(tr.Price, 64)
		if err != nil {
			return Event{}, false, err
		}
		qty, err := strconv.ParseFloat(tr.Quantity, 64)
		if err != nil {
			return Event{}, false, err
		}
		return Event{
			Kind: TradeUpdate,
			Trade: common.TapeEvent{
				Price:        price,
				Quantity:     qty,
				BuyerIsMaker: tr.BuyerIsMaker,
			},
		}, true, nil

	default:
		return Event{}, false, nil
	}
}
