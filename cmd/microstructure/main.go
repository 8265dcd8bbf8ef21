package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/saiputravu/microstructure/internal/config"
	"github.com/saiputravu/microstructure/internal/engine"
	"github.com/saiputravu/microstructure/internal/feed"
	"github.com/saiputravu/microstructure/internal/matcher"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional, defaults apply)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if cfg.Logging.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	eng := engine.New(
		cfg.Symbol,
		cfg.Ladder.BroadcastDepth,
		cfg.Account.InitialQuoteUSD,
		cfg.Matching.MakerFeeRate(),
		cfg.Matching.TakerFeeRate(),
		matcher.WithLatency(matcher.UniformLatency(
			int(cfg.Matching.MinLatency.Milliseconds()),
			int(cfg.Matching.MaxLatency.Milliseconds()),
			nil,
		)),
	)
	eng.UpdateSettings(engine.Settings{FeesEnabled: cfg.Matching.FeesEnabled})

	source := feed.NewBinanceSource(cfg.Feed.RESTBaseURL, cfg.Feed.WSBaseURL)

	var sessionOpts []feed.SessionOption
	if cfg.Feed.StrictContinuity {
		sessionOpts = append(sessionOpts, feed.WithStrictContinuity())
	}
	session := feed.NewSession(
		source,
		cfg.Symbol,
		cfg.Feed.SnapshotDepth,
		eng.LoadSnapshot,
		eng.HandleDepthEvent,
		eng.HandleTradeEvent,
		sessionOpts...,
	)

	t, ctx := tomb.WithContext(ctx)

	t.Go(func() error {
		return session.Run(ctx)
	})
	t.Go(func() error {
		return runPublisher(ctx, eng, cfg)
	})

	log.Info().Str("symbol", cfg.Symbol).Msg("microstructure engine running")

	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("shutdown with error")
	}
}

// runPublisher periodically builds a ladder payload under the Engine's
// exclusive lock and hands it to whatever downstream transport an
// operator wires in (out of scope here; this logs at debug level as a
// placeholder sink).
func runPublisher(ctx context.Context, eng *engine.Engine, cfg *config.Config) error {
	ticker := time.NewTicker(cfg.Ladder.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			payload := eng.LadderPayload(cfg.Ladder.BroadcastDepth)
			log.Debug().
				Float64("mid", payload.Metrics.Mid).
				Float64("ofi", payload.Metrics.OFI).
				Float64("cvd", payload.Metrics.CVD).
				Msg("ladder payload built")
		}
	}
}

