// Package config defines runtime configuration for the microstructure
// engine. Config is loaded from a YAML file with environment variable
// overrides, following the pattern used elsewhere in the retrieval
// pack's bots (a mapstructure-tagged struct read through viper).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration, mapping directly to the YAML
// file structure.
type Config struct {
	Symbol   string         `mapstructure:"symbol"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Ladder   LadderConfig   `mapstructure:"ladder"`
	Matching MatchingConfig `mapstructure:"matching"`
	Account  AccountConfig  `mapstructure:"account"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// FeedConfig points at the upstream REST snapshot host and WebSocket
// stream host, plus the continuity mode and a reconnect floor.
// MinReconnectBackoff is checked by Validate (>= 1s) but is not passed
// to feed.Session, which always uses its own fixed one-second floor.
type FeedConfig struct {
	RESTBaseURL         string        `mapstructure:"rest_base_url"`
	WSBaseURL           string        `mapstructure:"ws_base_url"`
	SnapshotDepth       int           `mapstructure:"snapshot_depth"`
	StrictContinuity    bool          `mapstructure:"strict_continuity"`
	MinReconnectBackoff time.Duration `mapstructure:"min_reconnect_backoff"`
}

// LadderConfig controls the depth and publish cadence of the downstream
// ladder payload; two call sites (an on-demand snapshot and a periodic
// broadcast) may use different depths, so both are configurable.
type LadderConfig struct {
	SnapshotDepth     int           `mapstructure:"snapshot_depth"`
	BroadcastDepth    int           `mapstructure:"broadcast_depth"`
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
}

// MatchingConfig tunes the paper matcher's simulated submission latency
// and fee model.
type MatchingConfig struct {
	MinLatency  time.Duration `mapstructure:"min_latency"`
	MaxLatency  time.Duration `mapstructure:"max_latency"`
	MakerFeeBps float64       `mapstructure:"maker_fee_bps"`
	TakerFeeBps float64       `mapstructure:"taker_fee_bps"`
	FeesEnabled bool          `mapstructure:"fees_enabled"`
}

// AccountConfig seeds the paper portfolio.
type AccountConfig struct {
	InitialQuoteUSD float64 `mapstructure:"initial_quote_usd"`
}

// LoggingConfig controls zerolog's level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// MakerFeeRate and TakerFeeRate convert the configured basis-point fee
// rates into the fractional rate the portfolio package expects.
func (m MatchingConfig) MakerFeeRate() float64 { return m.MakerFeeBps / 10000 }
func (m MatchingConfig) TakerFeeRate() float64 { return m.TakerFeeBps / 10000 }

// defaults seeds viper with the values the original system hard-coded,
// so a config file only needs to override what differs.
func defaults(v *viper.Viper) {
	v.SetDefault("symbol", "BTCUSDT")
	v.SetDefault("feed.rest_base_url", "https://api.binance.com")
	v.SetDefault("feed.ws_base_url", "wss://stream.binance.com:9443")
	v.SetDefault("feed.snapshot_depth", 1000)
	v.SetDefault("feed.strict_continuity", false)
	v.SetDefault("feed.min_reconnect_backoff", time.Second)
	v.SetDefault("ladder.snapshot_depth", 13)
	v.SetDefault("ladder.broadcast_depth", 10)
	v.SetDefault("ladder.broadcast_interval", 250*time.Millisecond)
	v.SetDefault("matching.min_latency", 50*time.Millisecond)
	v.SetDefault("matching.max_latency", 200*time.Millisecond)
	v.SetDefault("matching.maker_fee_bps", 2.0)
	v.SetDefault("matching.taker_fee_bps", 4.0)
	v.SetDefault("matching.fees_enabled", true)
	v.SetDefault("account.initial_quote_usd", 100000.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
}

// Load reads config from path (YAML), falling back to defaults() for
// anything unset, with MICROSTRUCTURE_* environment variables overriding
// file values (e.g. MICROSTRUCTURE_SYMBOL, MICROSTRUCTURE_FEED_WS_BASE_URL).
// A missing file at path is not an error: defaults alone are a valid
// configuration for the public Binance endpoints.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("MICROSTRUCTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, isMissing := err.(viper.ConfigFileNotFoundError); !isMissing {
				if os.IsNotExist(err) {
					isMissing = true
				}
				if !isMissing {
					return nil, fmt.Errorf("config: read %s: %w", path, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.Feed.RESTBaseURL == "" || c.Feed.WSBaseURL == "" {
		return fmt.Errorf("feed.rest_base_url and feed.ws_base_url are required")
	}
	if c.Feed.MinReconnectBackoff < time.Second {
		return fmt.Errorf("feed.min_reconnect_backoff must be >= 1s")
	}
	if c.Matching.MinLatency < 0 || c.Matching.MaxLatency < c.Matching.MinLatency {
		return fmt.Errorf("matching.min_latency/max_latency must satisfy 0 <= min <= max")
	}
	if c.Account.InitialQuoteUSD <= 0 {
		return fmt.Errorf("account.initial_quote_usd must be > 0")
	}
	return nil
}
