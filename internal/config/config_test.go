package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, 13, cfg.Ladder.SnapshotDepth)
	assert.Equal(t, 10, cfg.Ladder.BroadcastDepth)
	assert.NoError(t, cfg.Validate())
}

func TestMakerTakerFeeRateConversion(t *testing.T) {
	m := MatchingConfig{MakerFeeBps: 2, TakerFeeBps: 4}
	assert.Equal(t, 0.0002, m.MakerFeeRate())
	assert.Equal(t, 0.0004, m.TakerFeeRate())
}

func TestValidateRejectsBackoffBelowOneSecond(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Feed.MinReconnectBackoff = 0
	assert.Error(t, cfg.Validate())
}
