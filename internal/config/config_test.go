package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/vwbands/internal/bands"
)

const sampleConfig = `
binance:
  api_key: key
  api_secret: secret
trading:
  symbols: [BTCUSDT, ETHUSDT]
  interval: 5m
bands:
  deviation_period: 720
  lower_factor2_multiplier: 4.25
  stdev_mode: rolling
analysis:
  interval_seconds: 15
storage:
  type: influxdb
  url: http://localhost:8086
  token: token
  organization: org
  bucket: candles
log:
  level: info
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, "5m", cfg.Trading.Interval)
	assert.Equal(t, 1500, cfg.Trading.HistoryLimit)
	assert.Equal(t, 15, cfg.Analysis.IntervalSeconds)
	assert.Equal(t, 3000, cfg.Analysis.Lookback)
	assert.Equal(t, 70.0, cfg.Analysis.SignalThresholds.StrongBuy)

	params := cfg.Bands.Params()
	assert.Equal(t, bands.Params{
		VolumePeriod:           180,
		DeviationPeriod:        720,
		UpperMultiplier1:       2.25,
		UpperMultiplier2:       4.25,
		LowerMultiplier1:       2.25,
		LowerFactor2Multiplier: 4.25,
		StdevMode:              bands.StdevRolling,
	}, params)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("trading: [unterminated"))
	assert.Error(t, err)
}

func TestDefault_MatchesCoreDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, bands.DefaultParams(), cfg.Bands.Params())
	assert.Equal(t, "influxdb", cfg.Storage.Type)
	assert.Equal(t, "1m", cfg.Trading.Interval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"memory storage", func(c *Config) { c.Storage.Type = "memory" }, false},
		{"no symbols", func(c *Config) { c.Trading.Symbols = nil }, true},
		{"influx without url", func(c *Config) { c.Storage.URL = "" }, true},
		{"unknown storage", func(c *Config) { c.Storage.Type = "redis" }, true},
		{"bad stdev mode", func(c *Config) { c.Bands.StdevMode = "fast" }, true},
		{"negative period", func(c *Config) { c.Bands.VolumePeriod = -1 }, true},
		{"short lookback", func(c *Config) { c.Analysis.Lookback = 1 }, true},
		{"quote in symbol", func(c *Config) { c.Trading.Symbols = []string{`BTC") |> drop() //`} }, true},
		{"lowercase symbol", func(c *Config) { c.Trading.Symbols = []string{"btcusdt"} }, true},
		{"bad interval", func(c *Config) { c.Trading.Interval = `1m"` }, true},
		{"weekly interval", func(c *Config) { c.Trading.Interval = "1w" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(sampleConfig))
			require.NoError(t, err)
			tt.modify(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestParse_ExplicitZeroMultiplier(t *testing.T) {
	cfg, err := Parse([]byte("bands:\n  lower_factor2_multiplier: 0\n  upper_multiplier_2: 0\n"))
	require.NoError(t, err)

	params := cfg.Bands.Params()
	assert.Equal(t, 0.0, params.LowerFactor2Multiplier)
	assert.Equal(t, 0.0, params.UpperMultiplier2)
	assert.Equal(t, bands.DefaultUpperMultiplier1, params.UpperMultiplier1)
	assert.Equal(t, bands.DefaultLowerMultiplier1, params.LowerMultiplier1)
}

func TestBandsConfig_ParamsWithoutDefaults(t *testing.T) {
	assert.Equal(t, bands.DefaultLowerFactor2Multiplier, BandsConfig{}.Params().LowerFactor2Multiplier)
}
