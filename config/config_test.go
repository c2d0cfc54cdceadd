package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ModeReplay, cfg.Mode)
	assert.Equal(t, 20, cfg.Signal.MAWindow)
	assert.Equal(t, 0.20, cfg.Signal.BandPct)
	assert.Equal(t, 1.3e12, cfg.Signal.MinMcapWon)
	assert.Equal(t, 5e12, cfg.Signal.HighlightMcapWon)
	assert.Equal(t, 0.9, cfg.Signal.TierStep)
	assert.Equal(t, 5000.0, cfg.Leaders.TurnoverThresholdEok)
	assert.Equal(t, "ka10031", cfg.Rank.APIID)
	assert.Equal(t, 15*time.Second, cfg.Rank.Timeout)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}, cfg.Rank.RetryIntervals)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeTempFile(t, `
mode: Replay
test_date: "2025-10-01"
signal:
  ma_window: 5
paths:
  db: /tmp/state.duckdb
  replay_csv: /tmp/ohlcv.csv
rank:
  retry_intervals: ["10ms", "20ms"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeReplay, cfg.Mode)
	assert.Equal(t, "2025-10-01", cfg.TestDate)
	assert.Equal(t, 5, cfg.Signal.MAWindow)
	assert.Equal(t, 0.20, cfg.Signal.BandPct)
	assert.Equal(t, "/tmp/state.duckdb", cfg.Paths.DB)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, cfg.Rank.RetryIntervals)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeTempFile(t, "paths:\n  db: from-file.duckdb\n")
	t.Setenv("KRX_PATHS_DB", "from-env.duckdb")
	t.Setenv("KRX_LEADERS_TURNOVER_THRESHOLD_EOK", "3000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.duckdb", cfg.Paths.DB)
	assert.Equal(t, 3000.0, cfg.Leaders.TurnoverThresholdEok)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Signal, cfg.Signal)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "live" }, "mode"},
		{"bad date", func(c *Config) { c.TestDate = "20250930" }, "test_date"},
		{"window", func(c *Config) { c.Signal.MAWindow = 0 }, "ma_window"},
		{"band", func(c *Config) { c.Signal.BandPct = 1.5 }, "band_pct"},
		{"highlight below min", func(c *Config) { c.Signal.HighlightMcapWon = 1e12 }, "highlight_mcap_won"},
		{"tier step", func(c *Config) { c.Signal.TierStep = 1 }, "tier_step"},
		{"db path", func(c *Config) { c.Paths.DB = "" }, "paths.db"},
		{"rank count", func(c *Config) { c.Rank.Count = 0 }, "rank.count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
