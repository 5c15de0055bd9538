package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/trendtrader/ledger"
	"github.com/rustyeddy/trendtrader/market"
	"github.com/rustyeddy/trendtrader/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "XAUUSD", cfg.Symbol)
	assert.Equal(t, time.Minute, cfg.Interval.D())
	assert.Equal(t, 100, cfg.BarCount)
	assert.Equal(t, strategy.Strict, cfg.Strategy.Confirmation)
	assert.Equal(t, 1.0, cfg.Risk.MinStopDistance)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing symbol", func(c *Config) { c.Symbol = "" }, "symbol is required"},
		{"unknown symbol", func(c *Config) { c.Symbol = "EURUSD" }, "unknown symbol"},
		{"zero interval", func(c *Config) { c.Interval = 0 }, "interval must be positive"},
		{"short window", func(c *Config) { c.BarCount = 10 }, "bar_count must be at least 16"},
		{"bad strategy", func(c *Config) { c.Strategy.EMAShort = 30 }, "ema_short must be shorter"},
		{"no risk", func(c *Config) { c.Risk.RiskDollars = 0 }, "risk.risk_dollars must be positive"},
		{"negative stop", func(c *Config) { c.Risk.MinStopDistance = -1 }, "min_stop_distance"},
		{"bad ledger type", func(c *Config) { c.Ledger.Type = "excel" }, "ledger.type must be"},
		{"sqlite without path", func(c *Config) { c.Ledger.Type, c.Ledger.Path = "sqlite", "" }, "ledger.path required for sqlite"},
		{"memory without path", func(c *Config) { c.Ledger.Type, c.Ledger.Path = "memory", "" }, ""},
		{"zero attempts", func(c *Config) { c.Ledger.MaxAttempts = 0 }, "max_attempts"},
		{"inverted backoff", func(c *Config) { c.Ledger.MaxBackoff = Duration(time.Millisecond) }, "ledger backoff"},
		{"negative deviation", func(c *Config) { c.Broker.Deviation = -0.1 }, "broker.deviation"},
		{"negative lock stale", func(c *Config) { c.Ledger.LockStale = -1 }, "lock_stale"},
		{"live broker", func(c *Config) { c.Broker.Mode = "mt5" }, "broker.mode must be 'paper'"},
		{"early exit without bars", func(c *Config) { c.EarlyExit.Enabled, c.EarlyExit.Bars = true, 0 }, "early_exit"},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"bot.yaml", "bot.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := Default()
			cfg.Strategy.Confirmation = strategy.Relaxed
			cfg.Reconcile.RetryDelay = Duration(3 * time.Second)
			cfg.EarlyExit.Enabled = true
			require.NoError(t, cfg.SaveToFile(path))

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadPartialYAMLKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbol: XAGUSD
interval: 30s
strategy:
  confirmation: relaxed
  adx_threshold: 25
ledger:
  type: sqlite
  path: ledger.db
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "XAGUSD", cfg.Symbol)
	assert.Equal(t, 30*time.Second, cfg.Interval.D())
	assert.Equal(t, strategy.Relaxed, cfg.Strategy.Confirmation)
	assert.Equal(t, 25.0, cfg.Strategy.ADXThreshold)
	assert.Equal(t, 14, cfg.Strategy.ATRPeriod)
	assert.Equal(t, "sqlite", cfg.Ledger.Type)
	assert.Equal(t, 5, cfg.Ledger.MaxAttempts)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("strategy:\n  confirmation: loose\n"), 0644))
	_, err := LoadFromFile(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("symbol: BTCUSD\n"), 0644))
	_, err = LoadFromFile(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	_, err = LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"TRENDTRADER_LEDGER_PATH=/tmp/from-dotenv.csv\nTRENDTRADER_LOG_LEVEL=debug\nTRENDTRADER_RISK_DOLLARS=12.5\n"), 0644))

	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLedgerPath, "")
	t.Setenv(EnvRiskDollars, "")
	os.Unsetenv(EnvLedgerPath)
	os.Unsetenv(EnvRiskDollars)

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "warn", cfg.Log.Level, "real environment wins over dotenv")
	assert.Equal(t, "/tmp/from-dotenv.csv", cfg.Ledger.Path)
	assert.Equal(t, 12.5, cfg.Risk.RiskDollars)
	assert.Equal(t, "XAUUSD", cfg.Symbol)

	t.Setenv(EnvRiskDollars, "lots")
	assert.Error(t, cfg.ApplyEnv())
}

func TestConversions(t *testing.T) {
	cfg := Default()

	s := cfg.Sizer()
	assert.Equal(t, 100.0, s.Instrument.ContractSize)
	assert.Equal(t, cfg.Risk.RiskDollars, s.RiskDollars)

	assert.Equal(t, 2*time.Second, cfg.ReconcileOptions().RetryDelay)
	assert.Equal(t, 100.0, cfg.LedgerOptions().ContractSize)

	cfg.Ledger.Type = "memory"
	store, err := cfg.OpenLedgerStore()
	require.NoError(t, err)
	assert.IsType(t, &ledger.MemoryStore{}, store)
}

func TestCSVLedgerStoreBreaksStaleLock(t *testing.T) {
	cfg := Default()
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "trades_log.csv")
	cfg.Ledger.LockStale = Duration(time.Minute)

	lock := cfg.Ledger.Path + ".lock"
	require.NoError(t, os.WriteFile(lock, nil, 0o600))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lock, old, old))

	store, err := cfg.OpenLedgerStore()
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(context.Background(), ledger.Entry{
		Timestamp: old, OrderID: "1", Status: ledger.StatusOpen, OrderType: market.Buy,
	}))
}
