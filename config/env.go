package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvSymbol      = "TRENDTRADER_SYMBOL"
	EnvLogLevel    = "TRENDTRADER_LOG_LEVEL"
	EnvLedgerPath  = "TRENDTRADER_LEDGER_PATH"
	EnvMetricsAddr = "TRENDTRADER_METRICS_ADDR"
	EnvBarsFile    = "TRENDTRADER_BARS_FILE"
	EnvRiskDollars = "TRENDTRADER_RISK_DOLLARS"
)

// LoadEnv reads dotenv files into the process environment without
// overriding variables that are already set. Missing files are ignored.
// With no files it reads ".env".
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv copies TRENDTRADER_* overrides onto c.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvSymbol); ok && v != "" {
		c.Symbol = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvLedgerPath); ok && v != "" {
		c.Ledger.Path = v
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		c.MetricsAddr = v
	}
	if v, ok := os.LookupEnv(EnvBarsFile); ok && v != "" {
		c.Broker.BarsFile = v
	}
	if v, ok := os.LookupEnv(EnvRiskDollars); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRiskDollars, err)
		}
		c.Risk.RiskDollars = f
	}
	return nil
}
