package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/trendtrader/market"
	"github.com/rustyeddy/trendtrader/strategy"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the complete bot configuration
type Config struct {
	Symbol   string   `json:"symbol" yaml:"symbol"`
	Interval Duration `json:"interval" yaml:"interval"`
	BarCount int      `json:"bar_count" yaml:"bar_count"`

	Strategy  strategy.Config `json:"strategy" yaml:"strategy"`
	Risk      RiskConfig      `json:"risk" yaml:"risk"`
	Reconcile ReconcileConfig `json:"reconcile" yaml:"reconcile"`
	Ledger    LedgerConfig    `json:"ledger" yaml:"ledger"`
	Broker    BrokerConfig    `json:"broker" yaml:"broker"`
	EarlyExit EarlyExitConfig `json:"early_exit" yaml:"early_exit"`
	Log       LogConfig       `json:"log" yaml:"log"`

	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
}

// RiskConfig contains position sizing parameters
type RiskConfig struct {
	RiskDollars     float64 `json:"risk_dollars" yaml:"risk_dollars"`
	TPFactor        float64 `json:"tp_factor" yaml:"tp_factor"`
	TPFloor         float64 `json:"tp_floor" yaml:"tp_floor"`
	AbsoluteTPFloor float64 `json:"absolute_tp_floor" yaml:"absolute_tp_floor"`
	MinStopDistance float64 `json:"min_stop_distance" yaml:"min_stop_distance"`
}

type ReconcileConfig struct {
	RetryDelay  Duration `json:"retry_delay" yaml:"retry_delay"`
	SettleDelay Duration `json:"settle_delay" yaml:"settle_delay"`
}

// LedgerConfig selects the trade ledger store
type LedgerConfig struct {
	Type        string   `json:"type" yaml:"type"` // "csv", "sqlite" or "memory"
	Path        string   `json:"path,omitempty" yaml:"path,omitempty"`
	MarkerPath  string   `json:"marker_path,omitempty" yaml:"marker_path,omitempty"`
	MaxAttempts int      `json:"max_attempts" yaml:"max_attempts"`
	MinBackoff  Duration `json:"min_backoff" yaml:"min_backoff"`
	MaxBackoff  Duration `json:"max_backoff" yaml:"max_backoff"`
	// LockStale is the age after which a csv lock file is taken to be
	// left behind by a dead writer; 0 never breaks it.
	LockStale Duration `json:"lock_stale" yaml:"lock_stale"`
}

// BrokerConfig configures the paper broker
type BrokerConfig struct {
	Mode     string  `json:"mode" yaml:"mode"`
	BarsFile string  `json:"bars_file,omitempty" yaml:"bars_file,omitempty"`
	Balance  float64 `json:"balance" yaml:"balance"`
	Spread   float64 `json:"spread" yaml:"spread"`

	// Deviation is the allowed slippage from the quoted price; 0 disables it.
	Deviation float64 `json:"deviation" yaml:"deviation"`
}

type EarlyExitConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Bars    int  `json:"bars" yaml:"bars"`
	EMASpan int  `json:"ema_span" yaml:"ema_span"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Duration reads and writes as a Go duration string such as "1m30s".
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file on top of
// Default, then validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration as YAML or JSON depending on extension
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if _, ok := market.Lookup(c.Symbol); !ok {
		return fmt.Errorf("unknown symbol: %s", c.Symbol)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if c.BarCount < c.Strategy.MinBars() {
		return fmt.Errorf("bar_count must be at least %d", c.Strategy.MinBars())
	}
	if c.Risk.RiskDollars <= 0 {
		return fmt.Errorf("risk.risk_dollars must be positive")
	}
	if c.Risk.TPFactor < 0 || c.Risk.TPFloor < 0 || c.Risk.AbsoluteTPFloor < 0 {
		return fmt.Errorf("risk take-profit thresholds must not be negative")
	}
	if c.Risk.MinStopDistance < 0 {
		return fmt.Errorf("risk.min_stop_distance must not be negative")
	}
	if c.Reconcile.RetryDelay < 0 || c.Reconcile.SettleDelay < 0 {
		return fmt.Errorf("reconcile delays must not be negative")
	}
	switch c.Ledger.Type {
	case "memory":
	case "csv", "sqlite":
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path required for %s type", c.Ledger.Type)
		}
	default:
		return fmt.Errorf("ledger.type must be 'csv', 'sqlite' or 'memory'")
	}
	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("ledger.max_attempts must be at least 1")
	}
	if c.Ledger.MinBackoff <= 0 || c.Ledger.MaxBackoff < c.Ledger.MinBackoff {
		return fmt.Errorf("ledger backoff must satisfy 0 < min_backoff <= max_backoff")
	}
	if c.Ledger.LockStale < 0 {
		return fmt.Errorf("ledger.lock_stale must not be negative")
	}
	if c.Broker.Mode != "paper" {
		return fmt.Errorf("broker.mode must be 'paper'")
	}
	if c.Broker.Balance <= 0 {
		return fmt.Errorf("broker.balance must be positive")
	}
	if c.Broker.Spread < 0 {
		return fmt.Errorf("broker.spread must not be negative")
	}
	if c.Broker.Deviation < 0 {
		return fmt.Errorf("broker.deviation must not be negative")
	}
	if c.EarlyExit.Enabled && (c.EarlyExit.Bars <= 0 || c.EarlyExit.EMASpan <= 0) {
		return fmt.Errorf("early_exit bars and ema_span must be positive")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Symbol:   "XAUUSD",
		Interval: Duration(time.Minute),
		BarCount: 100,
		Strategy: strategy.DefaultConfig(),
		Risk: RiskConfig{
			RiskDollars:     5,
			TPFactor:        0.8,
			TPFloor:         1.5,
			AbsoluteTPFloor: 1.5,
			MinStopDistance: 1.0,
		},
		Reconcile: ReconcileConfig{
			RetryDelay:  Duration(2 * time.Second),
			SettleDelay: Duration(time.Second),
		},
		Ledger: LedgerConfig{
			Type:        "csv",
			Path:        "./trades_log.csv",
			MarkerPath:  "./last_trade.json",
			MaxAttempts: 5,
			MinBackoff:  Duration(100 * time.Millisecond),
			MaxBackoff:  Duration(2 * time.Second),
			LockStale:   Duration(30 * time.Second),
		},
		Broker: BrokerConfig{
			Mode:    "paper",
			Balance:   10000,
			Spread:    0.2,
			Deviation: 0.5,
		},
		EarlyExit: EarlyExitConfig{
			Bars:    3,
			EMASpan: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
