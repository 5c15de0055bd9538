package strategy

import (
	"fmt"
	"sort"
	"strings"
)

// Confirmation selects how the EMA pair must confirm the SuperTrend side.
type Confirmation int

const (
	// Strict requires the short EMA strictly above (buy) or below (sell)
	// the long EMA.
	Strict Confirmation = iota

	// Relaxed also accepts a short EMA lagging the long EMA by up to
	// RelaxedGapPct percent, provided the short EMA is moving in the
	// signal direction.
	Relaxed
)

func (c Confirmation) String() string {
	if c == Relaxed {
		return "relaxed"
	}
	return "strict"
}

// ParseConfirmation parses "strict" or "relaxed".
func ParseConfirmation(s string) (Confirmation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return Strict, nil
	case "relaxed":
		return Relaxed, nil
	}
	return Strict, fmt.Errorf("unknown confirmation policy %q (want strict or relaxed)", s)
}

func (c Confirmation) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Confirmation) UnmarshalText(b []byte) error {
	v, err := ParseConfirmation(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// TPRule maps an ATR/stop-distance ratio threshold to a take-profit
// multiplier.
type TPRule struct {
	Threshold  float64 `json:"threshold" yaml:"threshold"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// DefaultTPRules are checked in order; the first threshold the ratio
// reaches wins.
var DefaultTPRules = []TPRule{
	{Threshold: 2.0, Multiplier: 2.5},
	{Threshold: 1.5, Multiplier: 2.0},
	{Threshold: 1.0, Multiplier: 1.5},
	{Threshold: 0.7, Multiplier: 1.2},
	{Threshold: 0.0, Multiplier: 1.0},
}

// Config parameterises the decision engine.
type Config struct {
	ATRPeriod  int     `json:"atr_period" yaml:"atr_period"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`

	ADXPeriod    int     `json:"adx_period" yaml:"adx_period"`
	ADXThreshold float64 `json:"adx_threshold" yaml:"adx_threshold"`
	// ADXSlopeBars is the look-back for the ADX slope veto. 0 disables it.
	ADXSlopeBars int `json:"adx_slope_bars" yaml:"adx_slope_bars"`

	// ATRFloor is the minimum volatility worth trading.
	ATRFloor float64 `json:"atr_floor" yaml:"atr_floor"`
	// ATRSmoothing averages the trailing N ATR values; 1 uses the last.
	ATRSmoothing int `json:"atr_smoothing" yaml:"atr_smoothing"`

	EMAShort      int          `json:"ema_short" yaml:"ema_short"`
	EMALong       int          `json:"ema_long" yaml:"ema_long"`
	Confirmation  Confirmation `json:"confirmation" yaml:"confirmation"`
	RelaxedGapPct float64      `json:"relaxed_gap_pct" yaml:"relaxed_gap_pct"`

	TPRules []TPRule `json:"tp_rules" yaml:"tp_rules"`
	TPScale float64  `json:"tp_scale" yaml:"tp_scale"`
}

// DefaultConfig returns the production parameter set.
func DefaultConfig() Config {
	rules := make([]TPRule, len(DefaultTPRules))
	copy(rules, DefaultTPRules)
	return Config{
		ATRPeriod:     14,
		Multiplier:    3,
		ADXPeriod:     14,
		ADXThreshold:  20,
		ADXSlopeBars:  3,
		ATRFloor:      0.1,
		ATRSmoothing:  1,
		EMAShort:      5,
		EMALong:       20,
		Confirmation:  Strict,
		RelaxedGapPct: 0.05,
		TPRules:       rules,
		TPScale:       1.5,
	}
}

// MinBars is the shortest window Decide will act on.
func (c Config) MinBars() int {
	return c.ATRPeriod + 2
}

func (c Config) Validate() error {
	if c.ATRPeriod <= 0 {
		return fmt.Errorf("strategy.atr_period must be positive")
	}
	if c.ADXPeriod <= 0 {
		return fmt.Errorf("strategy.adx_period must be positive")
	}
	if c.Multiplier <= 0 {
		return fmt.Errorf("strategy.multiplier must be positive")
	}
	if c.ADXSlopeBars < 0 {
		return fmt.Errorf("strategy.adx_slope_bars must not be negative")
	}
	if c.ATRSmoothing < 1 {
		return fmt.Errorf("strategy.atr_smoothing must be at least 1")
	}
	if c.EMAShort <= 0 || c.EMALong <= 0 {
		return fmt.Errorf("strategy EMA spans must be positive")
	}
	if c.EMAShort >= c.EMALong {
		return fmt.Errorf("strategy.ema_short must be shorter than strategy.ema_long")
	}
	if c.RelaxedGapPct < 0 {
		return fmt.Errorf("strategy.relaxed_gap_pct must not be negative")
	}
	if c.TPScale <= 0 {
		return fmt.Errorf("strategy.tp_scale must be positive")
	}
	if !sort.SliceIsSorted(c.TPRules, func(i, j int) bool {
		return c.TPRules[i].Threshold > c.TPRules[j].Threshold
	}) {
		return fmt.Errorf("strategy.tp_rules thresholds must be descending")
	}
	for i := 1; i < len(c.TPRules); i++ {
		if c.TPRules[i].Multiplier > c.TPRules[i-1].Multiplier {
			return fmt.Errorf("strategy.tp_rules multipliers must not increase as thresholds fall")
		}
	}
	return nil
}
