package strategy

import (
	"fmt"
	"math"

	"github.com/rustyeddy/trendtrader/indicators"
	"github.com/rustyeddy/trendtrader/market"
)

// Signal is the outcome of one decision. Stop and target fields are zero
// unless Direction is Buy or Sell.
type Signal struct {
	Direction market.Direction

	StopLoss           float64
	StopDistance       float64
	TakeProfitDistance float64
	TPMultiplier       float64

	// ATR is the volatility estimate the decision used.
	ATR      float64
	ADXSlope float64

	Reason string
	Frame  indicators.Frame
}

// Actionable reports whether the signal asks for a new position.
func (s Signal) Actionable() bool {
	return s.Direction == market.Buy || s.Direction == market.Sell
}

func (s Signal) String() string {
	if !s.Actionable() {
		return fmt.Sprintf("WAIT (%s)", s.Reason)
	}
	return fmt.Sprintf("%s sl=%.2f dist=%.2f tp=%.2f (%s)",
		s.Direction, s.StopLoss, s.StopDistance, s.TakeProfitDistance, s.Reason)
}

// Engine decides BUY, SELL or WAIT from a bar window. It holds no state
// between calls.
type Engine struct {
	cfg  Config
	name string
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg: cfg,
		name: fmt.Sprintf("SUPERTREND(%d,%.1f)_EMA(%d,%d,%s)_ADX(%d@%.1f)",
			cfg.ATRPeriod, cfg.Multiplier, cfg.EMAShort, cfg.EMALong,
			cfg.Confirmation, cfg.ADXPeriod, cfg.ADXThreshold),
	}, nil
}

func (e *Engine) Name() string   { return e.name }
func (e *Engine) Config() Config { return e.cfg }

// Decide runs Decide with the engine's configuration.
func (e *Engine) Decide(bars market.Bars) Signal {
	return Decide(bars, e.cfg)
}

func wait(reason string, f indicators.Frame) Signal {
	return Signal{Direction: market.Wait, Reason: reason, Frame: f}
}

// Decide evaluates the gates in order and stops at the first that fails:
// window length, volatility floor, trend strength, then SuperTrend side
// confirmed by the EMA pair.
func Decide(bars market.Bars, cfg Config) Signal {
	if len(bars) < cfg.MinBars() {
		return wait(fmt.Sprintf("not enough data: %d bars, need %d", len(bars), cfg.MinBars()), indicators.Frame{})
	}
	if idx := bars.Validate(); idx >= 0 {
		return wait(fmt.Sprintf("malformed bar at index %d", idx), indicators.Frame{})
	}

	s := indicators.ComputeSeries(bars, indicators.FrameConfig{
		ATRPeriod:  cfg.ATRPeriod,
		Multiplier: cfg.Multiplier,
		ADXPeriod:  cfg.ADXPeriod,
		EMAShort:   cfg.EMAShort,
		EMALong:    cfg.EMALong,
	})
	last := len(bars) - 1
	f := s.Frame(bars, last)

	atr := indicators.MeanLast(s.ATR, cfg.ATRSmoothing)
	if math.IsNaN(atr) {
		return wait("ATR undefined", f)
	}
	if atr < cfg.ATRFloor {
		return wait(fmt.Sprintf("ATR %.4f below floor %.4f", atr, cfg.ATRFloor), f)
	}

	adx := f.ADX
	if math.IsNaN(adx) {
		return wait("ADX undefined", f)
	}
	if adx < cfg.ADXThreshold {
		return wait(fmt.Sprintf("ADX %.2f below threshold %.2f", adx, cfg.ADXThreshold), f)
	}
	slope := indicators.Slope(s.DI.ADX, cfg.ADXSlopeBars)
	if math.IsNaN(slope) {
		return wait("ADX slope undefined", f)
	}
	if slope < 0 {
		return wait(fmt.Sprintf("ADX falling (slope %.2f over %d bars)", slope, cfg.ADXSlopeBars), f)
	}

	shortSlope := indicators.Slope(s.EMAShort, 1)
	var sig Signal
	switch {
	case f.InUptrend && confirms(cfg, market.Buy, f.EMAShort, f.EMALong, shortSlope):
		sig = Signal{
			Direction:    market.Buy,
			StopLoss:     f.Lower,
			StopDistance: f.Close - f.Lower,
			Reason:       "uptrend confirmed by EMA",
		}
	case !f.InUptrend && confirms(cfg, market.Sell, f.EMAShort, f.EMALong, shortSlope):
		sig = Signal{
			Direction:    market.Sell,
			StopLoss:     f.Upper,
			StopDistance: f.Upper - f.Close,
			Reason:       "downtrend confirmed by EMA",
		}
	default:
		return wait("EMA does not confirm trend", f)
	}

	sig.TPMultiplier = TPMultiplier(cfg.TPRules, atr, sig.StopDistance) * cfg.TPScale
	sig.TakeProfitDistance = sig.TPMultiplier * atr
	sig.ATR = atr
	sig.ADXSlope = slope
	sig.Frame = f
	return sig
}

func confirms(cfg Config, d market.Direction, short, long, shortSlope float64) bool {
	if math.IsNaN(short) || math.IsNaN(long) {
		return false
	}
	switch d {
	case market.Buy:
		if short > long {
			return true
		}
		if cfg.Confirmation != Relaxed || long == 0 {
			return false
		}
		return (long-short)/long*100 <= cfg.RelaxedGapPct && shortSlope > 0
	case market.Sell:
		if short < long {
			return true
		}
		if cfg.Confirmation != Relaxed || long == 0 {
			return false
		}
		return (short-long)/long*100 <= cfg.RelaxedGapPct && shortSlope < 0
	}
	return false
}
