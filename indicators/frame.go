package indicators

import (
	"time"

	"github.com/rustyeddy/trendtrader/market"
)

// FrameConfig selects the indicator periods used by Compute.
type FrameConfig struct {
	ATRPeriod  int
	Multiplier float64
	ADXPeriod  int
	EMAShort   int
	EMALong    int
}

// Frame is the indicator snapshot for one bar.
type Frame struct {
	Time      time.Time
	Close     float64
	ATR       float64
	Upper     float64
	Lower     float64
	InUptrend bool
	EMAShort  float64
	EMALong   float64
	ADX       float64
	PlusDI    float64
	MinusDI   float64
}

// Series is the full set of indicator series for a window.
type Series struct {
	ATR      []float64
	Bands    Bands
	DI       DirectionalIndex
	EMAShort []float64
	EMALong  []float64
}

// ComputeSeries recomputes every indicator over the whole window.
func ComputeSeries(bars market.Bars, cfg FrameConfig) Series {
	atr := ATR(bars, cfg.ATRPeriod)
	closes := bars.Closes()
	return Series{
		ATR:      atr,
		Bands:    SuperTrend(bars, atr, cfg.Multiplier),
		DI:       ADX(bars, cfg.ADXPeriod),
		EMAShort: EMA(closes, cfg.EMAShort),
		EMALong:  EMA(closes, cfg.EMALong),
	}
}

// Frame returns the snapshot at bar i.
func (s Series) Frame(bars market.Bars, i int) Frame {
	return Frame{
		Time:      bars[i].Time,
		Close:     bars[i].Close,
		ATR:       s.ATR[i],
		Upper:     s.Bands.Upper[i],
		Lower:     s.Bands.Lower[i],
		InUptrend: s.Bands.Uptrend[i],
		EMAShort:  s.EMAShort[i],
		EMALong:   s.EMALong[i],
		ADX:       s.DI.ADX[i],
		PlusDI:    s.DI.PlusDI[i],
		MinusDI:   s.DI.MinusDI[i],
	}
}

// Compute returns one Frame per bar.
func Compute(bars market.Bars, cfg FrameConfig) []Frame {
	s := ComputeSeries(bars, cfg)
	out := make([]Frame, len(bars))
	for i := range bars {
		out[i] = s.Frame(bars, i)
	}
	return out
}
