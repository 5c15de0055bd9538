package indicators

import (
	"math"

	"github.com/rustyeddy/trendtrader/market"
)

// TrueRange returns the per-bar true range,
// max(high-low, |high-prevClose|, |low-prevClose|).
// The first bar has no previous close and is NaN.
func TrueRange(bars market.Bars) []float64 {
	out := nanSeries(len(bars))
	for i := 1; i < len(bars); i++ {
		out[i] = trueRange(bars[i], bars[i-1])
	}
	return out
}

// ATR is the simple rolling mean of true range over period bars.
func ATR(bars market.Bars, period int) []float64 {
	return RollingMean(TrueRange(bars), period)
}

func trueRange(current, previous market.Bar) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)

	return math.Max(highLow, math.Max(highClose, lowClose))
}
