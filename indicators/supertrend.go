package indicators

import (
	"math"

	"github.com/rustyeddy/trendtrader/market"
)

// Bands holds SuperTrend bands and the trend flag for every bar.
type Bands struct {
	Upper   []float64
	Lower   []float64
	Uptrend []bool
}

// Line is the active trend line at bar i: the lower band while in an
// uptrend, the upper band while in a downtrend.
func (b Bands) Line(i int) float64 {
	if b.Uptrend[i] {
		return b.Lower[i]
	}
	return b.Upper[i]
}

// Flipped reports whether bar i changed trend relative to bar i-1.
func (b Bands) Flipped(i int) bool {
	return i > 0 && b.Uptrend[i] != b.Uptrend[i-1]
}

// SuperTrend builds ratcheting bands around the bar midpoint at
// multiplier*ATR.
//
// A close above the previous upper band starts an uptrend, a close below
// the previous lower band starts a downtrend. While the trend holds, the
// band on the trend side may only tighten: the lower band never falls
// during an uptrend and the upper band never rises during a downtrend.
// That includes bars that close through the band on their own side,
// such as a close above the upper band while already in an uptrend.
// The first bar defaults to an uptrend.
func SuperTrend(bars market.Bars, atr []float64, multiplier float64) Bands {
	n := len(bars)
	b := Bands{
		Upper:   make([]float64, n),
		Lower:   make([]float64, n),
		Uptrend: make([]bool, n),
	}
	if n == 0 {
		return b
	}

	for i, bar := range bars {
		a := math.NaN()
		if i < len(atr) {
			a = atr[i]
		}
		mid := bar.Mid()
		b.Upper[i] = mid + multiplier*a
		b.Lower[i] = mid - multiplier*a
	}

	up := true
	b.Uptrend[0] = up
	for i := 1; i < n; i++ {
		prev := up
		c := bars[i].Close
		switch {
		case c > b.Upper[i-1]:
			up = true
		case c < b.Lower[i-1]:
			up = false
		}

		if up == prev {
			if up && b.Lower[i] < b.Lower[i-1] {
				b.Lower[i] = b.Lower[i-1]
			}
			if !up && b.Upper[i] > b.Upper[i-1] {
				b.Upper[i] = b.Upper[i-1]
			}
		}
		b.Uptrend[i] = up
	}
	return b
}
