package strategy

import (
	"github.com/rustyeddy/trendtrader/indicators"
	"github.com/rustyeddy/trendtrader/market"
)

// ShouldExitEarly reports whether an open position on side d is being
// run over: the last n bars all closed against it and the final close sits
// on the wrong side of the EMA of emaSpan.
func ShouldExitEarly(bars market.Bars, d market.Direction, n, emaSpan int) bool {
	if n <= 0 || len(bars) < n+1 {
		return false
	}

	for _, b := range bars[len(bars)-n:] {
		switch d {
		case market.Buy:
			if !b.Bearish() {
				return false
			}
		case market.Sell:
			if !b.Bullish() {
				return false
			}
		default:
			return false
		}
	}

	ema := indicators.Last(indicators.EMA(bars.Closes(), emaSpan))
	last := bars[len(bars)-1].Close
	if d == market.Buy {
		return last < ema
	}
	return last > ema
}
