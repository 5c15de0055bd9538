package market

import "time"

// Bar is one closed OHLCV price bar.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Mid returns the bar midpoint (high+low)/2.
func (b Bar) Mid() float64 {
	return (b.High + b.Low) / 2
}

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// Bearish reports whether the bar closed below its open.
func (b Bar) Bearish() bool { return b.Close < b.Open }

// Bars is an ascending sequence of bars.
type Bars []Bar

// Closes returns the close series.
func (bs Bars) Closes() []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		out[i] = b.Close
	}
	return out
}

// Last returns the most recent bar. ok is false for an empty series.
func (bs Bars) Last() (b Bar, ok bool) {
	if len(bs) == 0 {
		return Bar{}, false
	}
	return bs[len(bs)-1], true
}

// Validate checks that timestamps strictly increase and prices are sane.
// It returns the index of the first offending bar, or -1.
func (bs Bars) Validate() int {
	for i, b := range bs {
		if b.High < b.Low || b.Close <= 0 {
			return i
		}
		if i > 0 && !b.Time.After(bs[i-1].Time) {
			return i
		}
	}
	return -1
}
