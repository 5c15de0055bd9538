package indicators

import (
	"math"

	"github.com/rustyeddy/trendtrader/market"
)

// DirectionalIndex holds the ADX family of series.
type DirectionalIndex struct {
	PlusDI  []float64
	MinusDI []float64
	DX      []float64
	ADX     []float64
}

// ADX computes the Average Directional Index with rolling-mean smoothing.
//
// +DM is the rise in high when it exceeds the fall in low and is positive,
// -DM the fall in low when it exceeds the rise in high. Both are averaged
// over period bars and divided by ATR of the same period. DX is 0 when
// +DI + -DI is 0, and ADX is the rolling mean of DX.
//
// Warmup: DI needs period+1 bars and ADX needs 2*period bars.
func ADX(bars market.Bars, period int) DirectionalIndex {
	n := len(bars)
	plusDM := nanSeries(n)
	minusDM := nanSeries(n)

	for i := 1; i < n; i++ {
		upMove := bars[i].High - bars[i-1].High
		downMove := bars[i-1].Low - bars[i].Low

		plusDM[i] = 0
		minusDM[i] = 0
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	atr := ATR(bars, period)
	smPlus := RollingMean(plusDM, period)
	smMinus := RollingMean(minusDM, period)

	out := DirectionalIndex{
		PlusDI:  nanSeries(n),
		MinusDI: nanSeries(n),
		DX:      nanSeries(n),
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) || math.IsNaN(smPlus[i]) || math.IsNaN(smMinus[i]) {
			continue
		}
		out.PlusDI[i], out.MinusDI[i] = di(smPlus[i], smMinus[i], atr[i])
		out.DX[i] = dx(out.PlusDI[i], out.MinusDI[i])
	}
	out.ADX = RollingMean(out.DX, period)
	return out
}

func di(smPlusDM, smMinusDM, atr float64) (plusDI, minusDI float64) {
	if atr <= 0 {
		return 0, 0
	}
	plusDI = 100.0 * (smPlusDM / atr)
	minusDI = 100.0 * (smMinusDM / atr)
	return plusDI, minusDI
}

func dx(plusDI, minusDI float64) float64 {
	den := plusDI + minusDI
	if den <= 0 {
		return 0
	}
	return 100.0 * (math.Abs(plusDI-minusDI) / den)
}
