package strategy

// TPMultiplier returns the multiplier of the first rule whose threshold
// the ATR/stop-distance ratio reaches. It falls back to 1.0, including
// when stopDistance is not positive.
func TPMultiplier(rules []TPRule, atr, stopDistance float64) float64 {
	if stopDistance <= 0 {
		return 1.0
	}
	ratio := atr / stopDistance
	for _, r := range rules {
		if ratio >= r.Threshold {
			return r.Multiplier
		}
	}
	return 1.0
}
