package market

import "time"

// Position is an open position as reported by the broker.
type Position struct {
	Ticket     string
	Symbol     string
	Direction  Direction
	Volume     float64
	OpenPrice  float64
	OpenTime   time.Time
	StopLoss   float64
	TakeProfit float64
}
