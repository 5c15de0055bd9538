package market

import "time"

type Tick struct {
	Symbol string
	Time   time.Time
	Bid    float64
	Ask    float64
}

func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// EntryPrice is the price a new order on side d fills at: ask for buys,
// bid for sells.
func (t Tick) EntryPrice(d Direction) float64 {
	if d == Sell {
		return t.Bid
	}
	return t.Ask
}

// ExitPrice is the price an existing position on side d closes at.
func (t Tick) ExitPrice(d Direction) float64 {
	if d == Sell {
		return t.Ask
	}
	return t.Bid
}
