package market

import (
	"fmt"
	"strings"
)

// Direction is the side of an order, position or signal.
type Direction int

const (
	Wait Direction = iota
	Buy
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "WAIT"
	}
}

// Opposite returns the other side. Wait has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case Buy:
		return Sell
	case Sell:
		return Buy
	default:
		return Wait
	}
}

// Sign is +1 for Buy, -1 for Sell and 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case Buy:
		return 1
	case Sell:
		return -1
	default:
		return 0
	}
}

// ParseDirection accepts BUY or SELL in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	case "WAIT", "":
		return Wait, nil
	}
	return Wait, fmt.Errorf("unknown direction %q", s)
}
