package ledger

import (
	"math"

	"github.com/shopspring/decimal"
)

// Summary aggregates closed trades.
type Summary struct {
	Trades int
	Open   int
	Wins   int
	Losses int

	WinRate      float64
	NetPL        float64
	GrossProfit  float64
	GrossLoss    float64
	ProfitFactor float64
}

// Summarize totals P/L in decimal so sums of many small trades do not
// pick up float error.
func Summarize(entries []Entry) Summary {
	var (
		s            Summary
		profit, loss decimal.Decimal
	)
	for _, e := range entries {
		if e.Open() {
			s.Open++
			continue
		}
		s.Trades++
		pl := decimal.NewFromFloat(e.ProfitLoss)
		switch {
		case pl.IsPositive():
			s.Wins++
			profit = profit.Add(pl)
		case pl.IsNegative():
			s.Losses++
			loss = loss.Sub(pl)
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	s.GrossProfit = profit.InexactFloat64()
	s.GrossLoss = loss.InexactFloat64()
	s.NetPL = profit.Sub(loss).InexactFloat64()
	switch {
	case loss.IsPositive():
		s.ProfitFactor = profit.Div(loss).InexactFloat64()
	case profit.IsPositive():
		s.ProfitFactor = math.Inf(1)
	}
	return s
}
