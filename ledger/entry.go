// ledger/entry.go
package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rustyeddy/trendtrader/market"
)

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Entry is one trade's lifecycle record.
type Entry struct {
	Timestamp   time.Time
	OrderType   market.Direction
	Price       float64
	StopLoss    float64
	TakeProfit  float64
	LotSize     float64
	OrderID     string
	Balance     float64
	Status      Status
	ClosePrice  float64
	CloseTime   time.Time
	ProfitLoss  float64
	CloseReason string
}

func (e Entry) Open() bool { return e.Status == StatusOpen }

// Header is the ledger's column order.
var Header = []string{
	"timestamp", "order_type", "price", "stop_loss", "take_profit", "lot_size",
	"order_id", "balance", "status", "close_price", "close_time", "profit_loss", "close_reason",
}

const timeLayout = time.RFC3339

func (e Entry) record() []string {
	rec := []string{
		e.Timestamp.UTC().Format(timeLayout),
		e.OrderType.String(),
		num(e.Price),
		optNum(e.StopLoss),
		optNum(e.TakeProfit),
		num(e.LotSize),
		e.OrderID,
		num(e.Balance),
		string(e.Status),
		"", "", "", "",
	}
	if e.Status == StatusClosed {
		rec[9] = num(e.ClosePrice)
		rec[10] = e.CloseTime.UTC().Format(timeLayout)
		rec[11] = num(e.ProfitLoss)
		rec[12] = e.CloseReason
	}
	return rec
}

func parseRecord(rec []string) (Entry, error) {
	if len(rec) != len(Header) {
		return Entry{}, fmt.Errorf("want %d fields, got %d", len(Header), len(rec))
	}

	var e Entry
	if err := e.decode(rec[0], rec[1], rec[8], rec[10]); err != nil {
		return e, err
	}

	floats := []struct {
		dst *float64
		col int
	}{
		{&e.Price, 2}, {&e.StopLoss, 3}, {&e.TakeProfit, 4}, {&e.LotSize, 5},
		{&e.Balance, 7}, {&e.ClosePrice, 9}, {&e.ProfitLoss, 11},
	}
	for _, f := range floats {
		v, err := parseNum(rec[f.col])
		if err != nil {
			return e, fmt.Errorf("%s: %w", Header[f.col], err)
		}
		*f.dst = v
	}

	e.OrderID = rec[6]
	e.CloseReason = rec[12]
	return e, nil
}

func num(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func optNum(x float64) string {
	if x == 0 {
		return ""
	}
	return num(x)
}

func parseNum(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// decode fills the string-typed columns shared by every store.
func (e *Entry) decode(ts, side, status, closeTime string) error {
	var err error
	if e.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if e.OrderType, err = market.ParseDirection(side); err != nil {
		return err
	}
	e.Status = Status(status)
	if e.Status != StatusOpen && e.Status != StatusClosed {
		return fmt.Errorf("status: unknown %q", status)
	}
	e.CloseTime = time.Time{}
	if closeTime != "" {
		if e.CloseTime, err = time.Parse(timeLayout, closeTime); err != nil {
			return fmt.Errorf("close_time: %w", err)
		}
	}
	return nil
}
