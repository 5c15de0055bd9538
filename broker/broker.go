// Package broker defines the narrow trading-platform interface the bot
// depends on. Live platform bindings are out of scope; broker/paper
// provides a deterministic implementation.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/trendtrader/market"
)

var ErrNoPrice = errors.New("no price available")

// Result codes reported in OrderResult.Code.
const (
	CodeRequote        = 10004
	CodeDone           = 10009
	CodeRejected       = 10006
	CodeInvalidStops   = 10016
	CodeNoMoney        = 10019
	CodePositionClosed = 10036
)

// Close reasons recorded on deals and ledger entries.
const (
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
	ReasonClosed     = "closed"
	ReasonReconcile  = "reconcile"
	ReasonEarlyExit  = "early_exit"
)

type Broker interface {
	Bars(ctx context.Context, symbol string, count int) (market.Bars, error)
	Tick(ctx context.Context, symbol string) (market.Tick, error)
	Positions(ctx context.Context, symbol string) ([]market.Position, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ClosePosition(ctx context.Context, req CloseRequest) (OrderResult, error)

	// Deal reports how a ticket that is no longer open was closed.
	Deal(ctx context.Context, ticket string) (Deal, bool, error)
	Account(ctx context.Context) (Account, error)
	Close() error
}

// OrderRequest opens a market position. Price is the quote the order was
// sized against; a broker may reject it as a requote when the market has
// moved further than it allows.
type OrderRequest struct {
	Symbol     string
	Direction  market.Direction
	Volume     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Comment    string
}

// CloseRequest closes a position with an opposing deal. Side is the
// direction of that deal, the opposite of the position's; Price is the
// exit quote for the position's side.
type CloseRequest struct {
	Ticket string
	Symbol string
	Side   market.Direction
	Volume float64
	Price  float64
	Reason string
}

// NewCloseRequest builds the close for p at the current quote.
func NewCloseRequest(p market.Position, tick market.Tick, reason string) CloseRequest {
	return CloseRequest{
		Ticket: p.Ticket,
		Symbol: p.Symbol,
		Side:   p.Direction.Opposite(),
		Volume: p.Volume,
		Price:  tick.ExitPrice(p.Direction),
		Reason: reason,
	}
}

// OrderResult carries the platform's verdict. A call can return a nil
// error and still fail; check Success.
type OrderResult struct {
	Success bool
	OrderID string
	Price   float64
	Time    time.Time
	Code    int
	Message string
}

func (r OrderResult) String() string {
	if r.Success {
		return fmt.Sprintf("ok order=%s price=%.2f", r.OrderID, r.Price)
	}
	return fmt.Sprintf("failed code=%d: %s", r.Code, r.Message)
}

// Deal is a closed position from the broker's history.
type Deal struct {
	Ticket     string
	Symbol     string
	Direction  market.Direction
	Volume     float64
	OpenPrice  float64
	ClosePrice float64
	OpenTime   time.Time
	CloseTime  time.Time
	Profit     float64
	Reason     string
}

type Account struct {
	ID       string
	Currency string
	Balance  float64
	Equity   float64
}
