// Package paper is an in-memory broker driven by a historical bar feed.
// Each Bars call reveals one more bar, fills stop-loss and take-profit
// levels touched by that bar, and prices market orders off its close.
package paper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/rustyeddy/trendtrader/broker"
	"github.com/rustyeddy/trendtrader/id"
	"github.com/rustyeddy/trendtrader/market"
)

var (
	// ErrFeedExhausted wraps io.EOF so loops can stop on it without
	// importing this package.
	ErrFeedExhausted    = fmt.Errorf("bar feed exhausted: %w", io.EOF)
	ErrPositionNotFound = errors.New("position not found")
	ErrClosed           = errors.New("broker closed")
)

type Options struct {
	Symbol   string
	Balance  float64
	Spread   float64
	Currency string

	// Deviation is the largest distance allowed between a request's
	// price and the fill before it is rejected as a requote. 0 accepts
	// any requested price.
	Deviation float64
}

type trade struct {
	market.Position
	open       bool
	closePrice float64
	closeTime  time.Time
	profit     float64
	reason     string
}

type Broker struct {
	mu     sync.Mutex
	opts   Options
	meta   market.InstrumentMeta
	feed   market.Bars
	cursor int

	balance float64
	trades  map[string]*trade
	order   []string

	closeFailures int
	closed        bool
}

var _ broker.Broker = (*Broker)(nil)

func New(feed market.Bars, opts Options) *Broker {
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	meta, ok := market.Lookup(opts.Symbol)
	if !ok {
		meta = market.InstrumentMeta{Name: opts.Symbol, ContractSize: 100, MinLot: 0.01, MaxLot: 100, LotStep: 0.01}
	}
	return &Broker{
		opts:    opts,
		meta:    meta,
		feed:    feed,
		balance: opts.Balance,
		trades:  make(map[string]*trade),
	}
}

// InjectCloseFailures makes the next n ClosePosition calls fail with a
// rejected result.
func (b *Broker) InjectCloseFailures(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeFailures = n
}

// Remaining is the number of feed bars not yet revealed.
func (b *Broker) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.feed) - b.cursor
}

func (b *Broker) checkLocked(symbol string) error {
	if b.closed {
		return ErrClosed
	}
	if symbol != b.opts.Symbol {
		return fmt.Errorf("%w: unknown symbol %q", broker.ErrNoPrice, symbol)
	}
	return nil
}

// Bars reveals the next feed bar and returns up to count bars ending at
// it. The first call reveals count bars at once.
func (b *Broker) Bars(ctx context.Context, symbol string, count int) (market.Bars, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(symbol); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("bars: count must be positive, got %d", count)
	}

	next := b.cursor + 1
	if b.cursor == 0 {
		next = min(count, len(b.feed))
	}
	if next == 0 || next > len(b.feed) {
		return nil, ErrFeedExhausted
	}
	if b.cursor > 0 {
		b.triggerLocked(b.feed[next-1])
	}
	b.cursor = next

	start := max(0, next-count)
	out := make(market.Bars, next-start)
	copy(out, b.feed[start:next])
	return out, nil
}

func (b *Broker) triggerLocked(bar market.Bar) {
	for _, tk := range b.order {
		t := b.trades[tk]
		if !t.open {
			continue
		}
		switch {
		case hitStopLoss(t, bar):
			b.closeLocked(t, t.StopLoss, bar.Time, broker.ReasonStopLoss)
		case hitTakeProfit(t, bar):
			b.closeLocked(t, t.TakeProfit, bar.Time, broker.ReasonTakeProfit)
		}
	}
}

func hitStopLoss(t *trade, bar market.Bar) bool {
	if t.StopLoss <= 0 {
		return false
	}
	if t.Direction == market.Buy {
		return bar.Low <= t.StopLoss
	}
	return bar.High >= t.StopLoss
}

func hitTakeProfit(t *trade, bar market.Bar) bool {
	if t.TakeProfit <= 0 {
		return false
	}
	if t.Direction == market.Buy {
		return bar.High >= t.TakeProfit
	}
	return bar.Low <= t.TakeProfit
}

func (b *Broker) tickLocked() (market.Tick, error) {
	if b.cursor == 0 {
		return market.Tick{}, fmt.Errorf("%w: feed not started", broker.ErrNoPrice)
	}
	last := b.feed[b.cursor-1]
	half := b.opts.Spread / 2
	return market.Tick{
		Symbol: b.opts.Symbol,
		Time:   last.Time,
		Bid:    last.Close - half,
		Ask:    last.Close + half,
	}, nil
}

func (b *Broker) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(symbol); err != nil {
		return market.Tick{}, err
	}
	return b.tickLocked()
}

// Positions returns open positions on symbol in the order they were opened.
func (b *Broker) Positions(ctx context.Context, symbol string) ([]market.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(symbol); err != nil {
		return nil, err
	}
	var out []market.Position
	for _, tk := range b.order {
		if t := b.trades[tk]; t.open {
			out = append(out, t.Position)
		}
	}
	return out, nil
}

func (b *Broker) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(req.Symbol); err != nil {
		return broker.OrderResult{}, err
	}
	tick, err := b.tickLocked()
	if err != nil {
		return broker.OrderResult{}, err
	}

	if req.Direction == market.Wait || req.Volume <= 0 {
		return broker.OrderResult{Code: broker.CodeRejected, Message: "invalid direction or volume"}, nil
	}
	if b.balance <= 0 {
		return broker.OrderResult{Code: broker.CodeNoMoney, Message: "no free margin"}, nil
	}

	price := tick.EntryPrice(req.Direction)
	if res, ok := b.requoteLocked(req.Price, price); !ok {
		return res, nil
	}
	if !stopsValid(req, price) {
		return broker.OrderResult{
			Code:    broker.CodeInvalidStops,
			Message: fmt.Sprintf("invalid stops sl=%.2f tp=%.2f for %s @ %.2f", req.StopLoss, req.TakeProfit, req.Direction, price),
		}, nil
	}

	ticket := id.At(tick.Time)
	b.trades[ticket] = &trade{
		Position: market.Position{
			Ticket:     ticket,
			Symbol:     req.Symbol,
			Direction:  req.Direction,
			Volume:     req.Volume,
			OpenPrice:  price,
			OpenTime:   tick.Time,
			StopLoss:   req.StopLoss,
			TakeProfit: req.TakeProfit,
		},
		open: true,
	}
	b.order = append(b.order, ticket)

	return broker.OrderResult{
		Success: true,
		OrderID: ticket,
		Price:   price,
		Time:    tick.Time,
		Code:    broker.CodeDone,
		Message: "done",
	}, nil
}

// requoteLocked rejects a requested price that is too far from the fill.
func (b *Broker) requoteLocked(requested, fill float64) (broker.OrderResult, bool) {
	if requested <= 0 || b.opts.Deviation <= 0 {
		return broker.OrderResult{}, true
	}
	if math.Abs(requested-fill) <= b.opts.Deviation {
		return broker.OrderResult{}, true
	}
	return broker.OrderResult{
		Code:    broker.CodeRequote,
		Price:   fill,
		Message: fmt.Sprintf("requote: asked %.2f, market %.2f", requested, fill),
	}, false
}

func stopsValid(req broker.OrderRequest, price float64) bool {
	s := req.Direction.Sign()
	if req.StopLoss > 0 && s*(price-req.StopLoss) <= 0 {
		return false
	}
	if req.TakeProfit > 0 && s*(req.TakeProfit-price) <= 0 {
		return false
	}
	return true
}

func (b *Broker) ClosePosition(ctx context.Context, req broker.CloseRequest) (broker.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLocked(req.Symbol); err != nil {
		return broker.OrderResult{}, err
	}
	if b.closeFailures > 0 {
		b.closeFailures--
		return broker.OrderResult{Code: broker.CodeRejected, Message: "requote"}, nil
	}

	t, ok := b.trades[req.Ticket]
	if !ok || !t.open {
		return broker.OrderResult{Code: broker.CodePositionClosed, Message: "position not found"},
			fmt.Errorf("close %s: %w", req.Ticket, ErrPositionNotFound)
	}
	if req.Side != t.Direction.Opposite() {
		return broker.OrderResult{
			Code:    broker.CodeRejected,
			Message: fmt.Sprintf("close side %s does not oppose %s position", req.Side, t.Direction),
		}, nil
	}
	tick, err := b.tickLocked()
	if err != nil {
		return broker.OrderResult{}, err
	}

	price := tick.ExitPrice(t.Direction)
	if res, ok := b.requoteLocked(req.Price, price); !ok {
		return res, nil
	}

	reason := req.Reason
	if reason == "" {
		reason = broker.ReasonClosed
	}
	b.closeLocked(t, price, tick.Time, reason)

	return broker.OrderResult{
		Success: true,
		OrderID: t.Ticket,
		Price:   price,
		Time:    tick.Time,
		Code:    broker.CodeDone,
		Message: "done",
	}, nil
}

func (b *Broker) closeLocked(t *trade, price float64, at time.Time, reason string) {
	t.open = false
	t.closePrice = price
	t.closeTime = at
	t.reason = reason
	t.profit = b.profit(t.Position, price)
	b.balance += t.profit
}

func (b *Broker) profit(p market.Position, price float64) float64 {
	return p.Direction.Sign() * (price - p.OpenPrice) * b.meta.ContractSize * p.Volume
}

func (b *Broker) Deal(ctx context.Context, ticket string) (broker.Deal, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return broker.Deal{}, false, ErrClosed
	}
	t, ok := b.trades[ticket]
	if !ok || t.open {
		return broker.Deal{}, false, nil
	}
	return broker.Deal{
		Ticket:     t.Ticket,
		Symbol:     t.Symbol,
		Direction:  t.Direction,
		Volume:     t.Volume,
		OpenPrice:  t.OpenPrice,
		ClosePrice: t.closePrice,
		OpenTime:   t.OpenTime,
		CloseTime:  t.closeTime,
		Profit:     t.profit,
		Reason:     t.reason,
	}, true, nil
}

func (b *Broker) Account(ctx context.Context) (broker.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return broker.Account{}, ErrClosed
	}
	equity := b.balance
	if tick, err := b.tickLocked(); err == nil {
		for _, tk := range b.order {
			if t := b.trades[tk]; t.open {
				equity += b.profit(t.Position, tick.ExitPrice(t.Direction))
			}
		}
	}
	return broker.Account{
		ID:       "paper",
		Currency: b.opts.Currency,
		Balance:  b.balance,
		Equity:   equity,
	}, nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
