// Package ledger records each trade's open and close with realized P/L.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rustyeddy/trendtrader/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Options struct {
	// ContractSize is dollars per point per lot, used for P/L.
	ContractSize float64

	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration

	Sleep func(ctx context.Context, d time.Duration)
	Now   func() time.Time
}

func DefaultOptions() Options {
	return Options{
		ContractSize: 100,
		MaxAttempts:  5,
		MinBackoff:   100 * time.Millisecond,
		MaxBackoff:   2 * time.Second,
	}
}

// Ledger is the only writer of ledger entries. Every store call is
// retried with exponential backoff while the store reports ErrContended.
type Ledger struct {
	mu    sync.Mutex
	store Store
	opts  Options
	log   *zap.Logger
}

type OpenRequest struct {
	Time       time.Time
	Direction  market.Direction
	Price      float64
	StopLoss   float64
	TakeProfit float64
	LotSize    float64
	OrderID    string
	Balance    float64
}

type CloseRequest struct {
	OrderID    string
	ClosePrice float64
	CloseTime  time.Time
	Reason     string
}

func New(store Store, opts Options, log *zap.Logger) *Ledger {
	def := DefaultOptions()
	if opts.ContractSize <= 0 {
		opts.ContractSize = def.ContractSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = def.MinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = opts.MinBackoff
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: store, opts: opts, log: log}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (l *Ledger) withRetry(ctx context.Context, op string, fn func() error) error {
	b := &backoff.Backoff{Min: l.opts.MinBackoff, Max: l.opts.MaxBackoff, Factor: 2}

	var err error
	for attempt := 1; attempt <= l.opts.MaxAttempts; attempt++ {
		if err = fn(); err == nil || !errors.Is(err, ErrContended) {
			return err
		}
		if attempt == l.opts.MaxAttempts {
			break
		}
		d := b.Duration()
		l.log.Debug("ledger contended, retrying",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Duration("wait", d))
		l.opts.Sleep(ctx, d)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	l.log.Error("ledger write failed",
		zap.String("op", op), zap.Int("attempts", l.opts.MaxAttempts), zap.Error(err))
	return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrRetriesExhausted, l.opts.MaxAttempts, err)
}

// Open appends an OPEN entry for a newly placed order.
func (l *Ledger) Open(ctx context.Context, req OpenRequest) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if req.OrderID == "" {
		return Entry{}, errors.New("open: empty order id")
	}
	ts := req.Time
	if ts.IsZero() {
		ts = l.opts.Now()
	}
	e := Entry{
		Timestamp:  ts,
		OrderType:  req.Direction,
		Price:      req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		LotSize:    req.LotSize,
		OrderID:    req.OrderID,
		Balance:    req.Balance,
		Status:     StatusOpen,
	}

	err := l.withRetry(ctx, "open "+req.OrderID, func() error {
		entries, err := l.store.Load(ctx)
		if err != nil {
			return err
		}
		for _, x := range entries {
			if x.OrderID == req.OrderID && x.Open() {
				return fmt.Errorf("open: order %s already open", req.OrderID)
			}
		}
		return l.store.Append(ctx, e)
	})
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Close marks the OPEN entry for req.OrderID closed and rewrites the
// store. With no matching OPEN entry it logs a warning and reports
// false without touching the store.
func (l *Ledger) Close(ctx context.Context, req CloseRequest) (Entry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		closed Entry
		found  bool
	)
	err := l.withRetry(ctx, "close "+req.OrderID, func() error {
		entries, err := l.store.Load(ctx)
		if err != nil {
			return err
		}

		found = false
		for i := range entries {
			if entries[i].OrderID != req.OrderID || !entries[i].Open() {
				continue
			}
			e := &entries[i]
			e.Status = StatusClosed
			e.ClosePrice = req.ClosePrice
			e.CloseTime = req.CloseTime
			if e.CloseTime.IsZero() {
				e.CloseTime = l.opts.Now()
			}
			e.CloseReason = req.Reason
			e.ProfitLoss = ProfitLoss(e.OrderType, e.Price, req.ClosePrice, e.LotSize, l.opts.ContractSize)
			closed, found = *e, true
			break
		}
		if !found {
			return nil
		}
		return l.store.Rewrite(ctx, entries)
	})
	if err != nil {
		return Entry{}, false, err
	}
	if !found {
		l.log.Warn("no open ledger entry to close", zap.String("order_id", req.OrderID))
		return Entry{}, false, nil
	}
	return closed, true, nil
}

// ProfitLoss is (exit-entry)*contract*lots for buys, negated for sells.
// The product is exact in decimal; it is not rounded.
func ProfitLoss(d market.Direction, entry, exit, lots, contract float64) float64 {
	pl := decimal.NewFromFloat(exit).
		Sub(decimal.NewFromFloat(entry)).
		Mul(decimal.NewFromFloat(contract)).
		Mul(decimal.NewFromFloat(lots))
	if d == market.Sell {
		pl = pl.Neg()
	}
	return pl.InexactFloat64()
}

func (l *Ledger) Entries(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := l.withRetry(ctx, "load", func() error {
		var err error
		out, err = l.store.Load(ctx)
		return err
	})
	return out, err
}

func (l *Ledger) OpenEntries(ctx context.Context) ([]Entry, error) {
	all, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.Open() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *Ledger) Summary(ctx context.Context) (Summary, error) {
	all, err := l.Entries(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(all), nil
}

