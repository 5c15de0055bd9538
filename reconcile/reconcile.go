// Package reconcile closes a position that opposes a new signal before
// the new order goes out.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/trendtrader/broker"
	"github.com/rustyeddy/trendtrader/market"
	"go.uber.org/zap"
)

// Broker is the subset of broker.Broker the reconciler needs.
type Broker interface {
	Positions(ctx context.Context, symbol string) ([]market.Position, error)
	Tick(ctx context.Context, symbol string) (market.Tick, error)
	ClosePosition(ctx context.Context, req broker.CloseRequest) (broker.OrderResult, error)
}

type Options struct {
	RetryDelay  time.Duration
	SettleDelay time.Duration

	// Sleep replaces time.Sleep; tests inject a recorder.
	Sleep func(ctx context.Context, d time.Duration)
}

func DefaultOptions() Options {
	return Options{
		RetryDelay:  2 * time.Second,
		SettleDelay: time.Second,
	}
}

type Reconciler struct {
	broker Broker
	opts   Options
	log    *zap.Logger
}

// Result describes what one reconciliation did.
type Result struct {
	Found    bool
	Closed   bool
	Position market.Position
	Close    broker.OrderResult
	Attempts int
}

func New(b Broker, opts Options, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &Reconciler{broker: b, opts: opts, log: log}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Reconcile closes the first open position on symbol whose side opposes
// dir. A failed close is retried once after RetryDelay. Any close
// attempt is followed by SettleDelay. The caller proceeds with its new
// order whatever the outcome; only a failure to list positions is
// returned as an error.
func (r *Reconciler) Reconcile(ctx context.Context, symbol string, dir market.Direction) (Result, error) {
	var res Result
	if dir == market.Wait {
		return res, nil
	}

	positions, err := r.broker.Positions(ctx, symbol)
	if err != nil {
		return res, fmt.Errorf("reconcile %s: positions: %w", symbol, err)
	}

	opp := dir.Opposite()
	for _, p := range positions {
		if p.Direction == opp {
			res.Found = true
			res.Position = p
			break
		}
	}
	if !res.Found {
		return res, nil
	}

	log := r.log.With(zap.String("ticket", res.Position.Ticket), zap.Stringer("side", res.Position.Direction.Opposite()))
	for attempt := 1; attempt <= 2; attempt++ {
		res.Attempts = attempt
		out, err := r.close(ctx, symbol, res.Position)
		res.Close = out
		if err == nil && out.Success {
			res.Closed = true
			log.Warn("closed opposite position", zap.Float64("price", out.Price), zap.Int("attempt", attempt))
			break
		}

		fields := []zap.Field{zap.Int("attempt", attempt), zap.Int("code", out.Code), zap.String("message", out.Message)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		log.Warn("close opposite position failed", fields...)

		if attempt == 1 {
			r.opts.Sleep(ctx, r.opts.RetryDelay)
		}
	}

	r.opts.Sleep(ctx, r.opts.SettleDelay)
	return res, nil
}

// close sends one close for p priced off a fresh quote.
func (r *Reconciler) close(ctx context.Context, symbol string, p market.Position) (broker.OrderResult, error) {
	tick, err := r.broker.Tick(ctx, symbol)
	if err != nil {
		return broker.OrderResult{}, fmt.Errorf("quote: %w", err)
	}
	req := broker.NewCloseRequest(p, tick, broker.ReasonReconcile)
	req.Symbol = symbol
	return r.broker.ClosePosition(ctx, req)
}
