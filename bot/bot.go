// Package bot runs the polling trade loop: fetch bars, decide, close an
// opposing position, size, place the order and record it.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/trendtrader/broker"
	"github.com/rustyeddy/trendtrader/id"
	"github.com/rustyeddy/trendtrader/ledger"
	"github.com/rustyeddy/trendtrader/market"
	"github.com/rustyeddy/trendtrader/reconcile"
	"github.com/rustyeddy/trendtrader/risk"
	"github.com/rustyeddy/trendtrader/strategy"
	"go.uber.org/zap"
)

type Options struct {
	Symbol   string
	BarCount int
	Interval time.Duration

	EarlyExit     bool
	EarlyExitBars int
	EarlyExitEMA  int

	// MaxCycles stops Run after that many cycles; 0 runs until cancelled.
	MaxCycles int
}

// Deps are the bot's collaborators. Marker, Notifier, Metrics and Logger
// are optional.
type Deps struct {
	Broker     broker.Broker
	Engine     *strategy.Engine
	Sizer      risk.Sizer
	Reconciler *reconcile.Reconciler
	Ledger     *ledger.Ledger
	Marker     *ledger.Marker
	Notifier   Notifier
	Metrics    *Metrics
	Logger     *zap.Logger
}

type Bot struct {
	Deps
	opts    Options
	log     *zap.Logger
	lastBar time.Time
}

// CycleResult records what one cycle did. Err is set when a collaborator
// failed; the cycle is then a no-op.
type CycleResult struct {
	ID         string
	BarTime    time.Time
	Signal     strategy.Signal
	Reconciled reconcile.Result
	Order      *risk.RiskedOrder
	Placed     broker.OrderResult
	Entry      *ledger.Entry
	Synced     int
	EarlyExits int
	Skipped    string
	Err        error
}

func New(d Deps, opts Options) (*Bot, error) {
	if d.Broker == nil || d.Engine == nil || d.Ledger == nil {
		return nil, errors.New("bot: broker, engine and ledger are required")
	}
	if opts.Symbol == "" {
		return nil, errors.New("bot: symbol is required")
	}
	if opts.BarCount < d.Engine.Config().MinBars() {
		opts.BarCount = d.Engine.Config().MinBars()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics(nil)
	}
	if d.Notifier == nil {
		d.Notifier = LogNotifier{Log: d.Logger}
	}
	if d.Reconciler == nil {
		d.Reconciler = reconcile.New(d.Broker, reconcile.DefaultOptions(), d.Logger)
	}

	b := &Bot{Deps: d, opts: opts, log: d.Logger.With(zap.String("symbol", opts.Symbol))}
	if d.Marker != nil {
		t, err := d.Marker.Load()
		if err != nil {
			return nil, fmt.Errorf("load last trade marker: %w", err)
		}
		b.lastBar = t
	}
	return b, nil
}

// Run executes cycles every Interval until ctx is cancelled, MaxCycles is
// reached or the broker runs out of market data. The broker is closed on
// return.
func (b *Bot) Run(ctx context.Context) error {
	defer func() {
		if err := b.Broker.Close(); err != nil {
			b.log.Warn("broker close", zap.Error(err))
		}
		b.log.Info("bot stopped")
	}()

	b.log.Info("bot started",
		zap.String("strategy", b.Engine.Name()),
		zap.Duration("interval", b.opts.Interval),
		zap.Time("last_traded_bar", b.lastBar))

	var tick <-chan time.Time
	if b.opts.Interval > 0 {
		t := time.NewTicker(b.opts.Interval)
		defer t.Stop()
		tick = t.C
	}

	for n := 1; ; n++ {
		res := b.RunCycle(ctx)
		if errors.Is(res.Err, io.EOF) {
			b.log.Info("market data exhausted", zap.Int("cycles", n))
			return nil
		}
		if b.opts.MaxCycles > 0 && n >= b.opts.MaxCycles {
			return nil
		}

		if tick == nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		}
	}
}

// RunCycle runs one decision cycle to completion.
func (b *Bot) RunCycle(ctx context.Context) CycleResult {
	res := CycleResult{ID: id.New()}
	log := b.log.With(zap.String("cycle", res.ID))
	b.Metrics.Cycles.Inc()

	bars, err := b.Broker.Bars(ctx, b.opts.Symbol, b.opts.BarCount)
	if err != nil {
		res.Err = fmt.Errorf("fetch bars: %w", err)
		log.Warn("no decision this cycle", zap.Error(res.Err))
		return res
	}

	positions, err := b.Broker.Positions(ctx, b.opts.Symbol)
	if err != nil {
		res.Err = fmt.Errorf("positions: %w", err)
		log.Warn("no decision this cycle", zap.Error(res.Err))
		return res
	}
	if res.Synced, err = b.syncClosed(ctx, positions); err != nil {
		res.Err = err
		return res
	}
	if b.opts.EarlyExit {
		if res.EarlyExits, err = b.exitEarly(ctx, bars, positions); err != nil {
			res.Err = err
			return res
		}
	}

	last, _ := bars.Last()
	res.BarTime = last.Time
	if !b.lastBar.IsZero() && !last.Time.After(b.lastBar) {
		res.Skipped = "bar already traded"
		log.Info("WAIT", zap.String("reason", res.Skipped), zap.Time("bar", last.Time))
		return res
	}

	sig := b.Engine.Decide(bars)
	res.Signal = sig
	b.Metrics.Signals.WithLabelValues(sig.Direction.String()).Inc()
	f := sig.Frame
	log.Debug("indicators",
		zap.Time("bar", f.Time), zap.Float64("close", f.Close), zap.Float64("atr", f.ATR),
		zap.Float64("upper", f.Upper), zap.Float64("lower", f.Lower), zap.Bool("uptrend", f.InUptrend),
		zap.Float64("ema_short", f.EMAShort), zap.Float64("ema_long", f.EMALong), zap.Float64("adx", f.ADX))
	if !sig.Actionable() {
		res.Skipped = sig.Reason
		log.Info("WAIT", zap.String("reason", sig.Reason))
		return res
	}
	log.Info("signal", zap.Stringer("signal", sig))

	if res.Reconciled, err = b.Reconciler.Reconcile(ctx, b.opts.Symbol, sig.Direction); err != nil {
		res.Err = err
		log.Warn("no decision this cycle", zap.Error(err))
		return res
	}
	if rr := res.Reconciled; rr.Closed {
		b.Metrics.ReconcileCloses.Inc()
		if err := b.recordClose(ctx, rr.Position.Ticket, rr.Close.Price, rr.Close.Time, broker.ReasonReconcile); err != nil {
			res.Err = err
			return res
		}
	}

	tick, err := b.Broker.Tick(ctx, b.opts.Symbol)
	if err != nil {
		res.Err = fmt.Errorf("tick: %w", err)
		log.Warn("no decision this cycle", zap.Error(res.Err))
		return res
	}

	order, err := b.Sizer.Size(sig, tick.EntryPrice(sig.Direction))
	if err != nil {
		res.Skipped = err.Error()
		log.Info("WAIT", zap.String("reason", res.Skipped))
		return res
	}
	res.Order = &order

	var balance float64
	if acct, err := b.Broker.Account(ctx); err != nil {
		log.Warn("account", zap.Error(err))
	} else {
		balance = acct.Balance
	}

	placed, err := b.Broker.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:     b.opts.Symbol,
		Direction:  order.Direction,
		Volume:     order.Volume,
		Price:      order.EntryPrice,
		StopLoss:   order.StopLoss,
		TakeProfit: order.TakeProfit,
		Comment:    b.Engine.Name(),
	})
	res.Placed = placed
	if err != nil || !placed.Success {
		b.Metrics.OrdersFailed.Inc()
		fields := []zap.Field{zap.Stringer("order", order), zap.Int("code", placed.Code), zap.String("message", placed.Message)}
		if err != nil {
			fields = append(fields, zap.Error(err))
			res.Err = fmt.Errorf("place order: %w", err)
		}
		log.Error("order placement failed", fields...)
		b.Notifier.Notify(ctx, fmt.Sprintf("%s %s order failed: %d %s", b.opts.Symbol, order.Direction, placed.Code, placed.Message))
		return res
	}

	b.Metrics.OrdersPlaced.Inc()
	log.Info("order placed", zap.String("ticket", placed.OrderID), zap.Stringer("order", order), zap.Float64("fill", placed.Price))
	b.Notifier.Notify(ctx, fmt.Sprintf("%s %s %.2f lots @ %.2f sl=%.2f tp=%.2f #%s",
		b.opts.Symbol, order.Direction, order.Volume, placed.Price, order.StopLoss, order.TakeProfit, placed.OrderID))

	b.lastBar = last.Time
	b.Metrics.LastBarTime.Set(float64(last.Time.Unix()))
	if b.Marker != nil {
		if err := b.Marker.Save(last.Time); err != nil {
			log.Error("save last trade marker", zap.Error(err))
		}
	}

	entry, err := b.Ledger.Open(ctx, ledger.OpenRequest{
		Time:       placed.Time,
		Direction:  order.Direction,
		Price:      placed.Price,
		StopLoss:   order.StopLoss,
		TakeProfit: order.TakeProfit,
		LotSize:    order.Volume,
		OrderID:    placed.OrderID,
		Balance:    balance,
	})
	if err != nil {
		b.Metrics.LedgerFailures.Inc()
		res.Err = fmt.Errorf("ledger open %s: %w", placed.OrderID, err)
		log.Error("trade not recorded", zap.String("ticket", placed.OrderID), zap.Error(err))
		return res
	}
	res.Entry = &entry
	return res
}

// syncClosed closes ledger entries whose positions the broker has closed
// on its own, using the broker's deal history.
func (b *Bot) syncClosed(ctx context.Context, positions []market.Position) (int, error) {
	open, err := b.Ledger.OpenEntries(ctx)
	if err != nil {
		b.Metrics.LedgerFailures.Inc()
		return 0, fmt.Errorf("ledger: %w", err)
	}

	live := make(map[string]bool, len(positions))
	for _, p := range positions {
		live[p.Ticket] = true
	}

	var n int
	for _, e := range open {
		if live[e.OrderID] {
			continue
		}
		deal, ok, err := b.Broker.Deal(ctx, e.OrderID)
		if err != nil {
			b.log.Warn("deal lookup", zap.String("ticket", e.OrderID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if err := b.recordClose(ctx, e.OrderID, deal.ClosePrice, deal.CloseTime, deal.Reason); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (b *Bot) exitEarly(ctx context.Context, bars market.Bars, positions []market.Position) (int, error) {
	var exits []market.Position
	for _, p := range positions {
		if strategy.ShouldExitEarly(bars, p.Direction, b.opts.EarlyExitBars, b.opts.EarlyExitEMA) {
			exits = append(exits, p)
		}
	}
	if len(exits) == 0 {
		return 0, nil
	}
	tick, err := b.Broker.Tick(ctx, b.opts.Symbol)
	if err != nil {
		b.log.Warn("early exit skipped", zap.Error(err))
		return 0, nil
	}

	var n int
	for _, p := range exits {
		out, err := b.Broker.ClosePosition(ctx, broker.NewCloseRequest(p, tick, broker.ReasonEarlyExit))
		if err != nil || !out.Success {
			b.log.Warn("early exit close failed",
				zap.String("ticket", p.Ticket), zap.Int("code", out.Code), zap.String("message", out.Message), zap.Error(err))
			continue
		}
		b.Metrics.EarlyExits.Inc()
		b.log.Info("early exit", zap.String("ticket", p.Ticket), zap.Float64("price", out.Price))
		b.Notifier.Notify(ctx, fmt.Sprintf("%s early exit #%s @ %.2f", p.Symbol, p.Ticket, out.Price))
		if err := b.recordClose(ctx, p.Ticket, out.Price, out.Time, broker.ReasonEarlyExit); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (b *Bot) recordClose(ctx context.Context, ticket string, price float64, at time.Time, reason string) error {
	_, _, err := b.Ledger.Close(ctx, ledger.CloseRequest{
		OrderID:    ticket,
		ClosePrice: price,
		CloseTime:  at,
		Reason:     reason,
	})
	if err != nil {
		b.Metrics.LedgerFailures.Inc()
		return fmt.Errorf("ledger close %s: %w", ticket, err)
	}
	return nil
}
