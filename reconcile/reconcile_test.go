package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rustyeddy/trendtrader/broker"
	"github.com/rustyeddy/trendtrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeBroker struct {
	positions []market.Position
	listErr   error
	tickErrs  []error
	ticks     int
	results   []broker.OrderResult
	errs      []error
	closes    []broker.CloseRequest
}

func (f *fakeBroker) Positions(ctx context.Context, symbol string) ([]market.Position, error) {
	return f.positions, f.listErr
}

func (f *fakeBroker) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	i := f.ticks
	f.ticks++
	if i < len(f.tickErrs) && f.tickErrs[i] != nil {
		return market.Tick{}, f.tickErrs[i]
	}
	return market.Tick{Symbol: symbol, Bid: 2000 + float64(i), Ask: 2000.2 + float64(i)}, nil
}

func (f *fakeBroker) ClosePosition(ctx context.Context, req broker.CloseRequest) (broker.OrderResult, error) {
	i := len(f.closes)
	f.closes = append(f.closes, req)

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], err
	}
	return broker.OrderResult{Success: true, OrderID: req.Ticket, Code: broker.CodeDone}, err
}

type sleeps []time.Duration

func (s *sleeps) sleep(_ context.Context, d time.Duration) { *s = append(*s, d) }

func newReconciler(b Broker) (*Reconciler, *sleeps, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	s := &sleeps{}
	opts := DefaultOptions()
	opts.Sleep = s.sleep
	return New(b, opts, zap.New(core)), s, logs
}

func pos(ticket string, d market.Direction) market.Position {
	return market.Position{Ticket: ticket, Symbol: "XAUUSD", Direction: d, Volume: 0.01}
}

func TestReconcileClosesOnlyFirstOpposite(t *testing.T) {
	fb := &fakeBroker{positions: []market.Position{
		pos("a", market.Buy),
		pos("b", market.Sell),
		pos("c", market.Sell),
	}}
	r, s, _ := newReconciler(fb)

	res, err := r.Reconcile(context.Background(), "XAUUSD", market.Buy)
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.True(t, res.Closed)
	assert.Equal(t, "b", res.Position.Ticket)
	assert.Equal(t, 1, res.Attempts)
	require.Len(t, fb.closes, 1)
	req := fb.closes[0]
	assert.Equal(t, broker.ReasonReconcile, req.Reason)
	assert.Equal(t, "b", req.Ticket)
	assert.Equal(t, market.Buy, req.Side, "a sell position closes with a buy")
	assert.Equal(t, 2000.2, req.Price, "sells exit at the ask")
	assert.Equal(t, 0.01, req.Volume)
	assert.Equal(t, []time.Duration{time.Second}, []time.Duration(*s))
}

func TestReconcileRetriesOnce(t *testing.T) {
	fb := &fakeBroker{
		positions: []market.Position{pos("a", market.Buy)},
		results: []broker.OrderResult{
			{Code: broker.CodeRejected, Message: "requote"},
		},
	}
	r, s, logs := newReconciler(fb)

	res, err := r.Reconcile(context.Background(), "XAUUSD", market.Sell)
	require.NoError(t, err)

	assert.True(t, res.Closed)
	assert.Equal(t, 2, res.Attempts)
	require.Len(t, fb.closes, 2)
	assert.Equal(t, market.Sell, fb.closes[0].Side)
	assert.Equal(t, 2000.0, fb.closes[0].Price, "buys exit at the bid")
	assert.Equal(t, 2001.0, fb.closes[1].Price, "the retry is requoted")
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second}, []time.Duration(*s))
	assert.Equal(t, 1, logs.FilterMessage("close opposite position failed").Len())
}

func TestReconcileQuoteFailureCountsAsAttempt(t *testing.T) {
	fb := &fakeBroker{
		positions: []market.Position{pos("a", market.Buy)},
		tickErrs:  []error{broker.ErrNoPrice},
	}
	r, s, logs := newReconciler(fb)

	res, err := r.Reconcile(context.Background(), "XAUUSD", market.Sell)
	require.NoError(t, err)

	assert.True(t, res.Closed)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, fb.closes, 1)
	assert.Len(t, *s, 2)
	assert.Equal(t, 1, logs.FilterMessage("close opposite position failed").Len())
}

func TestReconcileGivesUpAfterSecondFailure(t *testing.T) {
	fb := &fakeBroker{
		positions: []market.Position{pos("a", market.Buy)},
		results: []broker.OrderResult{
			{Code: broker.CodeRejected},
			{Code: broker.CodeRejected},
		},
		errs: []error{nil, errors.New("timeout")},
	}
	r, s, logs := newReconciler(fb)

	res, err := r.Reconcile(context.Background(), "XAUUSD", market.Sell)
	require.NoError(t, err, "close failures never block the new order")

	assert.True(t, res.Found)
	assert.False(t, res.Closed)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, fb.closes, 2)
	assert.Len(t, *s, 2)
	assert.Equal(t, 2, logs.FilterMessage("close opposite position failed").Len())
}

func TestReconcileNothingToDo(t *testing.T) {
	tests := []struct {
		name      string
		positions []market.Position
		dir       market.Direction
	}{
		{"no positions", nil, market.Buy},
		{"same side only", []market.Position{pos("a", market.Buy)}, market.Buy},
		{"wait", []market.Position{pos("a", market.Sell)}, market.Wait},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBroker{positions: tt.positions}
			r, s, _ := newReconciler(fb)

			res, err := r.Reconcile(context.Background(), "XAUUSD", tt.dir)
			require.NoError(t, err)
			assert.False(t, res.Found)
			assert.Empty(t, fb.closes)
			assert.Empty(t, *s)
		})
	}
}

func TestReconcileListError(t *testing.T) {
	fb := &fakeBroker{listErr: broker.ErrNoPrice}
	r, _, _ := newReconciler(fb)

	_, err := r.Reconcile(context.Background(), "XAUUSD", market.Buy)
	assert.ErrorIs(t, err, broker.ErrNoPrice)
}
