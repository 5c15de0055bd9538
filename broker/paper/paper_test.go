package paper

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rustyeddy/trendtrader/broker"
	"github.com/rustyeddy/trendtrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

// feed builds minute bars from {open, high, low, close} rows.
func feed(rows ...[4]float64) market.Bars {
	out := make(market.Bars, len(rows))
	for i, r := range rows {
		out[i] = market.Bar{
			Time:  t0.Add(time.Duration(i) * time.Minute),
			Open:  r[0],
			High:  r[1],
			Low:   r[2],
			Close: r[3],
		}
	}
	return out
}

func flat(n int) [][4]float64 {
	rows := make([][4]float64, n)
	for i := range rows {
		rows[i] = [4]float64{2000, 2001, 1999, 2000}
	}
	return rows
}

func newBroker(rows ...[4]float64) *Broker {
	return New(feed(rows...), Options{Symbol: "XAUUSD", Balance: 10000, Spread: 0.2})
}

func TestBarsRevealsOneBarPerCall(t *testing.T) {
	b := newBroker(flat(5)...)
	ctx := context.Background()

	bars, err := b.Bars(ctx, "XAUUSD", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, t0, bars[0].Time)

	bars, err = b.Bars(ctx, "XAUUSD", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, t0.Add(3*time.Minute), bars[2].Time)
	assert.Equal(t, 1, b.Remaining())

	_, err = b.Bars(ctx, "XAUUSD", 3)
	require.NoError(t, err)

	_, err = b.Bars(ctx, "XAUUSD", 3)
	assert.ErrorIs(t, err, ErrFeedExhausted)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTickRequiresStartedFeed(t *testing.T) {
	b := newBroker(flat(3)...)
	ctx := context.Background()

	_, err := b.Tick(ctx, "XAUUSD")
	assert.ErrorIs(t, err, broker.ErrNoPrice)

	_, err = b.Bars(ctx, "XAUUSD", 2)
	require.NoError(t, err)

	tick, err := b.Tick(ctx, "XAUUSD")
	require.NoError(t, err)
	assert.InDelta(t, 1999.9, tick.Bid, 1e-9)
	assert.InDelta(t, 2000.1, tick.Ask, 1e-9)

	_, err = b.Tick(ctx, "EURUSD")
	assert.ErrorIs(t, err, broker.ErrNoPrice)
}

func TestBuyStoppedOut(t *testing.T) {
	rows := append(flat(3), [4]float64{2000, 2000.5, 1990, 1992})
	b := newBroker(rows...)
	ctx := context.Background()

	_, err := b.Bars(ctx, "XAUUSD", 3)
	require.NoError(t, err)

	res, err := b.PlaceOrder(ctx, broker.OrderRequest{
		Symbol: "XAUUSD", Direction: market.Buy, Volume: 0.1, StopLoss: 1995, TakeProfit: 2010,
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.String())
	assert.InDelta(t, 2000.1, res.Price, 1e-9)

	pos, err := b.Positions(ctx, "XAUUSD")
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, res.OrderID, pos[0].Ticket)

	_, err = b.Bars(ctx, "XAUUSD", 3)
	require.NoError(t, err)

	pos, err = b.Positions(ctx, "XAUUSD")
	require.NoError(t, err)
	assert.Empty(t, pos)

	deal, ok, err := b.Deal(ctx, res.OrderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, broker.ReasonStopLoss, deal.Reason)
	assert.Equal(t, 1995.0, deal.ClosePrice)
	assert.InDelta(t, -51.0, deal.Profit, 1e-6)

	acct, err := b.Account(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 9949.0, acct.Balance, 1e-6)
}

func TestSellTakesProfit(t *testing.T) {
	rows := append(flat(3), [4]float64{2000, 2000.5, 1985, 1988})
	b := newBroker(rows...)
	ctx := context.Background()

	_, err := b.Bars(ctx, "XAUUSD", 3)
	require.NoError(t, err)

	res, err := b.PlaceOrder(ctx, broker.OrderRequest{
		Symbol: "XAUUSD", Direction: market.Sell, Volume: 0.1, StopLoss: 2005, TakeProfit: 1990,
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	_, err = b.Bars(ctx, "XAUUSD", 3)
	require.NoError(t, err)

	deal, ok, err := b.Deal(ctx, res.OrderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, broker.ReasonTakeProfit, deal.Reason)
	assert.InDelta(t, 99.0, deal.Profit, 1e-6)
}

func TestClosePosition(t *testing.T) {
	b := newBroker(flat(4)...)
	ctx := context.Background()

	_, err := b.Bars(ctx, "XAUUSD", 3)
	require.NoError(t, err)
	res, err := b.PlaceOrder(ctx, broker.OrderRequest{Symbol: "XAUUSD", Direction: market.Buy, Volume: 0.01})
	require.NoError(t, err)
	require.True(t, res.Success)

	_, ok, err := b.Deal(ctx, res.OrderID)
	require.NoError(t, err)
	assert.False(t, ok, "open positions have no deal")

	b.InjectCloseFailures(1)
	req := broker.CloseRequest{Ticket: res.OrderID, Symbol: "XAUUSD", Side: market.Sell, Volume: 0.01, Price: 1999.9}

	failed, err := b.ClosePosition(ctx, req)
	require.NoError(t, err)
	assert.False(t, failed.Success)
	assert.Equal(t, broker.CodeRejected, failed.Code)

	closed, err := b.ClosePosition(ctx, req)
	require.NoError(t, err)
	assert.True(t, closed.Success)
	assert.InDelta(t, 1999.9, closed.Price, 1e-9)

	deal, ok, err := b.Deal(ctx, res.OrderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, broker.ReasonClosed, deal.Reason)

	again, err := b.ClosePosition(ctx, req)
	assert.ErrorIs(t, err, ErrPositionNotFound)
	assert.Equal(t, broker.CodePositionClosed, again.Code)
}

func TestClosePositionRejectsSameSide(t *testing.T) {
	b := newBroker(flat(4)...)
	ctx := context.Background()

	_, err := b.Bars(ctx, "XAUUSD", 3)
	require.NoError(t, err)
	res, err := b.PlaceOrder(ctx, broker.OrderRequest{Symbol: "XAUUSD", Direction: market.Buy, Volume: 0.01})
	require.NoError(t, err)
	require.True(t, res.Success)

	out, err := b.ClosePosition(ctx, broker.CloseRequest{Ticket: res.OrderID, Symbol: "XAUUSD", Side: market.Buy, Volume: 0.01})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, broker.CodeRejected, out.Code)

	positions, err := b.Positions(ctx, "XAUUSD")
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestRequestedPriceDeviation(t *testing.T) {
	b := New(feed(flat(4)...), Options{Symbol: "XAUUSD", Balance: 10000, Spread: 0.2, Deviation: 0.5})
	ctx := context.Background()

	_, err := b.Bars(ctx, "XAUUSD", 3)
	require.NoError(t, err)

	stale, err := b.PlaceOrder(ctx, broker.OrderRequest{Symbol: "XAUUSD", Direction: market.Buy, Volume: 0.01, Price: 1998})
	require.NoError(t, err)
	assert.False(t, stale.Success)
	assert.Equal(t, broker.CodeRequote, stale.Code)
	assert.InDelta(t, 2000.1, stale.Price, 1e-9)

	res, err := b.PlaceOrder(ctx, broker.OrderRequest{Symbol: "XAUUSD", Direction: market.Buy, Volume: 0.01, Price: 2000.1})
	require.NoError(t, err)
	require.True(t, res.Success, res.String())
	assert.InDelta(t, 2000.1, res.Price, 1e-9)

	pos := market.Position{Ticket: res.OrderID, Symbol: "XAUUSD", Direction: market.Buy, Volume: 0.01}
	req := broker.NewCloseRequest(pos, market.Tick{Bid: 2005, Ask: 2005.2}, broker.ReasonClosed)
	assert.Equal(t, market.Sell, req.Side)
	assert.Equal(t, 2005.0, req.Price)

	requoted, err := b.ClosePosition(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, broker.CodeRequote, requoted.Code)

	req.Price = 1999.9
	closed, err := b.ClosePosition(ctx, req)
	require.NoError(t, err)
	assert.True(t, closed.Success, closed.String())
}

func TestPlaceOrderRejectsBadStops(t *testing.T) {
	b := newBroker(flat(3)...)
	ctx := context.Background()

	_, err := b.Bars(ctx, "XAUUSD", 3)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  broker.OrderRequest
		code int
	}{
		{"buy stop above", broker.OrderRequest{Direction: market.Buy, Volume: 0.01, StopLoss: 2001}, broker.CodeInvalidStops},
		{"sell target above", broker.OrderRequest{Direction: market.Sell, Volume: 0.01, StopLoss: 2005, TakeProfit: 2001}, broker.CodeInvalidStops},
		{"zero volume", broker.OrderRequest{Direction: market.Buy}, broker.CodeRejected},
		{"wait", broker.OrderRequest{Volume: 0.01}, broker.CodeRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Symbol = "XAUUSD"
			res, err := b.PlaceOrder(ctx, tt.req)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.code, res.Code)
		})
	}
}

func TestClosedBrokerRefusesCalls(t *testing.T) {
	b := newBroker(flat(3)...)
	require.NoError(t, b.Close())

	_, err := b.Bars(context.Background(), "XAUUSD", 3)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = b.Account(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
