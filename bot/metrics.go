package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Cycles          prometheus.Counter
	Signals         *prometheus.CounterVec
	OrdersPlaced    prometheus.Counter
	OrdersFailed    prometheus.Counter
	ReconcileCloses prometheus.Counter
	EarlyExits      prometheus.Counter
	LedgerFailures  prometheus.Counter
	LastBarTime     prometheus.Gauge
}

// NewMetrics registers the bot's collectors with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "trendtrader_cycles_total", Help: "Decision cycles run",
		}),
		Signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trendtrader_signals_total", Help: "Decisions by direction",
		}, []string{"direction"}),
		OrdersPlaced: f.NewCounter(prometheus.CounterOpts{
			Name: "trendtrader_orders_placed_total", Help: "Orders accepted by the broker",
		}),
		OrdersFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "trendtrader_orders_failed_total", Help: "Orders the broker rejected or failed to send",
		}),
		ReconcileCloses: f.NewCounter(prometheus.CounterOpts{
			Name: "trendtrader_reconcile_closes_total", Help: "Opposite positions closed before a new order",
		}),
		EarlyExits: f.NewCounter(prometheus.CounterOpts{
			Name: "trendtrader_early_exits_total", Help: "Positions closed by the early exit check",
		}),
		LedgerFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "trendtrader_ledger_failures_total", Help: "Ledger writes that failed",
		}),
		LastBarTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "trendtrader_last_traded_bar_timestamp_seconds", Help: "Unix time of the last bar an order was placed on",
		}),
	}
}
