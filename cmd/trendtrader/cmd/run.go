package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rustyeddy/trendtrader/bot"
	"github.com/rustyeddy/trendtrader/broker/paper"
	"github.com/rustyeddy/trendtrader/config"
	"github.com/rustyeddy/trendtrader/ledger"
	"github.com/rustyeddy/trendtrader/logging"
	"github.com/rustyeddy/trendtrader/market"
	"github.com/rustyeddy/trendtrader/reconcile"
	"github.com/rustyeddy/trendtrader/strategy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the polling trade loop",
	Long: `Run the trading bot. Every interval it fetches the latest bars, decides
BUY, SELL or WAIT, closes an opposing position, sizes and places the order and
records it in the ledger.

The paper broker replays a CSV bar file one bar per cycle and stops when the
file is exhausted.

Examples:
  trendtrader run -c bot.yaml
  trendtrader run --bars data/xauusd-m1.csv --interval 0 --max-cycles 500`,
	RunE: runBot,
}

var (
	runBarsFile  string
	runInterval  time.Duration
	runMaxCycles int
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runBarsFile, "bars", "", "CSV bar file for the paper broker (overrides broker.bars_file)")
	runCmd.Flags().DurationVar(&runInterval, "interval", -1, "cycle interval; 0 runs cycles back to back (overrides interval)")
	runCmd.Flags().IntVar(&runMaxCycles, "max-cycles", 0, "stop after N cycles (0 = until interrupted or data runs out)")
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runBarsFile != "" {
		cfg.Broker.BarsFile = runBarsFile
	}
	if runInterval >= 0 {
		cfg.Interval = config.Duration(runInterval)
	}
	if cfg.Broker.BarsFile == "" {
		return errors.New("paper broker needs a bar file: set broker.bars_file or --bars")
	}

	log, cleanup, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, closeFn, err := buildBot(cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	return b.Run(ctx)
}

// buildBot wires every collaborator from cfg. The returned func releases
// the ledger store and the metrics server.
func buildBot(cfg *config.Config, log *zap.Logger) (*bot.Bot, func(), error) {
	feed, err := market.LoadBarsCSV(cfg.Broker.BarsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load bars: %w", err)
	}
	if i := feed.Validate(); i >= 0 {
		return nil, nil, fmt.Errorf("%s: bar %d is out of order or malformed", cfg.Broker.BarsFile, i)
	}

	engine, err := strategy.NewEngine(cfg.Strategy)
	if err != nil {
		return nil, nil, fmt.Errorf("strategy: %w", err)
	}

	store, err := cfg.OpenLedgerStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}

	brk := paper.New(feed, paper.Options{
		Symbol:    cfg.Symbol,
		Balance:   cfg.Broker.Balance,
		Spread:    cfg.Broker.Spread,
		Deviation: cfg.Broker.Deviation,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := bot.NewMetrics(reg)
	srv := serveMetrics(cfg.MetricsAddr, reg, log)

	closeFn := func() {
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = srv.Shutdown(shutdownCtx)
			cancel()
		}
		if err := store.Close(); err != nil {
			log.Warn("ledger close", zap.Error(err))
		}
	}

	deps := bot.Deps{
		Broker:     brk,
		Engine:     engine,
		Sizer:      cfg.Sizer(),
		Reconciler: reconcile.New(brk, cfg.ReconcileOptions(), log),
		Ledger:     ledger.New(store, cfg.LedgerOptions(), log),
		Metrics:    metrics,
		Logger:     log,
	}
	if cfg.Ledger.MarkerPath != "" {
		deps.Marker = ledger.NewMarker(cfg.Ledger.MarkerPath)
	}

	b, err := bot.New(deps, bot.Options{
		Symbol:        cfg.Symbol,
		BarCount:      cfg.BarCount,
		Interval:      cfg.Interval.D(),
		EarlyExit:     cfg.EarlyExit.Enabled,
		EarlyExitBars: cfg.EarlyExit.Bars,
		EarlyExitEMA:  cfg.EarlyExit.EMASpan,
		MaxCycles:     runMaxCycles,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return b, closeFn, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}
