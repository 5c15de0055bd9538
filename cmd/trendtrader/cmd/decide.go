package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/rustyeddy/trendtrader/market"
	"github.com/rustyeddy/trendtrader/strategy"
	"github.com/spf13/cobra"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Evaluate the decision engine on a CSV bar file",
	Long: `Run the decision engine over the most recent bar_count bars of a CSV file
and print the signal together with the indicator snapshot it was based on.

With --walk the engine is evaluated at every bar, using the bar_count bars
ending there, and one line is printed per actionable signal.

Examples:
  trendtrader decide --bars data/xauusd-m1.csv
  trendtrader decide --bars data/xauusd-m1.csv --walk`,
	RunE: runDecide,
}

var (
	decideBarsFile string
	decideWalk     bool
)

func init() {
	rootCmd.AddCommand(decideCmd)

	decideCmd.Flags().StringVar(&decideBarsFile, "bars", "", "CSV bar file (defaults to broker.bars_file)")
	decideCmd.Flags().BoolVar(&decideWalk, "walk", false, "evaluate every bar and list actionable signals")
}

func runDecide(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := decideBarsFile
	if path == "" {
		path = cfg.Broker.BarsFile
	}
	if path == "" {
		return errors.New("no bar file: use --bars or set broker.bars_file")
	}

	bars, err := market.LoadBarsCSV(path)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	engine, err := strategy.NewEngine(cfg.Strategy)
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	out := cmd.OutOrStdout()
	if decideWalk {
		return walkSignals(out, engine, bars, cfg.BarCount)
	}

	sig := engine.Decide(window(bars, len(bars), cfg.BarCount))
	fmt.Fprintf(out, "Signal: %s\n", sig)
	printFrame(out, sig)
	return nil
}

// window returns up to n bars ending just before end.
func window(bars market.Bars, end, n int) market.Bars {
	start := end - n
	if start < 0 {
		start = 0
	}
	return bars[start:end]
}

func walkSignals(w io.Writer, engine *strategy.Engine, bars market.Bars, n int) error {
	counts := map[market.Direction]int{}
	for end := engine.Config().MinBars(); end <= len(bars); end++ {
		sig := engine.Decide(window(bars, end, n))
		counts[sig.Direction]++
		if !sig.Actionable() {
			continue
		}
		fmt.Fprintf(w, "%s  %s\n", bars[end-1].Time.UTC().Format("2006-01-02 15:04"), sig)
	}
	fmt.Fprintf(w, "\n✓ %d BUY, %d SELL, %d WAIT\n", counts[market.Buy], counts[market.Sell], counts[market.Wait])
	return nil
}

func printFrame(w io.Writer, sig strategy.Signal) {
	f := sig.Frame
	if f.Time.IsZero() {
		return
	}
	trend := "down"
	if f.InUptrend {
		trend = "up"
	}
	fmt.Fprintf(w, "  Bar:        %s close %.2f\n", f.Time.UTC().Format("2006-01-02 15:04"), f.Close)
	fmt.Fprintf(w, "  SuperTrend: %s (lower %.2f, upper %.2f)\n", trend, f.Lower, f.Upper)
	fmt.Fprintf(w, "  ATR:        %.3f\n", f.ATR)
	fmt.Fprintf(w, "  ADX:        %.2f (+DI %.2f, -DI %.2f, slope %.2f)\n", f.ADX, f.PlusDI, f.MinusDI, sig.ADXSlope)
	fmt.Fprintf(w, "  EMA:        short %.2f, long %.2f\n", f.EMAShort, f.EMALong)
}
