package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rustyeddy/trendtrader/ledger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the trade ledger",
	Long: `Read the trade ledger configured under ledger.type and ledger.path.

Subcommands:
  list    - List every entry
  open    - List entries still open
  summary - Win rate, net P/L and profit factor

Examples:
  trendtrader ledger list
  trendtrader ledger summary --org > trades.org
  trendtrader ledger open --path ./trades_log.csv`,
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every ledger entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ctx context.Context, l *ledger.Ledger) error {
			entries, err := l.Entries(ctx)
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), entries)
		})
	},
}

var ledgerOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "List open ledger entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ctx context.Context, l *ledger.Ledger) error {
			entries, err := l.OpenEntries(ctx)
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), entries)
		})
	},
}

var ledgerSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarise closed trades",
	RunE:  runLedgerSummary,
}

var (
	ledgerPath string
	ledgerType string
	ledgerOrg  bool
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerOpenCmd)
	ledgerCmd.AddCommand(ledgerSummaryCmd)

	ledgerCmd.PersistentFlags().StringVar(&ledgerPath, "path", "", "ledger file (overrides ledger.path)")
	ledgerCmd.PersistentFlags().StringVar(&ledgerType, "type", "", "ledger store: csv or sqlite (overrides ledger.type)")
	ledgerCmd.PersistentFlags().BoolVar(&ledgerOrg, "org", false, "write Org-mode instead of plain text")
}

func withLedger(fn func(ctx context.Context, l *ledger.Ledger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if ledgerPath != "" {
		cfg.Ledger.Path = ledgerPath
	}
	if ledgerType != "" {
		cfg.Ledger.Type = ledgerType
	}

	store, err := cfg.OpenLedgerStore()
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	return fn(context.Background(), ledger.New(store, cfg.LedgerOptions(), zap.NewNop()))
}

func printEntries(w io.Writer, entries []ledger.Entry) error {
	if ledgerOrg {
		for _, e := range entries {
			fmt.Fprint(w, ledger.FormatEntryOrg(e))
		}
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No ledger entries")
		return nil
	}
	fmt.Fprintf(w, "%-26s %-4s %6s %10s %10s %10s %-6s %10s  %s\n",
		"ORDER", "SIDE", "LOTS", "PRICE", "SL", "TP", "STATUS", "P/L", "REASON")
	for _, e := range entries {
		pl := "-"
		if !e.Open() {
			pl = fmt.Sprintf("%.2f", e.ProfitLoss)
		}
		fmt.Fprintf(w, "%-26s %-4s %6.2f %10.2f %10.2f %10.2f %-6s %10s  %s\n",
			e.OrderID, e.OrderType, e.LotSize, e.Price, e.StopLoss, e.TakeProfit, e.Status, pl, e.CloseReason)
	}
	return nil
}

func runLedgerSummary(cmd *cobra.Command, args []string) error {
	return withLedger(func(ctx context.Context, l *ledger.Ledger) error {
		entries, err := l.Entries(ctx)
		if err != nil {
			return err
		}
		s := ledger.Summarize(entries)

		out := cmd.OutOrStdout()
		if ledgerOrg {
			return s.WriteOrg(out, "Trade ledger", entries)
		}

		fmt.Fprintf(out, "Closed trades:  %d (%d open)\n", s.Trades, s.Open)
		fmt.Fprintf(out, "Wins/Losses:    %d / %d\n", s.Wins, s.Losses)
		fmt.Fprintf(out, "Win rate:       %.1f%%\n", s.WinRate*100)
		fmt.Fprintf(out, "Net P/L:        %.2f\n", s.NetPL)
		fmt.Fprintf(out, "Gross profit:   %.2f\n", s.GrossProfit)
		fmt.Fprintf(out, "Gross loss:     %.2f\n", s.GrossLoss)
		fmt.Fprintf(out, "Profit factor:  %.2f\n", s.ProfitFactor)
		return nil
	})
}
