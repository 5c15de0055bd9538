package cmd

import (
	"fmt"

	"github.com/rustyeddy/trendtrader/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Work with trendtrader configuration files.

A configuration file sets the instrument and polling interval, the
decision engine parameters (ATR/SuperTrend, ADX gate, EMA confirmation
and take-profit table), the dollar risk per trade, the ledger store and
the paper broker feed. Files may be YAML or JSON; anything left out keeps
its default, and TRENDTRADER_* environment variables override the file.

Subcommands:
  init     - Write the default configuration to a file
  validate - Load a configuration file and report what it sets

Examples:
  # Start from the defaults and edit from there
  trendtrader config init -o bot.yaml

  # JSON works too
  trendtrader config init -o bot.json

  # Check a file before handing it to run
  trendtrader config validate -f bot.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write every configuration key with its default value. The format follows
the file extension: .yaml and .yml are written as YAML, anything else as JSON.

Examples:
  trendtrader config init
  trendtrader config init -o configs/xauusd.yaml --bars data/xauusd-m1.csv`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file over the defaults and check it: the symbol must
be a known instrument, the window must cover the indicator warm-up, the
strategy, risk and ledger settings must be consistent and the log level
must parse. On success the key settings are printed.

Examples:
  trendtrader config validate -f bot.yaml
  trendtrader config validate -f configs/xauusd.json`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configInitBars     string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "trendtrader.yaml", "output config file path")
	configInitCmd.Flags().StringVar(&configInitBars, "bars", "", "CSV bar file to record as broker.bars_file")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	cfg.Broker.BarsFile = configInitBars
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	if cfg.Broker.BarsFile == "" {
		fmt.Fprintln(out, "\nSet broker.bars_file, then start the bot with:")
	} else {
		fmt.Fprintln(out, "\nStart the bot with:")
	}
	fmt.Fprintf(out, "  trendtrader run -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Symbol: %s every %s (%d bars)\n", cfg.Symbol, cfg.Interval.D(), cfg.BarCount)
	fmt.Fprintf(out, "  Strategy: %s confirmation, ADX >= %.1f\n", cfg.Strategy.Confirmation, cfg.Strategy.ADXThreshold)
	fmt.Fprintf(out, "  Risk: $%.2f per trade\n", cfg.Risk.RiskDollars)
	fmt.Fprintf(out, "  Ledger: %s %s\n", cfg.Ledger.Type, cfg.Ledger.Path)
	fmt.Fprintf(out, "  Broker: %s, balance %.2f, spread %.2f\n", cfg.Broker.Mode, cfg.Broker.Balance, cfg.Broker.Spread)
	if cfg.Broker.BarsFile != "" {
		fmt.Fprintf(out, "  Bars: %s\n", cfg.Broker.BarsFile)
	}
	return nil
}
