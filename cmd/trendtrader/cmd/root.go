package cmd

import (
	"fmt"

	"github.com/rustyeddy/trendtrader/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trendtrader",
	Short: "SuperTrend/ADX/EMA trend-following trading bot",
	Long: `Trendtrader polls a market-data feed, decides BUY, SELL or WAIT from a
SuperTrend band confirmed by ADX trend strength and an EMA crossover, sizes the
order against a fixed dollar risk, closes an opposing position first, and records
every trade in a ledger.

It provides tools for:
  - Running the polling bot against a paper broker
  - Evaluating the decision engine on a CSV bar file
  - Inspecting and summarising the trade ledger
  - Generating and validating configuration files`,
	SilenceUsage: true,
}

var (
	cfgFile string
	envFile string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults apply when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with TRENDTRADER_* overrides")
}

// loadConfig resolves defaults, the config file and environment overrides.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(envFile); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(cfgFile); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
