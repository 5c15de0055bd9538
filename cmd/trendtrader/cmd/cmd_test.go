package cmd

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/trendtrader/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, envFile = "", filepath.Join(t.TempDir(), "missing.env")
	runBarsFile, runInterval, runMaxCycles = "", -1, 0
	decideBarsFile, decideWalk = "", false
	configInitBars = ""
	ledgerPath, ledgerType, ledgerOrg = "", "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--env-file", envFile))
	err := rootCmd.Execute()
	return out.String(), err
}

// writeUptrend writes n rising minute bars, closes 2001 upward.
func writeUptrend(t *testing.T, n int) string {
	t.Helper()
	var b bytes.Buffer
	b.WriteString("time,open,high,low,close\n")
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	p := 2000.0
	for i := 0; i < n; i++ {
		o, c := p, p+1
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f\n",
			start.Add(time.Duration(i)*time.Minute).Format(time.RFC3339), o, math.Max(o, c)+0.5, math.Min(o, c)-0.5, c)
		p = c
	}
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0644))
	return path
}

// writeConfig saves a default config whose files live under a temp dir.
func writeConfig(t *testing.T, bars string) (cfgPath, ledgerPath string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Broker.BarsFile = bars
	cfg.Ledger.Path = filepath.Join(dir, "trades_log.csv")
	cfg.Ledger.MarkerPath = filepath.Join(dir, "last_trade.json")
	cfg.Log.Level = "warn"

	cfgPath = filepath.Join(dir, "bot.yaml")
	require.NoError(t, cfg.SaveToFile(cfgPath))
	return cfgPath, cfg.Ledger.Path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "trendtrader version "+version)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")

	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Created default configuration")
	assert.FileExists(t, path)

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Configuration valid")
	assert.Contains(t, out, "XAUUSD")
}

func TestConfigInitRecordsBarFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.json")
	bars := writeUptrend(t, 20)

	out, err := execute(t, "config", "init", "-o", path, "--bars", bars)
	require.NoError(t, err)
	assert.Contains(t, out, "Start the bot with")

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, bars, cfg.Broker.BarsFile)

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Bars: "+bars)
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbol: NOPE\n"), 0644))

	_, err := execute(t, "config", "validate", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown symbol")
}

func TestDecide(t *testing.T) {
	bars := writeUptrend(t, 55)

	out, err := execute(t, "decide", "--bars", bars)
	require.NoError(t, err)
	assert.Contains(t, out, "Signal: BUY")
	assert.Contains(t, out, "SuperTrend: up")
}

func TestDecideNotEnoughData(t *testing.T) {
	bars := writeUptrend(t, 5)

	out, err := execute(t, "decide", "--bars", bars)
	require.NoError(t, err)
	assert.Contains(t, out, "WAIT (not enough data")
}

func TestDecideWalk(t *testing.T) {
	bars := writeUptrend(t, 55)

	out, err := execute(t, "decide", "--bars", bars, "--walk")
	require.NoError(t, err)
	assert.Regexp(t, `✓ [1-9]\d* BUY, 0 SELL, \d+ WAIT`, out)
}

func TestDecideNeedsBars(t *testing.T) {
	_, err := execute(t, "decide")
	require.Error(t, err)
}

func TestRunThenLedger(t *testing.T) {
	cfgPath, ledgerFile := writeConfig(t, writeUptrend(t, 55))

	_, err := execute(t, "run", "-c", cfgPath, "--interval", "0", "--max-cycles", "3")
	require.NoError(t, err)
	assert.FileExists(t, ledgerFile)

	out, err := execute(t, "ledger", "list", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "OPEN")

	out, err = execute(t, "ledger", "open", "--path", ledgerFile, "--org")
	require.NoError(t, err)
	assert.Contains(t, out, ":PROPERTIES:")

	out, err = execute(t, "ledger", "summary", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Closed trades:  0 (1 open)")
}

func TestRunNeedsBars(t *testing.T) {
	cfgPath, _ := writeConfig(t, "")

	_, err := execute(t, "run", "-c", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bar file")
}

func TestLedgerEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.csv")

	out, err := execute(t, "ledger", "list", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No ledger entries")
}
