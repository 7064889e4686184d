package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(1116), cfg.Chain.ChainID)
	assert.Equal(t, 0.003, cfg.Arbitrage.MinProfitThreshold)
	assert.Equal(t, 0.001, cfg.Arbitrage.ReportThreshold)
	assert.Equal(t, 30*time.Second, cfg.Monitoring.ScanInterval.Duration)
	assert.Equal(t, "scan", cfg.Mode)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.Chain.RPCURLs = nil
	cfg.Arbitrage.ReportThreshold = 0.005 // above min_profit_threshold
	cfg.Risk.GasLimitPerTx = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "rpc_urls")
	assert.Contains(t, err.Error(), "report_threshold must be strictly below")
	assert.Contains(t, err.Error(), "gas_limit_per_tx")
}

func TestValidateReportEqualToFloorRejected(t *testing.T) {
	cfg := Defaults()
	cfg.Arbitrage.ReportThreshold = cfg.Arbitrage.MinProfitThreshold

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strictly below")
}

func TestValidateTradeModeRequiresKey(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	require.Error(t, cfg.Validate())

	cfg.Wallet.PrivateKey = "0xdeadbeef"
	require.NoError(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "monitor"
log_level = "debug"

[chain]
rpc_urls = ["https://rpc-a.example", "https://rpc-b.example"]
chain_id = 1116
call_timeout = "3s"

[arbitrage]
min_profit_threshold = 0.01
report_threshold = 0.002
trade_size = 2.5

[monitoring]
scan_interval = "15s"

[tokens]
WCORE = "0x40375C92d9FAf44d2f9db9Bd9ba41a3317a2404f"
ICE = "0xc0E49f8C615d3d4c245970F6Dc528E4A47d69a44"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, []string{"https://rpc-a.example", "https://rpc-b.example"}, cfg.Chain.RPCURLs)
	assert.Equal(t, 3*time.Second, cfg.Chain.CallTimeout.Duration)
	assert.Equal(t, 0.01, cfg.Arbitrage.MinProfitThreshold)
	assert.Equal(t, 2.5, cfg.Arbitrage.TradeSize)
	assert.Equal(t, 15*time.Second, cfg.Monitoring.ScanInterval.Duration)
	assert.Len(t, cfg.Tokens, 2)

	// Defaults untouched by the file survive the merge.
	assert.Equal(t, uint64(300_000), cfg.Risk.GasLimitPerTx)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEXARB_MODE", "trade")
	t.Setenv("DEXARB_WALLET_PRIVATE_KEY", "0xabc123")
	t.Setenv("DEXARB_CHAIN_RPC_URLS", "https://one.example, https://two.example")
	t.Setenv("DEXARB_ARBITRAGE_MIN_PROFIT_THRESHOLD", "0.02")
	t.Setenv("DEXARB_MONITORING_SCAN_INTERVAL", "45s")
	t.Setenv("DEXARB_RISK_GAS_LIMIT_PER_TX", "500000")
	t.Setenv("DEXARB_SERVER_ENABLED", "false")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "trade", cfg.Mode)
	assert.Equal(t, "0xabc123", cfg.Wallet.PrivateKey)
	assert.Equal(t, []string{"https://one.example", "https://two.example"}, cfg.Chain.RPCURLs)
	assert.Equal(t, 0.02, cfg.Arbitrage.MinProfitThreshold)
	assert.Equal(t, 45*time.Second, cfg.Monitoring.ScanInterval.Duration)
	assert.Equal(t, uint64(500_000), cfg.Risk.GasLimitPerTx)
	assert.False(t, cfg.Server.Enabled)
}

func TestEnvOverridesIgnoreMalformed(t *testing.T) {
	t.Setenv("DEXARB_RISK_GAS_LIMIT_PER_TX", "not-a-number")
	t.Setenv("DEXARB_MONITORING_SCAN_INTERVAL", "soon")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, uint64(300_000), cfg.Risk.GasLimitPerTx)
	assert.Equal(t, 30*time.Second, cfg.Monitoring.ScanInterval.Duration)
}
