package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.5, cfg.PositionSizing.RiskPerTradePct)
	assert.Equal(t, 25000.0, cfg.Compliance.PDTMinEquity)
	assert.Equal(t, 5, cfg.Compliance.WindowBusinessDays)
	assert.True(t, cfg.Execution.PreferLimitOrders)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trading.yaml")
	data := `
position_sizing:
  risk_per_trade_pct: 1.0
portfolio_risk:
  daily_loss_limit_pct: -3.0
universe:
  symbols: [SPY]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 1.0, cfg.PositionSizing.RiskPerTradePct)
	assert.Equal(t, -3.0, cfg.PortfolioRisk.DailyLossLimitPct)
	assert.Equal(t, []string{"SPY"}, cfg.Universe.Symbols)
	// untouched sections keep defaults
	assert.Equal(t, 10.0, cfg.PortfolioRisk.MaxDrawdownPct)
	assert.Equal(t, 25000.0, cfg.Compliance.PDTMinEquity)
}

func TestLoadConfigRejectsBadThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	data := `
portfolio_risk:
  daily_loss_limit_pct: 2.0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily_loss_limit_pct")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("does/not/exist.yaml")
	require.Error(t, err)
}

func TestValidateRecoveryBelowMaxDrawdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PortfolioRisk.RecoveryThresholdPct = 12.0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recovery_threshold_pct")
}
