package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  env: prod\n"))
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 60, cfg.Trading.ScanIntervalSeconds)
	assert.Equal(t, 30, cfg.Trading.ErrorBackoffSeconds)
	assert.Equal(t, 15.0, cfg.Trading.DefaultTradeAmount)
	assert.Equal(t, 100.0, cfg.Trading.MaxPositionSize)
	assert.True(t, cfg.Trading.Enabled)
	assert.Equal(t, 14, cfg.Strategy.RSIPeriod)
	assert.Equal(t, 30.0, cfg.Strategy.RSIOversold)
	assert.Equal(t, 3.0, cfg.Strategy.StopLossPct)
	assert.Equal(t, 10.0, cfg.Risk.MaxDrawdownPct)
	assert.Equal(t, 50, cfg.Risk.MaxDailyTrades)
	assert.Equal(t, "https://fapi.binance.com", cfg.Binance.RESTBaseURL)
}

func TestLoadExplicitValuesSurviveDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
trading:
  enabled: false
  scan_interval_seconds: 120
strategy:
  rsi_oversold: 25
`))
	require.NoError(t, err)
	// 显式写 false 不会被默认 true 覆盖。
	assert.False(t, cfg.Trading.Enabled)
	assert.Equal(t, 120, cfg.Trading.ScanIntervalSeconds)
	assert.Equal(t, 25.0, cfg.Strategy.RSIOversold)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "env-key")
	t.Setenv("BINANCE_API_SECRET", "env-secret")

	cfg, err := Load(writeConfig(t, "app: {}\n"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Binance.APIKey)
	assert.Equal(t, "env-secret", cfg.Binance.APISecret)
}

func TestLoadNumericEnvOverrides(t *testing.T) {
	// 旧部署的环境变量名，设了就覆盖文件值。
	t.Setenv("DEFAULT_TRADE_AMOUNT", "25.5")
	t.Setenv("RSI_PERIOD", "21")
	t.Setenv("STOP_LOSS_PERCENT", "not-a-number")

	cfg, err := Load(writeConfig(t, `
trading:
  default_trade_amount: 15
strategy:
  stop_loss_pct: 3
`))
	require.NoError(t, err)
	assert.Equal(t, 25.5, cfg.Trading.DefaultTradeAmount)
	assert.Equal(t, 21, cfg.Strategy.RSIPeriod)
	// 解析不了的环境变量忽略，保留文件值。
	assert.Equal(t, 3.0, cfg.Strategy.StopLossPct)
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	_, err := Load(writeConfig(t, `
strategy:
  rsi_oversold: 80
  rsi_overbought: 70
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rsi_oversold")
}

func TestValidateTelegramRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	_, err := Load(writeConfig(t, "telegram:\n  enabled: true\n"))
	assert.Error(t, err)
}
