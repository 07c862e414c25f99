package config

import (
	"strings"
	"time"
)

// Config 是 talon 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Binance  BinanceConfig  `toml:"binance"`
	Trading  TradingConfig  `toml:"trading"`
	Strategy StrategyConfig `toml:"strategy"`
	Risk     RiskConfig     `toml:"risk"`
	Telegram TelegramConfig `toml:"telegram"`
	Store    StoreConfig    `toml:"store"`
}

type AppConfig struct {
	Env           string `toml:"env"`
	LogLevel      string `toml:"log_level"`
	HTTPAddr      string `toml:"http_addr"`
	LogPath       string `toml:"log_path"`
	WatchlistPath string `toml:"watchlist_path"`
}

type BinanceConfig struct {
	APIKey             string `toml:"api_key"`
	APISecret          string `toml:"api_secret"`
	RESTBaseURL        string `toml:"rest_base_url"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
	ProxyEnabled       bool   `toml:"proxy_enabled"`
	RESTProxyURL       string `toml:"rest_proxy_url"`
	BreakerThreshold   int    `toml:"breaker_threshold"`
	BreakerCooldownSec int    `toml:"breaker_cooldown_seconds"`
}

func (b BinanceConfig) HTTPTimeout() time.Duration {
	return time.Duration(b.HTTPTimeoutSeconds) * time.Second
}

func (b BinanceConfig) BreakerCooldown() time.Duration {
	return time.Duration(b.BreakerCooldownSec) * time.Second
}

// TradingConfig 控制交易循环与仓位基准。
type TradingConfig struct {
	Enabled             bool    `toml:"enabled"`
	ScanIntervalSeconds int     `toml:"scan_interval_seconds"`
	ErrorBackoffSeconds int     `toml:"error_backoff_seconds"`
	DefaultTradeAmount  float64 `toml:"default_trade_amount"`
	MaxPositionSize     float64 `toml:"max_position_size"`
}

func (t TradingConfig) ScanInterval() time.Duration {
	return time.Duration(t.ScanIntervalSeconds) * time.Second
}

func (t TradingConfig) ErrorBackoff() time.Duration {
	return time.Duration(t.ErrorBackoffSeconds) * time.Second
}

type StrategyConfig struct {
	TrendPeriod   int     `toml:"trend_period"`
	RSIPeriod     int     `toml:"rsi_period"`
	RSIOversold   float64 `toml:"rsi_oversold"`
	RSIOverbought float64 `toml:"rsi_overbought"`
	StopLossPct   float64 `toml:"stop_loss_pct"`
	TakeProfitPct float64 `toml:"take_profit_pct"`
}

type RiskConfig struct {
	InitialBalance float64 `toml:"initial_balance"`
	MaxDrawdownPct float64 `toml:"max_drawdown_pct"`
	MaxDailyTrades int     `toml:"max_daily_trades"`
}

type TelegramConfig struct {
	Enabled        bool    `toml:"enabled"`
	BotToken       string  `toml:"bot_token"`
	ChatID         string  `toml:"chat_id"`
	AllowedChatIDs []int64 `toml:"allowed_chat_ids"`
	PollTimeoutSec int     `toml:"poll_timeout_seconds"`
}

func (t TelegramConfig) PollTimeout() time.Duration {
	return time.Duration(t.PollTimeoutSec) * time.Second
}

type StoreConfig struct {
	Path                string `toml:"path"`
	SnapshotIntervalSec int    `toml:"balance_snapshot_interval_seconds"`
	LegacyDataPath      string `toml:"legacy_data_path"`
}

func (s StoreConfig) SnapshotInterval() time.Duration {
	return time.Duration(s.SnapshotIntervalSec) * time.Second
}

// keySet 追踪配置文件中显式设置过的字段路径，区分“没写”和“写了零值”。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

// fieldDefault 描述单个字段的默认值规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
