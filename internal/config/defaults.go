package config

import "strings"

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":9982"
	defaultAppLogPath       = "data/logs/talon.log"
	defaultWatchlistPath    = "configs/watchlist.yaml"
	defaultBinanceREST      = "https://fapi.binance.com"
	defaultBinanceTimeout   = 15
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 60
	defaultScanInterval     = 60
	defaultErrorBackoff     = 30
	defaultTradeAmount      = 15.0
	defaultMaxPositionSize  = 100.0
	defaultTrendPeriod      = 20
	defaultRSIPeriod        = 14
	defaultRSIOversold      = 30.0
	defaultRSIOverbought    = 70.0
	defaultStopLossPct      = 3.0
	defaultTakeProfitPct    = 6.0
	defaultMaxDrawdownPct   = 10.0
	defaultMaxDailyTrades   = 50
	defaultPollTimeout      = 30
	defaultStorePath        = "data/talon.db"
	defaultSnapshotInterval = 900
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Binance.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Telegram.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.watchlist_path", &a.WatchlistPath, defaultWatchlistPath),
	)
}

func (b *BinanceConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("binance.rest_base_url", &b.RESTBaseURL, defaultBinanceREST),
		intFieldDefault("binance.http_timeout_seconds", &b.HTTPTimeoutSeconds, defaultBinanceTimeout),
		intFieldDefault("binance.breaker_threshold", &b.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("binance.breaker_cooldown_seconds", &b.BreakerCooldownSec, defaultBreakerCooldown),
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("trading.enabled", &t.Enabled, true),
		intFieldDefault("trading.scan_interval_seconds", &t.ScanIntervalSeconds, defaultScanInterval),
		intFieldDefault("trading.error_backoff_seconds", &t.ErrorBackoffSeconds, defaultErrorBackoff),
		floatFieldDefault("trading.default_trade_amount", &t.DefaultTradeAmount, defaultTradeAmount),
		floatFieldDefault("trading.max_position_size", &t.MaxPositionSize, defaultMaxPositionSize),
	)
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("strategy.trend_period", &s.TrendPeriod, defaultTrendPeriod),
		intFieldDefault("strategy.rsi_period", &s.RSIPeriod, defaultRSIPeriod),
		floatFieldDefault("strategy.rsi_oversold", &s.RSIOversold, defaultRSIOversold),
		floatFieldDefault("strategy.rsi_overbought", &s.RSIOverbought, defaultRSIOverbought),
		floatFieldDefault("strategy.stop_loss_pct", &s.StopLossPct, defaultStopLossPct),
		floatFieldDefault("strategy.take_profit_pct", &s.TakeProfitPct, defaultTakeProfitPct),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("risk.max_drawdown_pct", &r.MaxDrawdownPct, defaultMaxDrawdownPct),
		intFieldDefault("risk.max_daily_trades", &r.MaxDailyTrades, defaultMaxDailyTrades),
	)
}

func (t *TelegramConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("telegram.poll_timeout_seconds", &t.PollTimeoutSec, defaultPollTimeout),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
		intFieldDefault("store.balance_snapshot_interval_seconds", &s.SnapshotIntervalSec, defaultSnapshotInterval),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return true },
		apply: func() { *target = def },
	}
}
