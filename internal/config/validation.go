package config

import (
	"fmt"
	"strings"
)

// validate 做基础校验，开仓参数错了宁可启动失败。
func validate(c *Config) error {
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Telegram.validate(); err != nil {
		return err
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if t.DefaultTradeAmount <= 0 {
		return fmt.Errorf("trading.default_trade_amount must be > 0")
	}
	if t.MaxPositionSize < t.DefaultTradeAmount {
		return fmt.Errorf("trading.max_position_size must be >= default_trade_amount")
	}
	if t.ScanIntervalSeconds < 5 {
		return fmt.Errorf("trading.scan_interval_seconds must be >= 5")
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if s.RSIOversold >= s.RSIOverbought {
		return fmt.Errorf("strategy.rsi_oversold must be below rsi_overbought")
	}
	if s.RSIOversold <= 0 || s.RSIOverbought >= 100 {
		return fmt.Errorf("strategy RSI thresholds must be inside (0, 100)")
	}
	if s.StopLossPct <= 0 || s.TakeProfitPct <= 0 {
		return fmt.Errorf("strategy stop_loss_pct and take_profit_pct must be > 0")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxDrawdownPct <= 0 || r.MaxDrawdownPct >= 100 {
		return fmt.Errorf("risk.max_drawdown_pct must be inside (0, 100)")
	}
	if r.MaxDailyTrades <= 0 {
		return fmt.Errorf("risk.max_daily_trades must be > 0")
	}
	return nil
}

func (t *TelegramConfig) validate() error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.BotToken) == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram.enabled")
	}
	if strings.TrimSpace(t.ChatID) == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.enabled")
	}
	return nil
}
