package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取 YAML 配置文件，套默认值，再用环境变量补敏感字段。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}

	setKeys := make(keySet)
	flattenConfigKeys("", v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	cfg.applyEnvOverrides()

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides 用环境变量补没写进文件的密钥，密钥不进配置文件。
// 策略与风控的数值参数沿用旧部署的环境变量名，设了就覆盖文件值。
func (c *Config) applyEnvOverrides() {
	overrideFromEnv(&c.Binance.APIKey, "BINANCE_API_KEY")
	overrideFromEnv(&c.Binance.APISecret, "BINANCE_API_SECRET")
	overrideFromEnv(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	overrideFromEnv(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")

	overrideFloatFromEnv(&c.Trading.DefaultTradeAmount, "DEFAULT_TRADE_AMOUNT")
	overrideFloatFromEnv(&c.Trading.MaxPositionSize, "MAX_POSITION_SIZE")
	overrideFloatFromEnv(&c.Risk.MaxDrawdownPct, "MAX_DRAWDOWN_PERCENT")
	overrideFloatFromEnv(&c.Strategy.StopLossPct, "STOP_LOSS_PERCENT")
	overrideFloatFromEnv(&c.Strategy.TakeProfitPct, "TAKE_PROFIT_PERCENT")
	overrideFloatFromEnv(&c.Strategy.RSIOversold, "RSI_OVERSOLD")
	overrideFloatFromEnv(&c.Strategy.RSIOverbought, "RSI_OVERBOUGHT")
	overrideIntFromEnv(&c.Strategy.TrendPeriod, "TREND_PERIOD")
	overrideIntFromEnv(&c.Strategy.RSIPeriod, "RSI_PERIOD")
}

func overrideFromEnv(target *string, envKey string) {
	if strings.TrimSpace(*target) != "" {
		return
	}
	if val := strings.TrimSpace(os.Getenv(envKey)); val != "" {
		*target = val
	}
}

func overrideFloatFromEnv(target *float64, envKey string) {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return
	}
	*target = val
}

func overrideIntFromEnv(target *int, envKey string) {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return
	}
	*target = val
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			next := strings.ToLower(strings.TrimSpace(k))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	case []any:
		if prefix != "" {
			dest.mark(prefix)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}
