package app

import (
	"context"
	"fmt"

	"talon/internal/config"
	"talon/internal/engine"
	"talon/internal/gateway/binance"
	"talon/internal/gateway/notifier"
	"talon/internal/logger"
	"talon/internal/risk"
	"talon/internal/store/gormstore"
	"talon/internal/store/importer"
	"talon/internal/telegram"
	livehttp "talon/internal/transport/http/live"
	"talon/internal/watchlist"
)

// Build 按依赖顺序装配应用：持久层 → 行情/执行 → 风控 → 引擎 →
// 操作员接口。任何一步失败都直接返回，不启动半成品。
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	store, err := gormstore.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// 旧版 JSON 状态文件只在首次启动时迁移一次。
	if cfg.Store.LegacyDataPath != "" {
		if err := migrateLegacyData(ctx, store, cfg.Store.LegacyDataPath); err != nil {
			logger.Warnf("app: legacy data migration skipped: %v", err)
		}
	}

	gwCfg := binance.Config{
		APIKey:           cfg.Binance.APIKey,
		APISecret:        cfg.Binance.APISecret,
		RESTBaseURL:      cfg.Binance.RESTBaseURL,
		HTTPTimeout:      cfg.Binance.HTTPTimeout(),
		ProxyEnabled:     cfg.Binance.ProxyEnabled,
		RESTProxyURL:     cfg.Binance.RESTProxyURL,
		BreakerThreshold: cfg.Binance.BreakerThreshold,
		BreakerCooldown:  cfg.Binance.BreakerCooldown(),
	}
	source, err := binance.NewSource(gwCfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building market source: %w", err)
	}
	broker, err := binance.NewBroker(gwCfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building broker: %w", err)
	}

	instruments, err := watchlist.Load(cfg.App.WatchlistPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading watchlist: %w", err)
	}

	riskMgr := risk.NewManager(risk.Limits{
		InitialBalance:     cfg.Risk.InitialBalance,
		DefaultTradeAmount: cfg.Trading.DefaultTradeAmount,
		MaxPositionSize:    cfg.Trading.MaxPositionSize,
		MaxDrawdownPct:     cfg.Risk.MaxDrawdownPct,
		StopLossPct:        cfg.Strategy.StopLossPct,
		TakeProfitPct:      cfg.Strategy.TakeProfitPct,
		MaxDailyTrades:     cfg.Risk.MaxDailyTrades,
	})

	var notify notifier.TextNotifier = notifier.Noop{}
	if cfg.Telegram.Enabled {
		notify = notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}

	eng := engine.New(engine.Deps{
		Source:      source,
		Broker:      broker,
		Store:       store,
		Risk:        riskMgr,
		Notifier:    notify,
		Instruments: instruments,
		Strategy:    cfg.Strategy,
		Enabled:     cfg.Trading.Enabled,
	})

	httpSrv, err := livehttp.NewServer(livehttp.ServerConfig{
		Addr:        cfg.App.HTTPAddr,
		Engine:      eng,
		Broker:      broker,
		Store:       store,
		Source:      source,
		Instruments: instruments,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building http server: %w", err)
	}

	var bot *telegram.Bot
	if cfg.Telegram.Enabled {
		bot, err = telegram.NewBot(telegram.Config{
			BotToken:       cfg.Telegram.BotToken,
			ChatID:         cfg.Telegram.ChatID,
			AllowedChatIDs: cfg.Telegram.AllowedChatIDs,
			PollTimeoutSec: cfg.Telegram.PollTimeoutSec,
		}, telegram.Deps{
			Engine: eng,
			Broker: broker,
			Store:  store,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("building telegram bot: %w", err)
		}
	}

	logger.Infof("app: assembled, %d instruments, trading enabled=%v", len(instruments), cfg.Trading.Enabled)
	return &App{
		cfg:     cfg,
		store:   store,
		source:  source,
		broker:  broker,
		risk:    riskMgr,
		engine:  eng,
		httpSrv: httpSrv,
		bot:     bot,
	}, nil
}

// migrateLegacyData 把旧版 JSON 状态导入 SQLite。已有成交记录时跳过，
// 避免重复导入。
func migrateLegacyData(ctx context.Context, store *gormstore.Store, path string) error {
	stats, err := store.AggregateStats(ctx)
	if err != nil {
		return err
	}
	existing, err := store.GetRecentTrades(ctx, 365)
	if err != nil {
		return err
	}
	if stats.TotalTrades > 0 || len(existing) > 0 {
		logger.Debugf("app: store already has trades, legacy import skipped")
		return nil
	}
	res, err := importer.Run(ctx, store, path)
	if err != nil {
		return err
	}
	logger.Infof("app: legacy data imported, trades=%d balances=%d backup=%v",
		res.Trades, res.BalanceSnapshots, res.UsedBackup)
	return nil
}
