// Package app 负责应用级编排：装配依赖，启动扫描循环、HTTP 服务、
// Telegram 命令通道与余额快照任务。
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"talon/internal/config"
	"talon/internal/engine"
	"talon/internal/gateway/binance"
	"talon/internal/logger"
	"talon/internal/risk"
	"talon/internal/scheduler"
	"talon/internal/store/gormstore"
	"talon/internal/telegram"
	livehttp "talon/internal/transport/http/live"
)

type App struct {
	cfg     *config.Config
	store   *gormstore.Store
	source  *binance.Source
	broker  *binance.Broker
	risk    *risk.Manager
	engine  *engine.Engine
	httpSrv *livehttp.Server
	bot     *telegram.Bot
}

// Engine 暴露引擎实例（测试与回放用）。
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

// SubscribeConfig 把配置热更新接到引擎上。
func (a *App) SubscribeConfig(w *config.Watcher) {
	if a == nil || w == nil {
		return
	}
	w.Subscribe(a.engine.ApplyConfig)
}

// Run 启动全部后台任务，直到 ctx 取消或任一任务出错。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		loop := scheduler.NewLoop(ctx, a.cfg.Trading.ScanInterval(), a.cfg.Trading.ErrorBackoff())
		loop.RunImmediately = true
		loop.Start(func() error {
			return a.engine.Scan(ctx)
		})
		return nil
	})

	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if a.bot != nil {
		group.Go(func() error {
			err := a.bot.Run(ctx)
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("telegram bot error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		a.snapshotBalances(ctx)
		return nil
	})

	err := group.Wait()
	a.close()
	return err
}

// snapshotBalances 周期性落盘账户余额，供回撤计算与权益曲线使用。
func (a *App) snapshotBalances(ctx context.Context) {
	interval := a.cfg.Store.SnapshotInterval()
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bal, err := a.broker.AccountBalance(ctx)
			if err != nil {
				logger.Warnf("app: balance snapshot fetch failed: %v", err)
				continue
			}
			// 先过一遍风控更新峰值，再连同峰值一起落盘。
			a.risk.CheckDrawdown(bal.Total)
			peak := a.risk.Metrics().PeakBalance
			if err := a.store.SaveBalanceSnapshot(ctx, bal.Total, bal.Available, peak); err != nil {
				logger.Warnf("app: balance snapshot save failed: %v", err)
			}
		}
	}
}

func (a *App) close() {
	if a.broker != nil {
		_ = a.broker.Close()
	}
	if a.source != nil {
		_ = a.source.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
