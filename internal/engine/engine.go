// Package engine 实现交易主循环：按固定间隔扫描清单中的每个交易对，
// 依次经过指标、信号、风控，最后落到交易所下单与持久化。
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"talon/internal/config"
	"talon/internal/gateway/exchange"
	"talon/internal/gateway/notifier"
	"talon/internal/logger"
	"talon/internal/market"
	"talon/internal/metrics"
	"talon/internal/risk"
	"talon/internal/store/gormstore"
	"talon/internal/strategy"
	"talon/internal/watchlist"
)

// Deps 汇集引擎的全部外部依赖。
type Deps struct {
	Source      market.Source
	Broker      exchange.Broker
	Store       *gormstore.Store
	Risk        *risk.Manager
	Notifier    notifier.TextNotifier
	Instruments []watchlist.Instrument
	Strategy    config.StrategyConfig
	Enabled     bool
}

// Status 是对外暴露的引擎状态快照。
type Status struct {
	Enabled      bool                       `json:"enabled"`
	LastScanAt   time.Time                  `json:"last_scan_at"`
	LastScanTook string                     `json:"last_scan_took"`
	Instruments  []string                   `json:"instruments"`
	LastSignals  map[string]strategy.Signal `json:"last_signals"`
	Risk         risk.Metrics               `json:"risk"`
	Source       market.SourceStats         `json:"source"`
}

type Engine struct {
	source    market.Source
	broker    exchange.Broker
	store     *gormstore.Store
	risk      *risk.Manager
	notify    notifier.TextNotifier
	positions *positionCache

	instruments []watchlist.Instrument
	analyzers   map[string]*strategy.Analyzer

	enabled atomic.Bool

	mu           sync.Mutex
	lastSignals  map[string]strategy.Signal
	lastScanAt   time.Time
	lastScanTook time.Duration
	lastResetDay string

	nowFn func() time.Time
}

func New(deps Deps) *Engine {
	e := &Engine{
		source:      deps.Source,
		broker:      deps.Broker,
		store:       deps.Store,
		risk:        deps.Risk,
		notify:      deps.Notifier,
		instruments: deps.Instruments,
		lastSignals: make(map[string]strategy.Signal),
		nowFn:       time.Now,
	}
	if e.notify == nil {
		e.notify = notifier.Noop{}
	}
	e.positions = newPositionCache(deps.Broker)

	params := paramsFromConfig(deps.Strategy)
	e.analyzers = make(map[string]*strategy.Analyzer, len(deps.Instruments))
	for _, ins := range deps.Instruments {
		e.analyzers[ins.Symbol] = strategy.NewAnalyzer(deps.Source, e.positions, deps.Store, params, ins.Interval)
	}
	e.enabled.Store(deps.Enabled)
	e.lastResetDay = e.nowFn().UTC().Format("2006-01-02")
	return e
}

func paramsFromConfig(sc config.StrategyConfig) strategy.Params {
	return strategy.Params{
		TrendPeriod:   sc.TrendPeriod,
		RSIPeriod:     sc.RSIPeriod,
		RSIOversold:   sc.RSIOversold,
		RSIOverbought: sc.RSIOverbought,
		StopLossPct:   sc.StopLossPct,
		TakeProfitPct: sc.TakeProfitPct,
	}
}

// ApplyConfig 热更新策略与风控参数，运行开关不受影响。
func (e *Engine) ApplyConfig(cfg *config.Config) {
	params := paramsFromConfig(cfg.Strategy)
	for _, a := range e.analyzers {
		a.SetParams(params)
	}
	e.risk.SetLimits(risk.Limits{
		InitialBalance:     cfg.Risk.InitialBalance,
		DefaultTradeAmount: cfg.Trading.DefaultTradeAmount,
		MaxPositionSize:    cfg.Trading.MaxPositionSize,
		MaxDrawdownPct:     cfg.Risk.MaxDrawdownPct,
		StopLossPct:        cfg.Strategy.StopLossPct,
		TakeProfitPct:      cfg.Strategy.TakeProfitPct,
		MaxDailyTrades:     cfg.Risk.MaxDailyTrades,
	})
	logger.Infof("engine: strategy and risk parameters reloaded")
}

// Enable 打开交易循环。
func (e *Engine) Enable() {
	if !e.enabled.Swap(true) {
		logger.Infof("engine: trading enabled")
	}
}

// Disable 停止交易循环，进行中的单个交易对处理完成后即生效。
func (e *Engine) Disable() {
	if e.enabled.Swap(false) {
		logger.Infof("engine: trading disabled")
	}
}

func (e *Engine) Enabled() bool { return e.enabled.Load() }

// Status 返回当前状态快照。
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbols := make([]string, 0, len(e.instruments))
	for _, ins := range e.instruments {
		symbols = append(symbols, ins.Symbol)
	}
	signals := make(map[string]strategy.Signal, len(e.lastSignals))
	for k, v := range e.lastSignals {
		signals[k] = v
	}
	return Status{
		Enabled:      e.Enabled(),
		LastScanAt:   e.lastScanAt,
		LastScanTook: e.lastScanTook.Truncate(time.Millisecond).String(),
		Instruments:  symbols,
		LastSignals:  signals,
		Risk:         e.risk.Metrics(),
		Source:       e.source.Stats(),
	}
}

// Scan 执行一轮完整扫描。单个交易对失败只记日志并继续下一个；
// 返回错误仅在整轮都无法开展时（调度器据此退避）。
func (e *Engine) Scan(ctx context.Context) error {
	e.maybeResetDailyCounters()

	if !e.Enabled() {
		logger.Debugf("engine: trading disabled, skip scan")
		return nil
	}

	start := e.nowFn()
	for _, ins := range e.instruments {
		// 每个交易对之间再看一次开关，保证停止命令亚轮次生效。
		if !e.Enabled() {
			logger.Infof("engine: disabled mid-scan, stopping after %s", ins.Symbol)
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.processInstrument(ctx, ins); err != nil {
			logger.Errorf("engine: %s scan step failed: %v", ins.Symbol, err)
			metrics.ScanErrorsTotal.Inc()
		}
	}

	e.mu.Lock()
	e.lastScanAt = start
	e.lastScanTook = e.nowFn().Sub(start)
	e.mu.Unlock()

	metrics.ScansTotal.Inc()
	metrics.DailyTradeCount.Set(float64(e.risk.Metrics().DailyTradeCount))
	return nil
}

// maybeResetDailyCounters 在 UTC 日期翻转时清零日内交易计数。
func (e *Engine) maybeResetDailyCounters() {
	day := e.nowFn().UTC().Format("2006-01-02")
	e.mu.Lock()
	rolled := day != e.lastResetDay
	if rolled {
		e.lastResetDay = day
	}
	e.mu.Unlock()
	if rolled {
		e.risk.ResetDailyCounters()
		logger.Infof("engine: UTC day rollover, daily trade counter reset")
	}
}

func (e *Engine) recordSignal(sig strategy.Signal) {
	e.mu.Lock()
	e.lastSignals[sig.Symbol] = sig
	e.mu.Unlock()
	metrics.SignalsTotal.WithLabelValues(string(sig.Kind)).Inc()
}
