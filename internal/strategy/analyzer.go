package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"talon/internal/logger"
	"talon/internal/market"
)

// 回溯窗口：100 根 K 线足以覆盖全部指标计算。
const defaultLookback = 100

// PositionReader 报告实时持仓，由执行适配器实现。
type PositionReader interface {
	OpenPositions(ctx context.Context) ([]Position, error)
}

// TradeReader 提供某交易对仍未平仓的成交记录，由持久层实现。
type TradeReader interface {
	OpenTrades(ctx context.Context, symbol string) ([]OpenTrade, error)
}

// Analyzer 把行情、持仓与成交记录汇集成一次信号判定。
type Analyzer struct {
	source    market.Source
	positions PositionReader
	trades    TradeReader
	interval  string
	lookback  int
	nowFn     func() time.Time

	mu     sync.RWMutex
	params Params
}

func NewAnalyzer(source market.Source, positions PositionReader, trades TradeReader, params Params, interval string) *Analyzer {
	if interval == "" {
		interval = "1h"
	}
	return &Analyzer{
		source:    source,
		positions: positions,
		trades:    trades,
		params:    params,
		interval:  interval,
		lookback:  defaultLookback,
		nowFn:     time.Now,
	}
}

// SetParams 替换可调参数（配置热更新时调用）。
func (a *Analyzer) SetParams(p Params) {
	a.mu.Lock()
	a.params = p
	a.mu.Unlock()
}

// Params 返回当前参数快照。
func (a *Analyzer) Params() Params {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.params
}

// Analyze 对单个交易对产出一条信号。行情或持仓获取失败时返回错误，
// 由调用方记录并跳过本轮；指标数据不足不构成错误，自然落入 HOLD。
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (Signal, error) {
	candles, err := a.source.FetchHistory(ctx, symbol, a.interval, a.lookback)
	if err != nil {
		return Signal{}, fmt.Errorf("fetching klines for %s failed: %w", symbol, err)
	}
	if len(candles) == 0 {
		return Signal{}, fmt.Errorf("no kline data for %s", symbol)
	}
	price := candles[len(candles)-1].Close
	params := a.Params()

	trend := DetectTrend(candles, params.TrendPeriod)
	oversold, overbought := OversoldOverbought(candles, params.RSIPeriod, params.RSIOversold, params.RSIOverbought)
	support, resistance := SupportResistance(candles)

	// 持仓只认实时报告。拿不到就放弃本轮，绝不回退到本地缓存。
	livePositions, err := a.positions.OpenPositions(ctx)
	if err != nil {
		return Signal{}, fmt.Errorf("fetching live positions failed: %w", err)
	}
	var position *Position
	for i := range livePositions {
		if livePositions[i].Symbol == symbol {
			position = &livePositions[i]
			break
		}
	}

	var openTrades []OpenTrade
	if a.trades != nil {
		openTrades, err = a.trades.OpenTrades(ctx, symbol)
		if err != nil {
			// 成交记录只影响均价精度，读不到时降级为持仓报告。
			logger.Warnf("reading open trades for %s failed: %v", symbol, err)
			openTrades = nil
		}
	}

	sig := params.Evaluate(Input{
		Symbol:     symbol,
		Price:      price,
		Trend:      trend,
		Oversold:   oversold,
		Overbought: overbought,
		Position:   position,
		OpenTrades: openTrades,
		Now:        a.nowFn(),
	})
	sig.Support = support
	sig.Resistance = resistance
	return sig, nil
}
