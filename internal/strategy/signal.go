package strategy

import (
	"fmt"
	"time"
)

// 中文说明：
// 信号状态机。按固定优先级评估：超卖开多 → 超买开空 → 顺势回调加仓 →
// 持仓退出判定（最短持仓时间 + 加权均价 + 手续费缓冲）→ HOLD。
// 每轮扫描重新评估，除读取实时持仓快照外不携带跨轮状态。

const (
	// minHoldTime 自最早未平仓成交起算，未满前不允许产生退出信号。
	minHoldTime = 5 * time.Minute
	// feeBuffer 往返手续费缓冲（0.04% 买 + 0.04% 卖）。
	feeBuffer = 0.0008
	// pyramidPullback 价格回落到持仓均价的该比例以下才允许加仓（≥1.5% 回调）。
	pyramidPullback = 0.985
)

// Input 汇集一次判定所需的全部事实。Position 必须来自执行适配器的
// 实时报告；OpenTrades 仅用于细化均价与持仓时长，不决定持仓是否存在。
type Input struct {
	Symbol     string
	Price      float64
	Trend      TrendDirection
	Oversold   bool
	Overbought bool
	Position   *Position
	OpenTrades []OpenTrade
	Now        time.Time
}

// Evaluate 产出一条交易信号。任何指标缺失都已在上游折算为
// SIDEWAYS/false，这里无需再区分。
func (p Params) Evaluate(in Input) Signal {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	// 无持仓 + 超卖 → 开多。
	if in.Position == nil && in.Oversold {
		confidence := 0.6
		if in.Trend == TrendUp {
			confidence = 0.8
		}
		return Signal{
			Symbol:     in.Symbol,
			Kind:       SignalBuy,
			Confidence: confidence,
			EntryPrice: in.Price,
			StopLoss:   in.Price * (1 - p.StopLossPct/100),
			TakeProfit: in.Price * (1 + p.TakeProfitPct/100),
			Reason:     fmt.Sprintf("oversold RSI in %s trend", in.Trend),
			Trend:      in.Trend,
		}
	}

	// 无持仓 + 超买 → 开空。
	if in.Position == nil && in.Overbought {
		confidence := 0.6
		if in.Trend == TrendDown {
			confidence = 0.8
		}
		return Signal{
			Symbol:     in.Symbol,
			Kind:       SignalSell,
			Confidence: confidence,
			EntryPrice: in.Price,
			StopLoss:   in.Price * (1 + p.StopLossPct/100),
			TakeProfit: in.Price * (1 - p.TakeProfitPct/100),
			Reason:     fmt.Sprintf("overbought RSI in %s trend", in.Trend),
			Trend:      in.Trend,
		}
	}

	// 多头顺势回调加仓。
	if in.Position != nil && in.Position.Side == "LONG" && in.Trend == TrendUp &&
		in.Price <= in.Position.EntryPrice*pyramidPullback && in.Oversold {
		return Signal{
			Symbol:     in.Symbol,
			Kind:       SignalAddPosition,
			Confidence: 0.6,
			EntryPrice: in.Price,
			Reason:     "adding to position on pullback",
			Trend:      in.Trend,
		}
	}

	// 持仓退出判定。
	if in.Position != nil {
		if sig, ok := p.evaluateExit(in, now); ok {
			return sig
		}
		return Signal{
			Symbol:     in.Symbol,
			Kind:       SignalHold,
			Confidence: 0.5,
			EntryPrice: in.Price,
			Reason:     "has open position",
			Trend:      in.Trend,
		}
	}

	return Signal{
		Symbol:     in.Symbol,
		Kind:       SignalHold,
		Confidence: 0.5,
		EntryPrice: in.Price,
		Reason:     "RSI in neutral zone",
		Trend:      in.Trend,
	}
}

// evaluateExit 检查止盈/止损退出条件。ok=false 表示继续持有。
func (p Params) evaluateExit(in Input, now time.Time) (Signal, bool) {
	openedAt, ok := oldestOpenTime(in)
	if !ok {
		// 没有任何时间信息时不允许退出，避免刚建仓即被扫出。
		return Signal{}, false
	}
	if now.Sub(openedAt) < minHoldTime {
		return Signal{}, false
	}

	avgEntry := weightedAvgEntry(in)
	var hitTP, hitSL bool
	var tpThreshold, slThreshold float64
	if in.Position.Side == "SHORT" {
		tpThreshold = avgEntry * (1 - p.TakeProfitPct/100 - feeBuffer)
		slThreshold = avgEntry * (1 + p.StopLossPct/100)
		hitTP = in.Price <= tpThreshold
		hitSL = in.Price >= slThreshold
	} else {
		tpThreshold = avgEntry * (1 + p.TakeProfitPct/100 + feeBuffer)
		slThreshold = avgEntry * (1 - p.StopLossPct/100)
		hitTP = in.Price >= tpThreshold
		hitSL = in.Price <= slThreshold
	}

	switch {
	case hitTP:
		return Signal{
			Symbol:     in.Symbol,
			Kind:       SignalSell,
			Confidence: 0.9,
			EntryPrice: in.Price,
			Reason:     fmt.Sprintf("take profit reached: %.4f vs %.4f (avg entry %.4f)", in.Price, tpThreshold, avgEntry),
			Trend:      in.Trend,
		}, true
	case hitSL:
		return Signal{
			Symbol:     in.Symbol,
			Kind:       SignalSell,
			Confidence: 0.9,
			EntryPrice: in.Price,
			Reason:     fmt.Sprintf("stop loss triggered: %.4f vs %.4f (avg entry %.4f)", in.Price, slThreshold, avgEntry),
			Trend:      in.Trend,
		}, true
	}
	return Signal{}, false
}

// weightedAvgEntry 计算同向未平仓成交的加权平均入场价；没有成交记录时
// 退化为适配器报告的持仓均价。
func weightedAvgEntry(in Input) float64 {
	entrySide := "BUY"
	if in.Position.Side == "SHORT" {
		entrySide = "SELL"
	}
	totalValue := 0.0
	totalQty := 0.0
	for _, tr := range in.OpenTrades {
		if tr.Side != entrySide {
			continue
		}
		totalValue += tr.Price * tr.Quantity
		totalQty += tr.Quantity
	}
	if totalQty > 0 {
		return totalValue / totalQty
	}
	return in.Position.EntryPrice
}

// oldestOpenTime 取最早的未平仓成交时间；没有记录时退化为持仓开仓时间。
func oldestOpenTime(in Input) (time.Time, bool) {
	var oldest time.Time
	for _, tr := range in.OpenTrades {
		if tr.OpenedAt.IsZero() {
			continue
		}
		if oldest.IsZero() || tr.OpenedAt.Before(oldest) {
			oldest = tr.OpenedAt
		}
	}
	if !oldest.IsZero() {
		return oldest, true
	}
	if in.Position != nil && !in.Position.OpenedAt.IsZero() {
		return in.Position.OpenedAt, true
	}
	return time.Time{}, false
}
