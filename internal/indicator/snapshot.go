package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"talon/internal/market"
)

// 中文说明：
// 诊断快照：基于 talib 计算 MACD/ATR/布林带等参考指标，用于状态接口与
// 成交通知的展示。仅作观测输出，不参与信号判定（信号用本包的 EMA/RSI）。

// SnapshotSettings 描述诊断快照所需的参数。
type SnapshotSettings struct {
	Symbol   string
	Interval string
	EMAFast  int
	EMASlow  int
	RSIPeriod int
}

// Value 保存单个指标的最新值与状态描述。
type Value struct {
	Latest float64 `json:"latest"`
	State  string  `json:"state,omitempty"`
}

// Snapshot 汇总单个 symbol+interval 的诊断指标。
type Snapshot struct {
	Symbol   string           `json:"symbol"`
	Interval string           `json:"interval"`
	Count    int              `json:"count"`
	Values   map[string]Value `json:"values"`
	Warnings []string         `json:"warnings,omitempty"`
}

// ComputeSnapshot 计算诊断指标并返回结构化快照。
func ComputeSnapshot(candles []market.Candle, cfg SnapshotSettings) (Snapshot, error) {
	snap := Snapshot{
		Symbol:   cfg.Symbol,
		Interval: cfg.Interval,
		Count:    len(candles),
		Values:   make(map[string]Value),
	}
	if len(candles) == 0 {
		return snap, fmt.Errorf("no candles")
	}
	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)

	fast := cfg.EMAFast
	if fast <= 0 {
		fast = 8
	}
	slow := cfg.EMASlow
	if slow <= 0 {
		slow = 21
	}
	rsiPeriod := cfg.RSIPeriod
	if rsiPeriod <= 0 {
		rsiPeriod = 14
	}

	if len(closes) >= slow {
		emaFast := talib.Ema(closes, fast)
		emaSlow := talib.Ema(closes, slow)
		snap.Values["ema_fast"] = Value{Latest: last(emaFast)}
		snap.Values["ema_slow"] = Value{Latest: last(emaSlow)}
	} else {
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("ema requires %d candles, have %d", slow, len(closes)))
	}

	if len(closes) >= 35 {
		macd, signal, hist := talib.Macd(closes, 12, 26, 9)
		state := "bearish"
		if last(hist) > 0 {
			state = "bullish"
		}
		snap.Values["macd"] = Value{Latest: last(macd), State: state}
		snap.Values["macd_signal"] = Value{Latest: last(signal)}
	} else {
		snap.Warnings = append(snap.Warnings, "macd requires 35 candles")
	}

	if len(closes) >= rsiPeriod+1 {
		rsi := talib.Rsi(closes, rsiPeriod)
		snap.Values["rsi_wilder"] = Value{Latest: last(rsi)}
	}

	if len(closes) >= 15 {
		atr := talib.Atr(highs, lows, closes, 14)
		snap.Values["atr"] = Value{Latest: last(atr)}
	}

	if len(closes) >= 20 {
		upper, mid, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)
		snap.Values["bb_upper"] = Value{Latest: last(upper)}
		snap.Values["bb_mid"] = Value{Latest: last(mid)}
		snap.Values["bb_lower"] = Value{Latest: last(lower)}
	}

	return snap, nil
}

func last(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			return series[i]
		}
	}
	return 0
}
