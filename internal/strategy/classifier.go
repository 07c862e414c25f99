package strategy

import (
	"talon/internal/indicator"
	"talon/internal/market"
)

// 趋势判定的 ±0.1% 乘法噪声带。必须保持为乘法阈值。
const (
	trendUpperBand = 1.001
	trendLowerBand = 0.999

	trendFastPeriod = 8
	trendSlowPeriod = 21

	srLookback = 20
)

// DetectTrend 用 EMA(8)/EMA(21) 判定趋势方向。数据不足时返回 SIDEWAYS。
func DetectTrend(candles []market.Candle, trendPeriod int) TrendDirection {
	if len(candles) < trendPeriod {
		return TrendSideways
	}
	closes := market.Closes(candles)
	short, okS := indicator.EMA(closes, trendFastPeriod)
	long, okL := indicator.EMA(closes, trendSlowPeriod)
	if !okS || !okL {
		return TrendSideways
	}
	switch {
	case short > long*trendUpperBand:
		return TrendUp
	case short < long*trendLowerBand:
		return TrendDown
	default:
		return TrendSideways
	}
}

// OversoldOverbought 基于 RSI 判定超卖/超买。RSI 不可用时两者均为 false。
func OversoldOverbought(candles []market.Candle, rsiPeriod int, oversold, overbought float64) (bool, bool) {
	rsi, ok := indicator.RSI(market.Closes(candles), rsiPeriod)
	if !ok {
		return false, false
	}
	return rsi < oversold, rsi > overbought
}

// SupportResistance 取最近 20 根 K 线的最低/最高价作为支撑/阻力。
// 不足 20 根时退化为最新收盘价的 ±2%。仅用于诊断展示。
func SupportResistance(candles []market.Candle) (support, resistance float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	if len(candles) < srLookback {
		latest := candles[len(candles)-1].Close
		return latest * 0.98, latest * 1.02
	}
	tail := market.Tail(candles, srLookback)
	support = tail[0].Low
	resistance = tail[0].High
	for _, c := range tail[1:] {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}
	return support, resistance
}
