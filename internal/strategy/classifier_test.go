package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"talon/internal/market"
)

func candlesFromCloses(closes []float64) []market.Candle {
	out := make([]market.Candle, 0, len(closes))
	for i, c := range closes {
		out = append(out, market.Candle{
			OpenTime: int64(i) * 3600_000,
			Open:     c,
			High:     c * 1.005,
			Low:      c * 0.995,
			Close:    c,
			Volume:   1,
		})
	}
	return out
}

func flatCloses(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func TestDetectTrend(t *testing.T) {
	rising := make([]float64, 60)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	assert.Equal(t, TrendUp, DetectTrend(candlesFromCloses(rising), 20))

	falling := make([]float64, 60)
	for i := range falling {
		falling[i] = 160 - float64(i)
	}
	assert.Equal(t, TrendDown, DetectTrend(candlesFromCloses(falling), 20))

	flat := flatCloses(60, 100)
	assert.Equal(t, TrendSideways, DetectTrend(candlesFromCloses(flat), 20))
}

func TestDetectTrendInsufficientData(t *testing.T) {
	candles := candlesFromCloses(flatCloses(10, 100))
	assert.Equal(t, TrendSideways, DetectTrend(candles, 20))
}

func TestDetectTrendNoiseBand(t *testing.T) {
	// 短均线略高于长均线但在 ±0.1% 带内 → SIDEWAYS。
	// 平盘后末端微升 0.05%：两条 EMA 差值远小于带宽。
	closes := flatCloses(60, 100)
	closes[59] = 100.05
	assert.Equal(t, TrendSideways, DetectTrend(candlesFromCloses(closes), 20))
}

func TestDetectTrendIdempotent(t *testing.T) {
	rising := make([]float64, 60)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	candles := candlesFromCloses(rising)
	first := DetectTrend(candles, 20)
	second := DetectTrend(candles, 20)
	assert.Equal(t, first, second)
}

func TestOversoldOverbought(t *testing.T) {
	falling := make([]float64, 30)
	for i := range falling {
		falling[i] = 130 - float64(i)
	}
	oversold, overbought := OversoldOverbought(candlesFromCloses(falling), 14, 30, 70)
	assert.True(t, oversold)
	assert.False(t, overbought)

	rising := make([]float64, 30)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	oversold, overbought = OversoldOverbought(candlesFromCloses(rising), 14, 30, 70)
	assert.False(t, oversold)
	assert.True(t, overbought)
}

func TestOversoldOverboughtUnavailable(t *testing.T) {
	short := candlesFromCloses(flatCloses(10, 100))
	oversold, overbought := OversoldOverbought(short, 14, 30, 70)
	assert.False(t, oversold)
	assert.False(t, overbought)
}

func TestSupportResistance(t *testing.T) {
	candles := candlesFromCloses(flatCloses(40, 100))
	candles[30].Low = 90
	candles[35].High = 115
	support, resistance := SupportResistance(candles)
	assert.Equal(t, 90.0, support)
	assert.Equal(t, 115.0, resistance)
}

func TestSupportResistanceFallback(t *testing.T) {
	candles := candlesFromCloses(flatCloses(5, 200))
	support, resistance := SupportResistance(candles)
	assert.InDelta(t, 196.0, support, 1e-9)
	assert.InDelta(t, 204.0, resistance, 1e-9)
}
