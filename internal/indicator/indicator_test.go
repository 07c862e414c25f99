package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}

	v, ok := SMA(prices, 5)
	require.True(t, ok)
	assert.InDelta(t, 3.0, v, 1e-9)

	v, ok = SMA(prices, 3)
	require.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-9)

	_, ok = SMA(prices, 6)
	assert.False(t, ok)

	_, ok = SMA(nil, 1)
	assert.False(t, ok)
}

func TestEMASeededAtFirstPrice(t *testing.T) {
	// 递推从 prices[0] 开始，而不是前 period 个的 SMA。
	prices := []float64{10, 20}
	v, ok := EMA(prices, 2)
	require.True(t, ok)
	// k = 2/3, ema = 20*2/3 + 10*1/3
	assert.InDelta(t, 20*2.0/3+10/3.0, v, 1e-9)

	_, ok = EMA(prices, 3)
	assert.False(t, ok)

	// 恰好等于 period 时必须返回数值。
	_, ok = EMA([]float64{1, 2, 3}, 3)
	assert.True(t, ok)
}

func TestEMAUsesWholeSeries(t *testing.T) {
	// 序列远长于 period：全序列递推与只看末尾窗口的结果不同。
	long := make([]float64, 50)
	for i := range long {
		long[i] = float64(i + 1)
	}
	full, ok := EMA(long, 8)
	require.True(t, ok)
	tailOnly, ok := EMA(long[len(long)-8:], 8)
	require.True(t, ok)
	assert.NotEqual(t, tailOnly, full)
}

func TestRSIBounds(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	v, ok := RSI(rising, 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	falling := make([]float64, 20)
	for i := range falling {
		falling[i] = 100 - float64(i)
	}
	v, ok = RSI(falling, 14)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestRSIMinimumLength(t *testing.T) {
	prices := make([]float64, 14)
	for i := range prices {
		prices[i] = float64(i)
	}
	_, ok := RSI(prices, 14)
	assert.False(t, ok, "需要 period+1 个价格")

	prices = append(prices, 14)
	_, ok = RSI(prices, 14)
	assert.True(t, ok)
}

func TestRSISimpleAverage(t *testing.T) {
	// 差分: +2, -1, +2, -1 → avg_gain=1.0, avg_loss=0.5, RS=2, RSI=66.66…
	prices := []float64{10, 12, 11, 13, 12}
	v, ok := RSI(prices, 4)
	require.True(t, ok)
	assert.InDelta(t, 100-100.0/3, v, 1e-9)
}
