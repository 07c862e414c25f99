// Package indicator 提供策略核心使用的均线与 RSI 计算。
//
// 这里的 EMA 以序列首元素作为初始值、RSI 使用末尾 period 个差分的简单平均，
// 与常见实现（SMA 种子 / Wilder 平滑）不同。阈值参数都是围绕该定义调校的，
// 不要"修正"。
package indicator

// SMA 返回最近 period 个价格的算术平均；数据不足时 ok=false。
func SMA(prices []float64, period int) (float64, bool) {
	n := len(prices)
	if period <= 0 || n < period {
		return 0, false
	}
	sum := 0.0
	for _, p := range prices[n-period:] {
		sum += p
	}
	return sum / float64(period), true
}

// EMA 以 prices[0] 为初始值，按全序列递推；len(prices) < period 时 ok=false。
func EMA(prices []float64, period int) (float64, bool) {
	n := len(prices)
	if period <= 0 || n < period {
		return 0, false
	}
	k := 2.0 / float64(period+1)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = p*k + ema*(1-k)
	}
	return ema, true
}

// RSI 基于末尾 period 个差分的简单平均；len(prices) < period+1 时 ok=false。
// 平均亏损为 0 时返回 100。
func RSI(prices []float64, period int) (float64, bool) {
	n := len(prices)
	if period <= 0 || n < period+1 {
		return 0, false
	}
	avgGain := 0.0
	avgLoss := 0.0
	for i := n - period; i < n; i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}
