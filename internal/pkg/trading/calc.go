// Package trading 提供盈亏与仓位换算的纯函数。
package trading

// RealizedPnL 计算一笔已平仓交易的盈亏（计价币种）。
// 空头方向为入场价减出场价。
func RealizedPnL(side string, quantity, entryPrice, exitPrice float64) float64 {
	if quantity <= 0 {
		return 0
	}
	if side == "SELL" || side == "SHORT" {
		return (entryPrice - exitPrice) * quantity
	}
	return (exitPrice - entryPrice) * quantity
}

// PercentChange 返回 from 到 to 的百分比变化，from 为 0 时返回 0。
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// DrawdownPct 返回相对峰值的回撤百分比，非负。
func DrawdownPct(peak, current float64) float64 {
	if peak <= 0 || current >= peak {
		return 0
	}
	return (peak - current) / peak * 100
}

// WinRate 返回胜率百分比，没有已结算交易时为 0。
func WinRate(winning, losing int) float64 {
	total := winning + losing
	if total == 0 {
		return 0
	}
	return float64(winning) / float64(total) * 100
}

// QuantityFromNotional 把计价币金额换算成合约数量。价格非正返回 0，
// 由调用方拒单。
func QuantityFromNotional(notional, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return notional / price
}
