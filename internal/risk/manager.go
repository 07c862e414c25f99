// Package risk 实现下单前的风控闸门：仓位规模计算、回撤与敞口检查、
// 日内交易次数限制。peak_balance 与 daily_trade_count 为进程级状态，
// 不跨重启持久化。
package risk

import (
	"sync"

	"github.com/shopspring/decimal"
)

const (
	// minTradableBalance 低于该余额拒绝一切开仓（严格小于，恰好 15.0 放行）。
	minTradableBalance = 15.0
	// minNotional 交易所最小名义价值下限。
	minNotional = 10.0
	// balanceUsableRatio 单笔订单最多占可用余额的比例。
	balanceUsableRatio = 0.9
	// totalExposureRatio 全部持仓名义价值合计不得超过余额的该比例。
	totalExposureRatio = 0.8
	// minConfidenceMultiplier 信心乘数下限，保证过闸信号有最小可行单量。
	minConfidenceMultiplier = 0.8

	defaultMaxDailyTrades = 50

	// priceScale 止损/止盈价格统一保留 6 位小数。
	priceScale = 6
)

// 拒绝原因固定字符串，通知与日志直接引用。
const (
	ReasonInsufficientBalance = "insufficient balance"
	ReasonExceedsAvailable    = "exceeds available balance"
	ReasonDrawdownExceeded    = "drawdown limit exceeded"
	ReasonDailyLimitReached   = "daily trade limit reached"
	ReasonInstrumentExposure  = "exceeds per-instrument position size"
	ReasonTotalExposure       = "exceeds total exposure cap"
)

// Limits 是风控的可调参数，来自配置。
type Limits struct {
	InitialBalance     float64
	DefaultTradeAmount float64
	MaxPositionSize    float64
	MaxDrawdownPct     float64
	StopLossPct        float64
	TakeProfitPct      float64
	MaxDailyTrades     int
}

// Exposure 描述一笔现有持仓的名义价值（数量×价格，计价币种）。
type Exposure struct {
	Symbol   string
	Notional float64
}

// Metrics 是风控内部状态的只读快照，供状态接口与通知展示。
type Metrics struct {
	InitialBalance  float64 `json:"initial_balance"`
	PeakBalance     float64 `json:"peak_balance"`
	DailyTradeCount int     `json:"daily_trade_count"`
	MaxDailyTrades  int     `json:"max_daily_trades"`
}

// Manager 持有风控限额与进程级可变状态。共享状态检查全部在同一把锁内
// 完成，并发扫描多个交易对时不会超配资金。
type Manager struct {
	mu          sync.Mutex
	limits      Limits
	peakBalance float64
	dailyTrades int
}

func NewManager(limits Limits) *Manager {
	if limits.MaxDailyTrades <= 0 {
		limits.MaxDailyTrades = defaultMaxDailyTrades
	}
	return &Manager{
		limits:      limits,
		peakBalance: limits.InitialBalance,
	}
}

// SetLimits 替换限额（配置热更新时调用）。峰值余额与当日计数保留。
func (m *Manager) SetLimits(limits Limits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limits.MaxDailyTrades <= 0 {
		limits.MaxDailyTrades = defaultMaxDailyTrades
	}
	m.limits = limits
}

// SizePosition 按信号信心计算下单金额。乘数只设下限不设上限，
// 高信心信号允许超过基准金额。低于最小名义价值直接拒绝。
func (m *Manager) SizePosition(confidence, availableBalance float64) (float64, bool) {
	m.mu.Lock()
	limits := m.limits
	m.mu.Unlock()

	multiplier := confidence * 2.0
	if multiplier < minConfidenceMultiplier {
		multiplier = minConfidenceMultiplier
	}
	amount := limits.DefaultTradeAmount * multiplier

	if usable := availableBalance * balanceUsableRatio; amount > usable {
		amount = usable
	}
	if amount > limits.MaxPositionSize {
		amount = limits.MaxPositionSize
	}
	if amount < minNotional {
		return 0, false
	}
	return amount, true
}

// CanPlaceTrade 按固定顺序短路检查一笔拟下单。exposures 为当前全部
// 持仓的名义价值，由调用方在同一轮扫描内取自实时持仓报告。
// 整个检查序列（含回撤峰值更新）是一个临界区。
func (m *Manager) CanPlaceTrade(symbol string, amount, balance float64, exposures []Exposure) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if balance < minTradableBalance {
		return false, ReasonInsufficientBalance
	}
	if amount > balance*balanceUsableRatio {
		return false, ReasonExceedsAvailable
	}
	if !m.checkDrawdownLocked(balance) {
		return false, ReasonDrawdownExceeded
	}
	if m.dailyTrades >= m.limits.MaxDailyTrades {
		return false, ReasonDailyLimitReached
	}

	var instrumentTotal, total float64
	for _, e := range exposures {
		total += e.Notional
		if e.Symbol == symbol {
			instrumentTotal += e.Notional
		}
	}
	if instrumentTotal+amount > m.limits.MaxPositionSize {
		return false, ReasonInstrumentExposure
	}
	if total+amount > balance*totalExposureRatio {
		return false, ReasonTotalExposure
	}
	return true, ""
}

// CheckDrawdown 更新峰值余额并判定回撤是否在限内。返回 false 表示超限。
func (m *Manager) CheckDrawdown(balance float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkDrawdownLocked(balance)
}

func (m *Manager) checkDrawdownLocked(balance float64) bool {
	if balance > m.peakBalance {
		m.peakBalance = balance
	}
	if m.peakBalance <= 0 {
		return true
	}
	drawdownPct := (m.peakBalance - balance) / m.peakBalance * 100
	return drawdownPct <= m.limits.MaxDrawdownPct
}

// ShouldReduceRisk 建议性判定，不阻断下单，只用于提醒操作员。
// 回撤超过限额的 70% 或余额跌破初始资金一半时为 true。
func (m *Manager) ShouldReduceRisk(balance float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.peakBalance > 0 {
		drawdownPct := (m.peakBalance - balance) / m.peakBalance * 100
		if drawdownPct > 0.7*m.limits.MaxDrawdownPct {
			return true
		}
	}
	return balance < 0.5*m.limits.InitialBalance
}

// RecordTradePlaced 在订单实际提交后调用，累计当日交易次数。
func (m *Manager) RecordTradePlaced() {
	m.mu.Lock()
	m.dailyTrades++
	m.mu.Unlock()
}

// ResetDailyCounters 由调度方在 UTC 日界翻转时调用。
func (m *Manager) ResetDailyCounters() {
	m.mu.Lock()
	m.dailyTrades = 0
	m.mu.Unlock()
}

// Metrics 返回当前内部状态快照。
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		InitialBalance:  m.limits.InitialBalance,
		PeakBalance:     m.peakBalance,
		DailyTradeCount: m.dailyTrades,
		MaxDailyTrades:  m.limits.MaxDailyTrades,
	}
}

// StopLossPrice 按方向给出显式止损价，6 位小数截断交给 decimal 处理，
// 避免浮点尾数直接进请求体。
func (m *Manager) StopLossPrice(entryPrice float64, side string) float64 {
	m.mu.Lock()
	pct := m.limits.StopLossPct
	m.mu.Unlock()
	if side == "SHORT" || side == "SELL" {
		return roundPrice(entryPrice * (1 + pct/100))
	}
	return roundPrice(entryPrice * (1 - pct/100))
}

// TakeProfitPrice 按方向给出显式止盈价。
func (m *Manager) TakeProfitPrice(entryPrice float64, side string) float64 {
	m.mu.Lock()
	pct := m.limits.TakeProfitPct
	m.mu.Unlock()
	if side == "SHORT" || side == "SELL" {
		return roundPrice(entryPrice * (1 - pct/100))
	}
	return roundPrice(entryPrice * (1 + pct/100))
}

func roundPrice(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(priceScale).Float64()
	return f
}
