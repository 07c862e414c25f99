package strategy

import "time"

// TrendDirection 表示均线判定的趋势方向。
type TrendDirection string

const (
	TrendUp       TrendDirection = "UP"
	TrendDown     TrendDirection = "DOWN"
	TrendSideways TrendDirection = "SIDEWAYS"
)

// SignalKind 表示信号类型。
type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalSell SignalKind = "SELL"
	SignalHold SignalKind = "HOLD"
	// SignalAddPosition 顺势回调加仓
	SignalAddPosition SignalKind = "ADD_POSITION"
)

// Signal 是每轮扫描对单个交易对的决策结果，生成后不再修改。
type Signal struct {
	Symbol     string     `json:"symbol"`
	Kind       SignalKind `json:"kind"`
	Confidence float64    `json:"confidence"`
	EntryPrice float64    `json:"entry_price"`
	StopLoss   float64    `json:"stop_loss,omitempty"`
	TakeProfit float64    `json:"take_profit,omitempty"`
	Reason     string     `json:"reason"`

	// 诊断输出，不参与判定。
	Trend      TrendDirection `json:"trend"`
	Support    float64        `json:"support,omitempty"`
	Resistance float64        `json:"resistance,omitempty"`
}

// Position 是执行适配器报告的实时持仓快照。持仓是否存在只认这里，
// 本地缓存一律不作为依据。
type Position struct {
	Symbol     string
	Side       string // "LONG" / "SHORT"
	Quantity   float64
	EntryPrice float64
	OpenedAt   time.Time
}

// OpenTrade 是持久层中仍未平仓的成交记录，用于计算加权平均入场价
// 与最短持仓时间。
type OpenTrade struct {
	Side     string // "BUY" / "SELL"
	Quantity float64
	Price    float64
	OpenedAt time.Time
}

// Params 是信号判定所需的全部可调参数。
type Params struct {
	TrendPeriod   int
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
	StopLossPct   float64 // 3 表示 3%
	TakeProfitPct float64 // 6 表示 6%
}
