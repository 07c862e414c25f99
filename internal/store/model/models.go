package model

import "gorm.io/datatypes"

type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "open"
	TradeStatusClosed TradeStatus = "closed"
)

// TradeModel 是 trades 表的行。时间戳统一存 Unix 毫秒。
type TradeModel struct {
	ID          int64          `gorm:"column:id;primaryKey"`
	TradeID     string         `gorm:"column:trade_id;uniqueIndex"`
	Symbol      string         `gorm:"column:symbol;index"`
	Side        string         `gorm:"column:side"`
	Quantity    float64        `gorm:"column:quantity"`
	Price       float64        `gorm:"column:price"`
	Notional    float64        `gorm:"column:notional"`
	Status      TradeStatus    `gorm:"column:status;index"`
	PnL         float64        `gorm:"column:pnl"`
	ExitPrice   float64        `gorm:"column:exit_price"`
	Reason      string         `gorm:"column:reason"`
	Confidence  float64        `gorm:"column:confidence"`
	OrderID     int64          `gorm:"column:order_id"`
	StopOrderID int64          `gorm:"column:stop_order_id"`
	SignalJSON  datatypes.JSON `gorm:"column:signal_json;type:TEXT"`
	OpenedAt    int64          `gorm:"column:opened_at;index"`
	ClosedAt    int64          `gorm:"column:closed_at"`
	CreatedAt   int64          `gorm:"column:created_at"`
	UpdatedAt   int64          `gorm:"column:updated_at"`
}

func (TradeModel) TableName() string { return "trades" }

// BalanceSnapshotModel 记录余额曲线，状态页画权益曲线用。
type BalanceSnapshotModel struct {
	ID        int64   `gorm:"column:id;primaryKey"`
	Total     float64 `gorm:"column:total"`
	Available float64 `gorm:"column:available"`
	Peak      float64 `gorm:"column:peak"`
	TakenAt   int64   `gorm:"column:taken_at;index"`
}

func (BalanceSnapshotModel) TableName() string { return "balance_snapshots" }
