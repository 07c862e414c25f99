// Package gormstore 用 Gorm + SQLite 持久化成交记录与余额快照。
package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"talon/internal/store/model"
	"talon/internal/strategy"
)

// TradeRecord 是对外暴露的成交记录，与表行解耦。
type TradeRecord struct {
	ID          string            `json:"id"`
	Symbol      string            `json:"symbol"`
	Side        string            `json:"side"`
	Quantity    float64           `json:"quantity"`
	Price       float64           `json:"price"`
	Notional    float64           `json:"notional"`
	Status      model.TradeStatus `json:"status"`
	PnL         float64           `json:"pnl"`
	ExitPrice   float64           `json:"exit_price,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Confidence  float64           `json:"confidence,omitempty"`
	OrderID     int64             `json:"order_id,omitempty"`
	StopOrderID int64             `json:"stop_order_id,omitempty"`
	Signal      json.RawMessage   `json:"signal,omitempty"`
	OpenedAt    time.Time         `json:"opened_at"`
	ClosedAt    time.Time         `json:"closed_at,omitempty"`
}

// Stats 是已结算交易的聚合统计。
type Stats struct {
	TotalTrades int     `json:"total_trades"`
	Winning     int     `json:"winning"`
	Losing      int     `json:"losing"`
	TotalPnL    float64 `json:"total_pnl"`
}

// BalanceSnapshot 是余额曲线上的一个点。
type BalanceSnapshot struct {
	Total     float64   `json:"total"`
	Available float64   `json:"available"`
	Peak      float64   `json:"peak"`
	TakenAt   time.Time `json:"taken_at"`
}

type Store struct {
	db *gorm.DB
}

// strategy.TradeReader 由本包实现，信号生成器用它取未平仓成交。
var _ strategy.TradeReader = (*Store)(nil)

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.TradeModel{}, &model.BalanceSnapshotModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL：留一点并行度给 HTTP 读请求，同时压低锁竞争。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveTradeRecord 插入一笔新成交。ID 为空时生成 UUID 并写回。
func (s *Store) SaveTradeRecord(ctx context.Context, rec *TradeRecord) error {
	if rec == nil {
		return fmt.Errorf("trade record is nil")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = model.TradeStatusOpen
	}
	if rec.OpenedAt.IsZero() {
		rec.OpenedAt = time.Now()
	}
	now := time.Now().UnixMilli()
	row := model.TradeModel{
		TradeID:     rec.ID,
		Symbol:      rec.Symbol,
		Side:        rec.Side,
		Quantity:    rec.Quantity,
		Price:       rec.Price,
		Notional:    rec.Notional,
		Status:      rec.Status,
		PnL:         rec.PnL,
		ExitPrice:   rec.ExitPrice,
		Reason:      rec.Reason,
		Confidence:  rec.Confidence,
		OrderID:     rec.OrderID,
		StopOrderID: rec.StopOrderID,
		SignalJSON:  datatypes.JSON(rec.Signal),
		OpenedAt:    rec.OpenedAt.UnixMilli(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// UpdateTradeRecord 按业务 ID 局部更新字段。
func (s *Store) UpdateTradeRecord(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UnixMilli()
	res := s.db.WithContext(ctx).Model(&model.TradeModel{}).
		Where("trade_id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("trade %s not found", id)
	}
	return nil
}

// CloseTradeRecord 把一笔成交标记为已平仓并记录出场价与盈亏。
func (s *Store) CloseTradeRecord(ctx context.Context, id string, exitPrice, pnl float64, closedAt time.Time) error {
	if closedAt.IsZero() {
		closedAt = time.Now()
	}
	return s.UpdateTradeRecord(ctx, id, map[string]any{
		"status":     model.TradeStatusClosed,
		"exit_price": exitPrice,
		"pnl":        pnl,
		"closed_at":  closedAt.UnixMilli(),
	})
}

// GetOpenTrades 返回某交易对的全部未平仓成交，按开仓时间升序。
func (s *Store) GetOpenTrades(ctx context.Context, symbol string) ([]TradeRecord, error) {
	var rows []model.TradeModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND status = ?", symbol, model.TradeStatusOpen).
		Order("opened_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// OpenTrades 实现 strategy.TradeReader。
func (s *Store) OpenTrades(ctx context.Context, symbol string) ([]strategy.OpenTrade, error) {
	recs, err := s.GetOpenTrades(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out := make([]strategy.OpenTrade, 0, len(recs))
	for _, r := range recs {
		out = append(out, strategy.OpenTrade{
			Side:     r.Side,
			Quantity: r.Quantity,
			Price:    r.Price,
			OpenedAt: r.OpenedAt,
		})
	}
	return out, nil
}

// GetRecentTrades 返回最近 days 天内开仓的成交，最新的在前。
func (s *Store) GetRecentTrades(ctx context.Context, days int) ([]TradeRecord, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days).UnixMilli()
	var rows []model.TradeModel
	err := s.db.WithContext(ctx).
		Where("opened_at >= ?", since).
		Order("opened_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// AggregateStats 统计全部已平仓交易。
func (s *Store) AggregateStats(ctx context.Context) (Stats, error) {
	var rows []model.TradeModel
	err := s.db.WithContext(ctx).
		Where("status = ?", model.TradeStatusClosed).
		Find(&rows).Error
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	for _, r := range rows {
		stats.TotalTrades++
		stats.TotalPnL += r.PnL
		if r.PnL > 0 {
			stats.Winning++
		} else if r.PnL < 0 {
			stats.Losing++
		}
	}
	return stats, nil
}

// 余额快照保留窗口，更早的历史随写入顺手清掉。
const balanceRetentionDays = 180

// SaveBalanceSnapshot 追加一条余额快照。
func (s *Store) SaveBalanceSnapshot(ctx context.Context, total, available, peak float64) error {
	row := model.BalanceSnapshotModel{
		Total:     total,
		Available: available,
		Peak:      peak,
		TakenAt:   time.Now().UnixMilli(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	cutoff := time.Now().AddDate(0, 0, -balanceRetentionDays).UnixMilli()
	return s.db.WithContext(ctx).
		Where("taken_at < ?", cutoff).
		Delete(&model.BalanceSnapshotModel{}).Error
}

// BalanceHistory 返回最近 days 天的余额曲线，按时间升序。
func (s *Store) BalanceHistory(ctx context.Context, days int) ([]BalanceSnapshot, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days).UnixMilli()
	var rows []model.BalanceSnapshotModel
	err := s.db.WithContext(ctx).
		Where("taken_at >= ?", since).
		Order("taken_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]BalanceSnapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, BalanceSnapshot{
			Total:     r.Total,
			Available: r.Available,
			Peak:      r.Peak,
			TakenAt:   time.UnixMilli(r.TakenAt),
		})
	}
	return out, nil
}

func toRecords(rows []model.TradeModel) []TradeRecord {
	out := make([]TradeRecord, 0, len(rows))
	for _, r := range rows {
		rec := TradeRecord{
			ID:          r.TradeID,
			Symbol:      r.Symbol,
			Side:        r.Side,
			Quantity:    r.Quantity,
			Price:       r.Price,
			Notional:    r.Notional,
			Status:      r.Status,
			PnL:         r.PnL,
			ExitPrice:   r.ExitPrice,
			Reason:      r.Reason,
			Confidence:  r.Confidence,
			OrderID:     r.OrderID,
			StopOrderID: r.StopOrderID,
			Signal:      json.RawMessage(r.SignalJSON),
			OpenedAt:    time.UnixMilli(r.OpenedAt),
		}
		if r.ClosedAt > 0 {
			rec.ClosedAt = time.UnixMilli(r.ClosedAt)
		}
		out = append(out, rec)
	}
	return out
}
