package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talon/internal/store/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "talon.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetOpenTrades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &TradeRecord{
		Symbol:     "ETHUSDT",
		Side:       "BUY",
		Quantity:   0.05,
		Price:      2500,
		Notional:   125,
		Confidence: 0.8,
		Reason:     "oversold RSI in UP trend",
	}
	require.NoError(t, s.SaveTradeRecord(ctx, rec))
	assert.NotEmpty(t, rec.ID)

	open, err := s.GetOpenTrades(ctx, "ETHUSDT")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, rec.ID, open[0].ID)
	assert.Equal(t, model.TradeStatusOpen, open[0].Status)

	// 其他交易对查不到。
	other, err := s.GetOpenTrades(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCloseTradeRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &TradeRecord{Symbol: "ETHUSDT", Side: "BUY", Quantity: 1, Price: 100}
	require.NoError(t, s.SaveTradeRecord(ctx, rec))
	require.NoError(t, s.CloseTradeRecord(ctx, rec.ID, 106, 6.0, time.Now()))

	open, err := s.GetOpenTrades(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Empty(t, open)

	recent, err := s.GetRecentTrades(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, model.TradeStatusClosed, recent[0].Status)
	assert.Equal(t, 6.0, recent[0].PnL)
	assert.Equal(t, 106.0, recent[0].ExitPrice)
	assert.False(t, recent[0].ClosedAt.IsZero())
}

func TestUpdateTradeRecordNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateTradeRecord(context.Background(), "missing", map[string]any{"pnl": 1.0})
	assert.Error(t, err)
}

func TestAggregateStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, pnl := range []float64{5, -2, 3} {
		rec := &TradeRecord{Symbol: "ETHUSDT", Side: "BUY", Quantity: 1, Price: 100}
		require.NoError(t, s.SaveTradeRecord(ctx, rec))
		require.NoError(t, s.CloseTradeRecord(ctx, rec.ID, 100+pnl, pnl, time.Now()))
	}
	// 还有一笔未平仓的不计入统计。
	require.NoError(t, s.SaveTradeRecord(ctx, &TradeRecord{Symbol: "ETHUSDT", Side: "BUY", Quantity: 1, Price: 100}))

	stats, err := s.AggregateStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTrades)
	assert.Equal(t, 2, stats.Winning)
	assert.Equal(t, 1, stats.Losing)
	assert.InDelta(t, 6.0, stats.TotalPnL, 1e-9)
}

func TestOpenTradesReader(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	earlier := time.Now().Add(-time.Hour)
	require.NoError(t, s.SaveTradeRecord(ctx, &TradeRecord{
		Symbol: "ETHUSDT", Side: "BUY", Quantity: 1, Price: 100, OpenedAt: earlier,
	}))
	require.NoError(t, s.SaveTradeRecord(ctx, &TradeRecord{
		Symbol: "ETHUSDT", Side: "BUY", Quantity: 2, Price: 90,
	}))

	trades, err := s.OpenTrades(ctx, "ETHUSDT")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	// 按开仓时间升序。
	assert.Equal(t, 100.0, trades[0].Price)
	assert.WithinDuration(t, earlier, trades[0].OpenedAt, time.Second)
}

func TestBalanceSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveBalanceSnapshot(ctx, 1000, 900, 1000))
	require.NoError(t, s.SaveBalanceSnapshot(ctx, 1050, 950, 1050))

	history, err := s.BalanceHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1000.0, history[0].Total)
	assert.Equal(t, 1050.0, history[1].Total)
}
