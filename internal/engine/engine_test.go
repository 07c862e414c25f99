package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talon/internal/config"
	"talon/internal/gateway/exchange"
	"talon/internal/market"
	"talon/internal/risk"
	"talon/internal/store/gormstore"
	"talon/internal/watchlist"
)

type fakeSource struct {
	candles []market.Candle
	err     error
}

func (s *fakeSource) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	return s.candles, s.err
}

func (s *fakeSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	return s.candles[len(s.candles)-1].Close, nil
}

func (s *fakeSource) Stats() market.SourceStats { return market.SourceStats{} }
func (s *fakeSource) Close() error              { return nil }

type fakeBroker struct {
	positions []exchange.Position
	balance   exchange.Balance
	posErr    error

	marketOrders []exchange.MarketOrderRequest
	stopOrders   []exchange.StopOrderRequest
	canceled     []int64
	marketErr    error
	fillPrice    float64
	nextOrderID  int64
}

func (b *fakeBroker) OpenPositions(ctx context.Context) ([]exchange.Position, error) {
	return b.positions, b.posErr
}

func (b *fakeBroker) AccountBalance(ctx context.Context) (exchange.Balance, error) {
	return b.balance, nil
}

func (b *fakeBroker) PlaceMarketOrder(ctx context.Context, req exchange.MarketOrderRequest) (exchange.Order, error) {
	if b.marketErr != nil {
		return exchange.Order{}, b.marketErr
	}
	b.marketOrders = append(b.marketOrders, req)
	b.nextOrderID++
	return exchange.Order{
		ID:       b.nextOrderID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		AvgPrice: b.fillPrice,
		Status:   "FILLED",
	}, nil
}

func (b *fakeBroker) PlaceStopOrder(ctx context.Context, req exchange.StopOrderRequest) (exchange.Order, error) {
	b.stopOrders = append(b.stopOrders, req)
	b.nextOrderID++
	return exchange.Order{ID: b.nextOrderID, Symbol: req.Symbol, Status: "NEW"}, nil
}

func (b *fakeBroker) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	b.canceled = append(b.canceled, orderID)
	return nil
}
func (b *fakeBroker) Close() error                                                       { return nil }

func testStrategyConfig() config.StrategyConfig {
	return config.StrategyConfig{
		TrendPeriod:   20,
		RSIPeriod:     14,
		RSIOversold:   30,
		RSIOverbought: 70,
		StopLossPct:   3,
		TakeProfitPct: 6,
	}
}

func testRisk() *risk.Manager {
	return risk.NewManager(risk.Limits{
		InitialBalance:     1000,
		DefaultTradeAmount: 15,
		MaxPositionSize:    100,
		MaxDrawdownPct:     10,
		StopLossPct:        3,
		TakeProfitPct:      6,
		MaxDailyTrades:     50,
	})
}

func testStore(t *testing.T) *gormstore.Store {
	t.Helper()
	s, err := gormstore.New(filepath.Join(t.TempDir(), "talon.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func candlesFromCloses(closes []float64) []market.Candle {
	out := make([]market.Candle, 0, len(closes))
	for i, c := range closes {
		out = append(out, market.Candle{
			OpenTime: int64(i) * 3600_000,
			Open:     c, High: c * 1.005, Low: c * 0.995, Close: c,
			Volume: 1,
		})
	}
	return out
}

// 平盘后急跌：触发超卖买入信号。
func crashCloses() []float64 {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100
	}
	step := 20.0 / 14.0
	for k := 1; k <= 14; k++ {
		closes[85+k] = 100 - step*float64(k)
	}
	closes[99] = 80
	return closes
}

func newTestEngine(t *testing.T, broker *fakeBroker, source *fakeSource) (*Engine, *gormstore.Store) {
	t.Helper()
	store := testStore(t)
	e := New(Deps{
		Source:      source,
		Broker:      broker,
		Store:       store,
		Risk:        testRisk(),
		Instruments: []watchlist.Instrument{{Symbol: "ETHUSDT", Interval: "1h"}},
		Strategy:    testStrategyConfig(),
		Enabled:     true,
	})
	return e, store
}

func TestScanOpensPositionOnBuySignal(t *testing.T) {
	broker := &fakeBroker{
		balance:   exchange.Balance{Asset: "USDT", Total: 1000, Available: 1000},
		fillPrice: 80,
	}
	e, store := newTestEngine(t, broker, &fakeSource{candles: candlesFromCloses(crashCloses())})

	require.NoError(t, e.Scan(context.Background()))

	require.Len(t, broker.marketOrders, 1)
	order := broker.marketOrders[0]
	assert.Equal(t, "ETHUSDT", order.Symbol)
	assert.Equal(t, "BUY", order.Side)
	// 18 USDT 名义价值 / 80 价格。
	assert.InDelta(t, 0.225, order.Quantity, 1e-9)
	assert.False(t, order.ReduceOnly)

	// 保护性止损挂在 80×0.97。
	require.Len(t, broker.stopOrders, 1)
	stop := broker.stopOrders[0]
	assert.Equal(t, "SELL", stop.Side)
	assert.True(t, stop.ReduceOnly)
	assert.InDelta(t, 77.6, stop.StopPrice, 1e-6)

	open, err := store.GetOpenTrades(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "BUY", open[0].Side)
	assert.NotZero(t, open[0].StopOrderID)

	assert.Equal(t, 1, e.Status().Risk.DailyTradeCount)
}

func TestScanSkipsWhenDisabled(t *testing.T) {
	broker := &fakeBroker{balance: exchange.Balance{Available: 1000}, fillPrice: 80}
	e, _ := newTestEngine(t, broker, &fakeSource{candles: candlesFromCloses(crashCloses())})
	e.Disable()

	require.NoError(t, e.Scan(context.Background()))
	assert.Empty(t, broker.marketOrders)
}

func TestScanClosesPositionOnExitSignal(t *testing.T) {
	price := 100 * (1 + 6.0/100 + 0.0008)
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100
	}
	closes[99] = price

	opened := time.Now().Add(-time.Hour)
	broker := &fakeBroker{
		balance: exchange.Balance{Available: 1000},
		positions: []exchange.Position{
			{Symbol: "ETHUSDT", Side: "LONG", Quantity: 1, EntryPrice: 100, MarkPrice: price, OpenedAt: opened},
		},
		fillPrice: price,
	}
	e, store := newTestEngine(t, broker, &fakeSource{candles: candlesFromCloses(closes)})
	require.NoError(t, store.SaveTradeRecord(context.Background(), &gormstore.TradeRecord{
		Symbol: "ETHUSDT", Side: "BUY", Quantity: 1, Price: 100, StopOrderID: 555, OpenedAt: opened,
	}))

	require.NoError(t, e.Scan(context.Background()))

	require.Len(t, broker.marketOrders, 1)
	order := broker.marketOrders[0]
	assert.Equal(t, "SELL", order.Side)
	assert.True(t, order.ReduceOnly)
	assert.Equal(t, 1.0, order.Quantity)

	// 平仓后撤掉遗留的保护性止损单。
	assert.Equal(t, []int64{555}, broker.canceled)

	open, err := store.GetOpenTrades(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Empty(t, open)

	stats, err := store.AggregateStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.Winning)
	assert.InDelta(t, price-100, stats.TotalPnL, 1e-6)
}

func TestScanContinuesAfterInstrumentError(t *testing.T) {
	broker := &fakeBroker{balance: exchange.Balance{Available: 1000}}
	e, _ := newTestEngine(t, broker, &fakeSource{err: errors.New("api down")})

	// 单个交易对失败不让整轮扫描报错。
	assert.NoError(t, e.Scan(context.Background()))
	assert.Empty(t, broker.marketOrders)
}

func TestDailyCounterResetsOnUTCRollover(t *testing.T) {
	broker := &fakeBroker{balance: exchange.Balance{Available: 1000}, fillPrice: 80}
	e, _ := newTestEngine(t, broker, &fakeSource{candles: candlesFromCloses(crashCloses())})

	r := e.risk
	r.RecordTradePlaced()
	r.RecordTradePlaced()
	require.Equal(t, 2, r.Metrics().DailyTradeCount)

	// 模拟第二天。
	e.nowFn = func() time.Time { return time.Now().AddDate(0, 0, 1) }
	e.maybeResetDailyCounters()
	assert.Equal(t, 0, r.Metrics().DailyTradeCount)
}

func TestScanDoesNotReenterExistingLong(t *testing.T) {
	broker := &fakeBroker{
		balance: exchange.Balance{Available: 1000},
		positions: []exchange.Position{
			// 刚开的仓（无成交记录时间也不会触发退出），超卖信号不应重复开多。
			{Symbol: "ETHUSDT", Side: "LONG", Quantity: 1, EntryPrice: 80},
		},
		fillPrice: 80,
	}
	e, _ := newTestEngine(t, broker, &fakeSource{candles: candlesFromCloses(crashCloses())})

	require.NoError(t, e.Scan(context.Background()))
	assert.Empty(t, broker.marketOrders)
}
