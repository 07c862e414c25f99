package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talon/internal/market"
)

type stubSource struct {
	candles []market.Candle
	err     error
}

func (s *stubSource) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	return s.candles, s.err
}

func (s *stubSource) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if len(s.candles) == 0 {
		return 0, errors.New("no data")
	}
	return s.candles[len(s.candles)-1].Close, nil
}

func (s *stubSource) Stats() market.SourceStats { return market.SourceStats{} }
func (s *stubSource) Close() error              { return nil }

type stubPositions struct {
	list []Position
	err  error
}

func (s *stubPositions) OpenPositions(ctx context.Context) ([]Position, error) {
	return s.list, s.err
}

type stubTrades struct {
	list []OpenTrade
	err  error
}

func (s *stubTrades) OpenTrades(ctx context.Context, symbol string) ([]OpenTrade, error) {
	return s.list, s.err
}

// 平盘后急跌的行情：前 86 根收于 100，后 14 根跌到 80。
func crashCandles() []market.Candle {
	closes := flatCloses(100, 100)
	step := 20.0 / 14.0
	for k := 1; k <= 14; k++ {
		closes[85+k] = 100 - step*float64(k)
	}
	closes[99] = 80
	return candlesFromCloses(closes)
}

func TestAnalyzeBuyRoundTrip(t *testing.T) {
	a := NewAnalyzer(&stubSource{candles: crashCandles()}, &stubPositions{}, &stubTrades{}, testParams, "1h")

	sig, err := a.Analyze(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, SignalBuy, sig.Kind)
	assert.Equal(t, 80.0, sig.EntryPrice)
	assert.InDelta(t, 77.6, sig.StopLoss, 1e-9)
	assert.InDelta(t, 84.8, sig.TakeProfit, 1e-9)
	assert.NotZero(t, sig.Support)
	assert.NotZero(t, sig.Resistance)
}

func TestAnalyzeExitRoundTrip(t *testing.T) {
	now := time.Now()
	price := 100 * (1 + testParams.TakeProfitPct/100 + feeBuffer)
	src := &stubSource{candles: candlesFromCloses(append(flatCloses(99, 100), price))}
	positions := &stubPositions{list: []Position{
		{Symbol: "ETHUSDT", Side: "LONG", Quantity: 1, EntryPrice: 100, OpenedAt: now.Add(-time.Hour)},
	}}
	trades := &stubTrades{list: []OpenTrade{
		{Side: "BUY", Quantity: 1, Price: 100, OpenedAt: now.Add(-time.Hour)},
	}}
	a := NewAnalyzer(src, positions, trades, testParams, "1h")

	sig, err := a.Analyze(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, SignalSell, sig.Kind)
	assert.Equal(t, 0.9, sig.Confidence)
	assert.Contains(t, sig.Reason, "take profit")
}

func TestAnalyzeSourceError(t *testing.T) {
	a := NewAnalyzer(&stubSource{err: errors.New("api down")}, &stubPositions{}, &stubTrades{}, testParams, "1h")
	_, err := a.Analyze(context.Background(), "ETHUSDT")
	assert.Error(t, err)
}

func TestAnalyzePositionErrorPropagates(t *testing.T) {
	// 实时持仓读不到时整轮失败，不允许回退到本地缓存。
	a := NewAnalyzer(
		&stubSource{candles: candlesFromCloses(flatCloses(100, 100))},
		&stubPositions{err: errors.New("exchange timeout")},
		&stubTrades{},
		testParams, "1h",
	)
	_, err := a.Analyze(context.Background(), "ETHUSDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positions")
}

func TestAnalyzeTradeErrorDegrades(t *testing.T) {
	now := time.Now()
	a := NewAnalyzer(
		&stubSource{candles: candlesFromCloses(flatCloses(100, 100))},
		&stubPositions{list: []Position{
			{Symbol: "ETHUSDT", Side: "LONG", Quantity: 1, EntryPrice: 100, OpenedAt: now.Add(-time.Hour)},
		}},
		&stubTrades{err: errors.New("db locked")},
		testParams, "1h",
	)
	sig, err := a.Analyze(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, SignalHold, sig.Kind)
}

func TestAnalyzeSetParamsTakesEffect(t *testing.T) {
	a := NewAnalyzer(&stubSource{candles: crashCandles()}, &stubPositions{}, &stubTrades{}, testParams, "1h")

	loose := testParams
	loose.RSIOversold = 0 // RSI 永远不低于 0，超卖条件失效
	a.SetParams(loose)

	sig, err := a.Analyze(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, SignalHold, sig.Kind)
}
