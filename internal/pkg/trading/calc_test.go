package trading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRealizedPnL(t *testing.T) {
	assert.Equal(t, 60.0, RealizedPnL("BUY", 10, 100, 106))
	assert.Equal(t, -30.0, RealizedPnL("BUY", 10, 100, 97))
	assert.Equal(t, 60.0, RealizedPnL("SELL", 10, 100, 94))
	assert.Equal(t, -30.0, RealizedPnL("SHORT", 10, 100, 103))
	assert.Zero(t, RealizedPnL("BUY", 0, 100, 106))
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 6.0, PercentChange(100, 106))
	assert.Equal(t, -3.0, PercentChange(100, 97))
	assert.Zero(t, PercentChange(0, 100))
}

func TestDrawdownPct(t *testing.T) {
	assert.Equal(t, 20.0, DrawdownPct(1000, 800))
	assert.Zero(t, DrawdownPct(1000, 1100))
	assert.Zero(t, DrawdownPct(0, 100))
}

func TestWinRate(t *testing.T) {
	assert.Equal(t, 60.0, WinRate(6, 4))
	assert.Zero(t, WinRate(0, 0))
}

func TestQuantityFromNotional(t *testing.T) {
	assert.Equal(t, 0.5, QuantityFromNotional(50, 100))
	assert.Zero(t, QuantityFromNotional(50, 0))
}
