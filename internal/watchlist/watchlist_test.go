package watchlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	raw := []byte(`
instruments:
  - symbol: ETH/USDT
    interval: 1h
  - symbol: btcusdt
  - symbol: ETHUSDT
    interval: 4h
`)
	got, err := Parse(raw)
	require.NoError(t, err)
	// 重复符号去重，保留第一个。
	require.Len(t, got, 2)
	assert.Equal(t, Instrument{Symbol: "ETHUSDT", Interval: "1h"}, got[0])
	assert.Equal(t, Instrument{Symbol: "BTCUSDT", Interval: "1h"}, got[1])
}

func TestParseRejectsNonUSDTPair(t *testing.T) {
	_, err := Parse([]byte("instruments:\n  - symbol: ETHBTC\n"))
	assert.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse([]byte("instruments: []\n"))
	assert.Error(t, err)
}
