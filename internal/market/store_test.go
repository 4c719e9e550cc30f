package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func c(openTime int64, close float64) Candle {
	return Candle{OpenTime: openTime, CloseTime: openTime + 999, Close: close}
}

func TestCacheMergesByOpenTime(t *testing.T) {
	cache := NewCandleCache(10)

	assert.NoError(t, cache.Put("BTCUSDT", []Candle{c(0, 1), c(1000, 2)}))
	// Same open time replaces, newer appends, older is ignored.
	assert.NoError(t, cache.Put("BTCUSDT", []Candle{c(1000, 2.5), c(2000, 3)}))

	got := cache.Get("BTCUSDT", 10)
	assert.Len(t, got, 3)
	assert.Equal(t, 2.5, got[1].Close)
	assert.Equal(t, 3.0, got[2].Close)
}

func TestCacheBoundsWindow(t *testing.T) {
	cache := NewCandleCache(3)
	for i := int64(0); i < 6; i++ {
		assert.NoError(t, cache.Put("BTCUSDT", []Candle{c(i*1000, float64(i))}))
	}

	got := cache.Get("BTCUSDT", 10)
	assert.Len(t, got, 3)
	assert.Equal(t, 3.0, got[0].Close)

	windowed := cache.Get("BTCUSDT", 2)
	assert.Len(t, windowed, 2)
	assert.Equal(t, 5.0, windowed[1].Close)
}

func TestCacheRejectsEmptySymbol(t *testing.T) {
	cache := NewCandleCache(3)
	assert.Error(t, cache.Put("", []Candle{c(0, 1)}))
	assert.Nil(t, cache.Get("ETHUSDT", 5))
}
