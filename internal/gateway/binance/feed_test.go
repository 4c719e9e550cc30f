package binance

import (
	"testing"
	"time"

	"tidebot/internal/market"

	"github.com/stretchr/testify/assert"
)

func TestDropUnclosedRemovesTrailingCandle(t *testing.T) {
	candles := []market.Candle{
		{OpenTime: 0, CloseTime: 999, Close: 1},
		{OpenTime: 1000, CloseTime: 1999, Close: 2},
		{OpenTime: 2000, CloseTime: 2999, Close: 3},
	}

	// Now falls inside the last candle's period.
	got := dropUnclosed(candles, 2500)
	assert.Len(t, got, 2)
	assert.Equal(t, 2.0, got[1].Close)

	// All candles closed.
	got = dropUnclosed(candles, 3000)
	assert.Len(t, got, 3)

	assert.Empty(t, dropUnclosed(nil, 1000))
}

func TestFormatQuantityAvoidsExponent(t *testing.T) {
	assert.Equal(t, "0.003", formatQuantity(0.003))
	assert.Equal(t, "0.00000001", formatQuantity(0.00000001))
	assert.Equal(t, "150", formatQuantity(150))
}

func TestNextBoundaryLandsOnPeriodClose(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 25, 13, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC), nextBoundary(now, time.Hour))
	assert.Equal(t, time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC), nextBoundary(now, 15*time.Minute))

	// Exactly on a boundary rolls to the next one.
	onBoundary := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 29, 11, 0, 0, 0, time.UTC), nextBoundary(onBoundary, time.Hour))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "https://api.binance.com", cfg.RESTBaseURL)
	assert.Equal(t, "1h", cfg.KlineInterval)
	assert.Positive(t, cfg.HTTPTimeout)
}
