package market

import (
	"errors"
	"sync"
)

// CandleCache keeps a bounded rolling window of candles per symbol so feed
// implementations can answer History without refetching every tick.
type CandleCache struct {
	mu   sync.RWMutex
	data map[string][]Candle
	max  int
}

func NewCandleCache(max int) *CandleCache {
	if max <= 0 {
		max = 100
	}
	return &CandleCache{
		data: make(map[string][]Candle),
		max:  max,
	}
}

// Put merges candles into the symbol's window, replacing the entry with a
// matching open time and dropping the oldest beyond the cache bound.
func (c *CandleCache) Put(symbol string, candles []Candle) error {
	if symbol == "" {
		return errors.New("symbol cannot be empty")
	}
	if len(candles) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.data[symbol]
	for _, candle := range candles {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == candle.OpenTime {
			cur[n-1] = candle
			continue
		}
		if n > 0 && candle.OpenTime < cur[n-1].OpenTime {
			continue
		}
		cur = append(cur, candle)
	}
	if len(cur) > c.max {
		cur = cur[len(cur)-c.max:]
	}
	c.data[symbol] = cur
	return nil
}

// Get returns up to window candles ending at the most recent entry.
func (c *CandleCache) Get(symbol string, window int) []Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur := c.data[symbol]
	if len(cur) == 0 {
		return nil
	}
	if window > 0 && len(cur) > window {
		cur = cur[len(cur)-window:]
	}
	out := make([]Candle, len(cur))
	copy(out, cur)
	return out
}
