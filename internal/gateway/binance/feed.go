package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"tidebot/internal/market"

	"github.com/adshao/go-binance/v2"
)

const maxHistoryLimit = 1000

// Feed implements market.Feed on top of the Binance spot REST API. Fetched
// candles are merged into a rolling per-symbol cache, so a tick where the
// venue returns a short batch still serves the full requested window.
type Feed struct {
	cfg    Config
	client *binance.Client
	cache  *market.CandleCache

	mu        sync.Mutex
	refreshAt map[string]time.Time
}

var _ market.Feed = (*Feed)(nil)

func NewFeed(cfg Config) *Feed {
	final := cfg.withDefaults()
	client := binance.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Feed{
		cfg:       final,
		client:    client,
		cache:     market.NewCandleCache(maxHistoryLimit),
		refreshAt: make(map[string]time.Time),
	}
}

func (f *Feed) CurrentPrice(ctx context.Context, symbol string) (market.PriceSample, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return market.PriceSample{}, fmt.Errorf("symbol is required")
	}
	prices, err := f.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return market.PriceSample{}, err
	}
	if len(prices) == 0 || prices[0] == nil {
		return market.PriceSample{}, fmt.Errorf("no price returned for %s", symbol)
	}
	price := parseFloat(prices[0].Price)
	if price <= 0 {
		return market.PriceSample{}, fmt.Errorf("invalid price %q for %s", prices[0].Price, symbol)
	}
	return market.PriceSample{Symbol: symbol, At: time.Now(), Price: price}, nil
}

func (f *Feed) History(ctx context.Context, symbol string, window int) ([]market.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if window <= 0 {
		window = 24
	}
	// Closed candles only change at period boundaries; between boundaries the
	// cached window is authoritative and the API call is skipped.
	if f.cfg.Interval > 0 {
		f.mu.Lock()
		fresh := time.Now().Before(f.refreshAt[symbol])
		f.mu.Unlock()
		if fresh {
			if cached := f.cache.Get(symbol, window); len(cached) >= window {
				return cached, nil
			}
		}
	}
	// Fetch one extra so the unclosed head candle can be dropped without
	// shrinking the requested window.
	limit := window + 1
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	kls, err := f.client.NewKlinesService().
		Symbol(symbol).
		Interval(f.cfg.KlineInterval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	out = dropUnclosed(out, time.Now().UnixMilli())
	if err := f.cache.Put(symbol, out); err != nil {
		return nil, err
	}
	if f.cfg.Interval > 0 {
		f.mu.Lock()
		f.refreshAt[symbol] = nextBoundary(time.Now(), f.cfg.Interval)
		f.mu.Unlock()
	}
	return f.cache.Get(symbol, window), nil
}

// nextBoundary is the next candle close at or after now. Kline periods open
// on round multiples of their length, so truncation lands on the current
// candle's open.
func nextBoundary(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}

func (f *Feed) Close() error { return nil }

// dropUnclosed removes the trailing candle if its close time is still in the
// future. Strategies must only see closed periods.
func dropUnclosed(candles []market.Candle, nowMillis int64) []market.Candle {
	n := len(candles)
	if n == 0 {
		return candles
	}
	if candles[n-1].CloseTime > nowMillis {
		return candles[:n-1]
	}
	return candles
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
