// Package sim provides a recorded-candle market feed and a paper trading
// gateway. Together with the pure strategies they make a full engine run
// replayable offline: same recordings in, same trades out.
package sim

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"tidebot/internal/logger"
	"tidebot/internal/market"
)

// Feed replays recorded candles. Each call to CurrentPrice advances the
// symbol's cursor by one candle; History returns the closed candles behind
// the cursor, so a strategy sees exactly what it would have seen live.
type Feed struct {
	mu      sync.Mutex
	candles map[string][]market.Candle
	cursor  map[string]int
}

// LoadDir reads every *.json recording in dir. The file name (without
// extension) is the symbol; the payload is a JSON array of candle objects
// with open_time/close_time in unix milliseconds.
func LoadDir(dir string) (*Feed, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read recordings dir %s: %w", dir, err)
	}
	f := &Feed{
		candles: make(map[string][]market.Candle),
		cursor:  make(map[string]int),
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSuffix(entry.Name(), ".json"))
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read recording %s: %w", entry.Name(), err)
		}
		candles, err := parseRecording(raw)
		if err != nil {
			logger.Warnf("Feed: skipping recording %s: %v", entry.Name(), err)
			continue
		}
		f.candles[symbol] = candles
		logger.Infof("Feed: loaded %d candles for %s", len(candles), symbol)
	}
	if len(f.candles) == 0 {
		return nil, fmt.Errorf("no usable recordings in %s", dir)
	}
	return f, nil
}

func parseRecording(raw []byte) ([]market.Candle, error) {
	parsed := gjson.ParseBytes(raw)
	arr := parsed
	if parsed.IsObject() {
		arr = parsed.Get("candles")
	}
	if !arr.IsArray() {
		return nil, fmt.Errorf("recording is not a candle array")
	}
	var candles []market.Candle
	var badRow error
	arr.ForEach(func(_, row gjson.Result) bool {
		open := row.Get("open")
		close_ := row.Get("close")
		if !open.Exists() || !close_.Exists() {
			badRow = fmt.Errorf("candle %d missing open/close", len(candles))
			return false
		}
		candles = append(candles, market.Candle{
			OpenTime:  row.Get("open_time").Int(),
			CloseTime: row.Get("close_time").Int(),
			Open:      open.Float(),
			High:      row.Get("high").Float(),
			Low:       row.Get("low").Float(),
			Close:     close_.Float(),
			Volume:    row.Get("volume").Float(),
		})
		return true
	})
	if badRow != nil {
		return nil, badRow
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("recording holds no candles")
	}
	return candles, nil
}

// Symbols lists the recorded symbols.
func (f *Feed) Symbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.candles))
	for sym := range f.candles {
		out = append(out, sym)
	}
	return out
}

func (f *Feed) CurrentPrice(ctx context.Context, symbol string) (market.PriceSample, error) {
	if err := ctx.Err(); err != nil {
		return market.PriceSample{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	candles, ok := f.candles[symbol]
	if !ok {
		return market.PriceSample{}, fmt.Errorf("no recording for %s", symbol)
	}
	i := f.cursor[symbol]
	if i >= len(candles) {
		return market.PriceSample{}, fmt.Errorf("recording for %s exhausted after %d candles", symbol, len(candles))
	}
	f.cursor[symbol] = i + 1
	c := candles[i]
	return market.PriceSample{Symbol: symbol, At: time.UnixMilli(c.CloseTime).UTC(), Price: c.Close}, nil
}

func (f *Feed) History(ctx context.Context, symbol string, window int) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	candles, ok := f.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("no recording for %s", symbol)
	}
	// The cursor points past the last sampled candle; that candle is the most
	// recent closed one.
	end := f.cursor[symbol]
	if end > len(candles) {
		end = len(candles)
	}
	start := end - window
	if start < 0 {
		start = 0
	}
	out := make([]market.Candle, end-start)
	copy(out, candles[start:end])
	return out, nil
}

// LastPrice peeks at the most recently sampled close without advancing.
func (f *Feed) LastPrice(symbol string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	candles, ok := f.candles[symbol]
	if !ok || len(candles) == 0 {
		return 0, false
	}
	i := f.cursor[symbol]
	if i == 0 {
		return candles[0].Close, true
	}
	if i > len(candles) {
		i = len(candles)
	}
	return candles[i-1].Close, true
}

func (f *Feed) Close() error { return nil }
