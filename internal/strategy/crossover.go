package strategy

import (
	"fmt"

	"tidebot/internal/market"

	"github.com/markcheno/go-talib"
)

// Crossover trades the short/long moving-average cross. Entries require the
// cross to have happened on the latest closed candle with the current price
// still under the long average, which filters out chasing an extended move.
type Crossover struct {
	ShortWindow int
	LongWindow  int
	Targets     Targets
}

func NewCrossover(short, long int, targets Targets) *Crossover {
	if short <= 0 {
		short = 6
	}
	if long <= short {
		long = short * 4
	}
	return &Crossover{ShortWindow: short, LongWindow: long, Targets: targets}
}

func (s *Crossover) Name() string { return "crossover" }

func (s *Crossover) Evaluate(symbol string, history []market.Candle, current float64, pos *OpenPosition) Decision {
	if d, ok := checkExit(symbol, current, pos, s.Targets); ok {
		return d
	}
	// Detecting a cross needs the long window plus one preceding candle.
	if len(history) < s.LongWindow+1 {
		return hold(symbol, fmt.Sprintf("insufficient history: %d of %d candles", len(history), s.LongWindow+1))
	}
	closes := market.Closes(history)
	short := talib.Sma(closes, s.ShortWindow)
	long := talib.Sma(closes, s.LongWindow)
	n := len(closes)
	shortNow, longNow := short[n-1], long[n-1]
	shortPrev, longPrev := short[n-2], long[n-2]

	if pos != nil {
		if shortNow < longNow && shortPrev >= longPrev {
			return Decision{
				Symbol: symbol,
				Action: ActionSell,
				Reason: fmt.Sprintf("death cross: short %.8g fell below long %.8g", shortNow, longNow),
			}
		}
		return hold(symbol, "holding, no exit condition")
	}

	if shortNow > longNow && shortPrev <= longPrev && current < longNow {
		return Decision{
			Symbol: symbol,
			Action: ActionBuy,
			Reason: fmt.Sprintf("golden cross: short %.8g above long %.8g, price %.8g under long average", shortNow, longNow, current),
		}
	}
	return hold(symbol, "no entry signal")
}
