package strategy

import (
	"fmt"

	"tidebot/internal/market"

	"github.com/markcheno/go-talib"
)

// MeanReversion buys when the current price sits below the rolling average of
// the last Window closed candles, betting on a drift back toward the mean.
// Exits are driven purely by the profit/stop targets.
type MeanReversion struct {
	Window  int
	Targets Targets
}

func NewMeanReversion(window int, targets Targets) *MeanReversion {
	if window <= 0 {
		window = 24
	}
	return &MeanReversion{Window: window, Targets: targets}
}

func (s *MeanReversion) Name() string { return "mean_reversion" }

func (s *MeanReversion) Evaluate(symbol string, history []market.Candle, current float64, pos *OpenPosition) Decision {
	if d, ok := checkExit(symbol, current, pos, s.Targets); ok {
		return d
	}
	if pos != nil {
		return hold(symbol, "holding, exit targets not reached")
	}
	if len(history) < s.Window {
		return hold(symbol, fmt.Sprintf("insufficient history: %d of %d candles", len(history), s.Window))
	}
	closes := market.Closes(history)
	sma := talib.Sma(closes, s.Window)
	avg := sma[len(sma)-1]
	if current < avg {
		return Decision{
			Symbol: symbol,
			Action: ActionBuy,
			Reason: fmt.Sprintf("price %.8g below %d-period average %.8g", current, s.Window, avg),
		}
	}
	return hold(symbol, fmt.Sprintf("price %.8g at or above %d-period average %.8g", current, s.Window, avg))
}
