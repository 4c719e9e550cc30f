// Package strategy turns price history into trade decisions. Evaluators are
// pure: the same history and position always produce the same decision, which
// keeps live runs replayable against recorded candles.
package strategy

import (
	"fmt"

	"tidebot/internal/market"
)

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Decision is the transient output of one evaluation.
type Decision struct {
	Symbol string
	Action Action
	Reason string
}

// OpenPosition is the minimal view of a held position an evaluator needs.
// nil means flat.
type OpenPosition struct {
	EntryPrice float64
	Quantity   float64
}

// Targets are the multiplicative exit thresholds on the entry price.
type Targets struct {
	ProfitTargetRatio float64
	StopLossRatio     float64
}

// Strategy is the evaluation capability. Implementations must be free of side
// effects and must not retain state between calls.
type Strategy interface {
	Name() string

	// Evaluate inspects the closed-candle history, the current price and the
	// open position (nil if flat) and returns a decision. History shorter
	// than the strategy's long window yields hold, not an error.
	Evaluate(symbol string, history []market.Candle, current float64, pos *OpenPosition) Decision
}

func hold(symbol, reason string) Decision {
	return Decision{Symbol: symbol, Action: ActionHold, Reason: reason}
}

// checkExit applies the shared profit-target / stop-loss exit rules. The stop
// loss is checked first: when misconfigured targets make both reachable at the
// same price, capital preservation wins over profit taking.
func checkExit(symbol string, current float64, pos *OpenPosition, targets Targets) (Decision, bool) {
	if pos == nil || pos.EntryPrice <= 0 {
		return Decision{}, false
	}
	if current <= pos.EntryPrice*targets.StopLossRatio {
		return Decision{
			Symbol: symbol,
			Action: ActionSell,
			Reason: fmt.Sprintf("stop loss: price %.8g <= entry %.8g x %.4g", current, pos.EntryPrice, targets.StopLossRatio),
		}, true
	}
	if current >= pos.EntryPrice*targets.ProfitTargetRatio {
		return Decision{
			Symbol: symbol,
			Action: ActionSell,
			Reason: fmt.Sprintf("profit target: price %.8g >= entry %.8g x %.4g", current, pos.EntryPrice, targets.ProfitTargetRatio),
		}, true
	}
	return Decision{}, false
}
