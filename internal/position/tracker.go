// Package position owns the per-symbol order lifecycle. A Tracker is a small
// state machine driven by the engine: it validates every transition so a buy
// can never be double-submitted and a failed sell can never drop a live
// position on the floor.
package position

import (
	"fmt"
	"time"

	"tidebot/internal/gateway/exchange"
)

type State int

const (
	StateFlat State = iota
	StatePendingBuy
	StateHolding
	StatePendingSell
)

func (s State) String() string {
	switch s {
	case StateFlat:
		return "FLAT"
	case StatePendingBuy:
		return "PENDING_BUY"
	case StateHolding:
		return "HOLDING"
	case StatePendingSell:
		return "PENDING_SELL"
	default:
		return "UNKNOWN"
	}
}

// Pending reports whether an order is in flight for this state.
func (s State) Pending() bool {
	return s == StatePendingBuy || s == StatePendingSell
}

// Position is an open holding in one symbol.
type Position struct {
	Symbol            string    `json:"symbol"`
	EntryPrice        float64   `json:"entry_price"`
	Quantity          float64   `json:"quantity"`
	EntryTime         time.Time `json:"entry_time"`
	ProfitTargetPrice float64   `json:"profit_target_price"`
	StopLossPrice     float64   `json:"stop_loss_price"`
}

// Trade is an archived round trip.
type Trade struct {
	Symbol      string    `json:"symbol"`
	Quantity    float64   `json:"quantity"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	RealizedPnL float64   `json:"realized_pnl"`
	Reason      string    `json:"reason"`
	EntryTime   time.Time `json:"entry_time"`
	ExitTime    time.Time `json:"exit_time"`
}

// TransitionError reports an attempted transition that the current state does
// not allow.
type TransitionError struct {
	Symbol string
	From   State
	Event  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("position %s: cannot %s from %s", e.Symbol, e.Event, e.From)
}

// Tracker holds the state machine for one symbol. It is not internally
// locked: the allocator owns all trackers and serializes access.
type Tracker struct {
	symbol string
	state  State
	pos    *Position
}

func NewTracker(symbol string) *Tracker {
	return &Tracker{symbol: symbol, state: StateFlat}
}

func (t *Tracker) Symbol() string { return t.symbol }
func (t *Tracker) State() State   { return t.state }

// Position returns a copy of the open position, if any.
func (t *Tracker) Position() (Position, bool) {
	if t.pos == nil {
		return Position{}, false
	}
	return *t.pos, true
}

// Pending reports whether an order is in flight for this symbol. Pending
// symbols are excluded from admission until the order resolves.
func (t *Tracker) Pending() bool {
	return t.state == StatePendingBuy || t.state == StatePendingSell
}

// BeginBuy moves Flat -> PendingBuy once a buy decision has been admitted.
func (t *Tracker) BeginBuy() error {
	if t.state != StateFlat {
		return &TransitionError{Symbol: t.symbol, From: t.state, Event: "begin buy"}
	}
	t.state = StatePendingBuy
	return nil
}

// ConfirmBuy books the position from the venue's fill, not the request:
// the executed price and quantity are what the account actually holds.
func (t *Tracker) ConfirmBuy(res exchange.OrderResult, profitTargetRatio, stopLossRatio float64) error {
	if t.state != StatePendingBuy {
		return &TransitionError{Symbol: t.symbol, From: t.state, Event: "confirm buy"}
	}
	if res.FilledPrice <= 0 || res.FilledQuantity <= 0 {
		return fmt.Errorf("position %s: fill has invalid price/quantity (%v/%v)", t.symbol, res.FilledPrice, res.FilledQuantity)
	}
	t.pos = &Position{
		Symbol:            t.symbol,
		EntryPrice:        res.FilledPrice,
		Quantity:          res.FilledQuantity,
		EntryTime:         res.FilledAt,
		ProfitTargetPrice: res.FilledPrice * profitTargetRatio,
		StopLossPrice:     res.FilledPrice * stopLossRatio,
	}
	t.state = StateHolding
	return nil
}

// FailBuy returns to Flat. Failed entries are not retried here; the next
// scheduled tick re-evaluates from scratch.
func (t *Tracker) FailBuy() error {
	if t.state != StatePendingBuy {
		return &TransitionError{Symbol: t.symbol, From: t.state, Event: "fail buy"}
	}
	t.state = StateFlat
	return nil
}

// BeginSell moves Holding -> PendingSell.
func (t *Tracker) BeginSell() error {
	if t.state != StateHolding {
		return &TransitionError{Symbol: t.symbol, From: t.state, Event: "begin sell"}
	}
	t.state = StatePendingSell
	return nil
}

// ConfirmSell archives the round trip and returns to Flat. Realized P/L uses
// the sell fill price against the booked entry.
func (t *Tracker) ConfirmSell(res exchange.OrderResult, reason string) (Trade, error) {
	if t.state != StatePendingSell {
		return Trade{}, &TransitionError{Symbol: t.symbol, From: t.state, Event: "confirm sell"}
	}
	pos := t.pos
	trade := Trade{
		Symbol:      t.symbol,
		Quantity:    pos.Quantity,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   res.FilledPrice,
		RealizedPnL: (res.FilledPrice - pos.EntryPrice) * pos.Quantity,
		Reason:      reason,
		EntryTime:   pos.EntryTime,
		ExitTime:    res.FilledAt,
	}
	t.pos = nil
	t.state = StateFlat
	return trade, nil
}

// FailSell keeps the position. Dropping it would orphan real holdings; the
// next tick retries the exit.
func (t *Tracker) FailSell() error {
	if t.state != StatePendingSell {
		return &TransitionError{Symbol: t.symbol, From: t.state, Event: "fail sell"}
	}
	t.state = StateHolding
	return nil
}
