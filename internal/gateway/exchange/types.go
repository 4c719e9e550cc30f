// Package exchange defines the venue-neutral order boundary. The engine talks
// to this contract only; the Binance client and the paper gateway implement it.
package exchange

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderRequest asks the venue for a market order.
type OrderRequest struct {
	Symbol   string
	Side     Side
	Quantity float64
	// ClientID tags the order for reconciliation against the venue's fill
	// stream. Generated per submission, never reused.
	ClientID string
}

// OrderResult reports a confirmed fill. FilledPrice and FilledQuantity come
// from the venue, not from the request: slippage and partial rounding mean the
// two can differ, and positions must be booked from what actually executed.
type OrderResult struct {
	Symbol         string
	Side           Side
	OrderID        string
	FilledPrice    float64
	FilledQuantity float64
	FilledAt       time.Time
}

// SymbolFilters carries the venue's sizing rules for one symbol.
type SymbolFilters struct {
	Symbol      string
	LotStep     float64 // minimum tradeable quantity increment
	MinQuantity float64
	MinNotional float64
}
