// Package portfolio owns the shared portfolio state: which symbols hold or
// may open a position, and how much capital each risk category has committed.
// Every admission and position transition runs under one lock so that two
// symbols racing for the last holding slot (or the last slice of a category
// ceiling) can never both win. The lock is never held across feed or gateway
// calls.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"tidebot/internal/gateway/exchange"
	pairs "tidebot/internal/pkg/symbol"
	"tidebot/internal/position"
	"tidebot/internal/strategy"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotRegistered means the symbol was never added to the portfolio.
	ErrNotRegistered = errors.New("symbol not registered")
	// ErrNotFlat means the symbol already has an open or in-flight position.
	ErrNotFlat = errors.New("symbol already has an open or pending position")
	// ErrMaxHoldings means the concurrent holdings ceiling is reached.
	ErrMaxHoldings = errors.New("max concurrent holdings reached")
	// ErrCapitalCeiling means the category's capital budget is exhausted.
	ErrCapitalCeiling = errors.New("category capital ceiling reached")
)

// SizingError reports a stake that rounds to zero at the venue's lot step.
// It is a rejection, not a fault: the engine logs the decision as a hold.
type SizingError struct {
	Symbol     string
	Investment float64
	Price      float64
	LotStep    float64
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("sizing %s: stake %.8g at price %.8g rounds to zero quantity (lot step %.8g)",
		e.Symbol, e.Investment, e.Price, e.LotStep)
}

// Config fixes the allocator's budgets and per-symbol classification.
type Config struct {
	MaxHoldings int
	// SymbolCategories classifies each symbol ("major", "altcoin", ...).
	SymbolCategories map[string]string
	// Investments is the fixed per-trade stake per category.
	Investments map[string]float64
	// CapitalCeilings caps total committed stake per category. A category
	// without an entry is unbounded; an explicit zero admits no buys.
	CapitalCeilings map[string]float64
	// Targets are the default exit thresholds applied on fill.
	Targets strategy.Targets
	// InvestmentOverrides and TargetOverrides carry per-bot settings from
	// the definition files, keyed by symbol.
	InvestmentOverrides map[string]float64
	TargetOverrides     map[string]strategy.Targets
}

// Allocator is the single owner of all trackers and capital accounting.
type Allocator struct {
	cfg     Config
	filters exchange.FilterProvider

	mu        sync.Mutex
	trackers  map[string]*position.Tracker
	committed map[string]float64 // category -> reserved + booked stake
	stakes    map[string]float64 // symbol -> stake counted in committed
	trades    []position.Trade
}

func NewAllocator(cfg Config, filters exchange.FilterProvider) *Allocator {
	return &Allocator{
		cfg:       cfg,
		filters:   filters,
		trackers:  make(map[string]*position.Tracker),
		committed: make(map[string]float64),
		stakes:    make(map[string]float64),
	}
}

// Register adds a symbol to the portfolio. Registering twice is a no-op.
func (a *Allocator) Register(symbol string) {
	symbol = pairs.Normalize(symbol)
	if symbol == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.trackers[symbol]; !ok {
		a.trackers[symbol] = position.NewTracker(symbol)
	}
}

func (a *Allocator) Symbols() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.trackers))
	for sym := range a.trackers {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// OpenPosition returns the strategy view of the symbol's position, nil if flat.
func (a *Allocator) OpenPosition(symbol string) *strategy.OpenPosition {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.trackers[symbol]
	if !ok {
		return nil
	}
	pos, held := t.Position()
	if !held {
		return nil
	}
	return &strategy.OpenPosition{EntryPrice: pos.EntryPrice, Quantity: pos.Quantity}
}

// State returns the tracker state for the symbol.
func (a *Allocator) State(symbol string) (position.State, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.trackers[symbol]
	if !ok {
		return position.StateFlat, false
	}
	return t.State(), true
}

// AdmitBuy checks portfolio constraints and, when they pass, sizes the order
// and atomically reserves the stake while marking the tracker PendingBuy. On
// success the caller must resolve the reservation with ConfirmBuy or FailBuy.
//
// The venue filters are fetched before taking the lock: the provider may hit
// the network and admission must stay serialized but non-blocking.
func (a *Allocator) AdmitBuy(ctx context.Context, symbol string, price float64) (quantity float64, err error) {
	if price <= 0 {
		return 0, fmt.Errorf("admit %s: invalid price %v", symbol, price)
	}
	filters, err := a.filters.Filters(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("admit %s: filters unavailable: %w", symbol, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.trackers[symbol]
	if !ok {
		return 0, fmt.Errorf("admit %s: %w", symbol, ErrNotRegistered)
	}
	if t.State() != position.StateFlat {
		return 0, fmt.Errorf("admit %s: %w", symbol, ErrNotFlat)
	}
	// A zero or negative ceiling degrades to "admit no buys" rather than
	// faulting; the count below naturally enforces it.
	if a.activeCountLocked() >= a.cfg.MaxHoldings {
		return 0, fmt.Errorf("admit %s: %w (%d)", symbol, ErrMaxHoldings, a.cfg.MaxHoldings)
	}
	category, stake := a.investmentLocked(symbol)
	if stake <= 0 {
		return 0, fmt.Errorf("admit %s: no investment configured for category %q", symbol, category)
	}
	if ceiling, capped := a.cfg.CapitalCeilings[category]; capped {
		if a.committed[category]+stake > ceiling {
			return 0, fmt.Errorf("admit %s: %w (category %s: committed %.2f + stake %.2f > ceiling %.2f)",
				symbol, ErrCapitalCeiling, category, a.committed[category], stake, ceiling)
		}
	}
	quantity, err = sizeQuantity(symbol, stake, price, filters)
	if err != nil {
		return 0, err
	}
	if err := t.BeginBuy(); err != nil {
		return 0, err
	}
	a.committed[category] += stake
	a.stakes[symbol] = stake
	return quantity, nil
}

// ConfirmBuy re-books the reservation at the actual fill cost and moves the
// tracker to Holding.
func (a *Allocator) ConfirmBuy(symbol string, res exchange.OrderResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.trackers[symbol]
	if !ok {
		return fmt.Errorf("confirm buy %s: %w", symbol, ErrNotRegistered)
	}
	targets := a.targetsLocked(symbol)
	if err := t.ConfirmBuy(res, targets.ProfitTargetRatio, targets.StopLossRatio); err != nil {
		return err
	}
	category, _ := a.investmentLocked(symbol)
	actual := res.FilledPrice * res.FilledQuantity
	a.committed[category] += actual - a.stakes[symbol]
	a.stakes[symbol] = actual
	return nil
}

// FailBuy releases the reservation and returns the tracker to Flat.
func (a *Allocator) FailBuy(symbol string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.trackers[symbol]
	if !ok {
		return fmt.Errorf("fail buy %s: %w", symbol, ErrNotRegistered)
	}
	if err := t.FailBuy(); err != nil {
		return err
	}
	a.releaseLocked(symbol)
	return nil
}

// AdmitSell marks the holding PendingSell and returns the quantity to close.
// Exits are never blocked by holdings or capital limits: reducing risk must
// not be throttled.
func (a *Allocator) AdmitSell(symbol string) (quantity float64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.trackers[symbol]
	if !ok {
		return 0, fmt.Errorf("admit sell %s: %w", symbol, ErrNotRegistered)
	}
	pos, held := t.Position()
	if !held {
		return 0, fmt.Errorf("admit sell %s: no open position", symbol)
	}
	if err := t.BeginSell(); err != nil {
		return 0, err
	}
	return pos.Quantity, nil
}

// ConfirmSell frees the symbol's capital, archives the round trip and returns
// the tracker to Flat.
func (a *Allocator) ConfirmSell(symbol string, res exchange.OrderResult, reason string) (position.Trade, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.trackers[symbol]
	if !ok {
		return position.Trade{}, fmt.Errorf("confirm sell %s: %w", symbol, ErrNotRegistered)
	}
	trade, err := t.ConfirmSell(res, reason)
	if err != nil {
		return position.Trade{}, err
	}
	a.releaseLocked(symbol)
	a.trades = append(a.trades, trade)
	return trade, nil
}

// FailSell keeps the position and returns the tracker to Holding.
func (a *Allocator) FailSell(symbol string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.trackers[symbol]
	if !ok {
		return fmt.Errorf("fail sell %s: %w", symbol, ErrNotRegistered)
	}
	return t.FailSell()
}

// OpenCount returns the number of open or in-flight positions.
func (a *Allocator) OpenCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeCountLocked()
}

// Trades returns the archive of completed round trips.
func (a *Allocator) Trades() []position.Trade {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]position.Trade, len(a.trades))
	copy(out, a.trades)
	return out
}

// Snapshot captures the portfolio for external observers.
type Snapshot struct {
	States    map[string]string  `json:"states"`
	Positions []position.Position `json:"positions"`
	Committed map[string]float64 `json:"committed"`
	Trades    int                `json:"trades"`
}

func (a *Allocator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap := Snapshot{
		States:    make(map[string]string, len(a.trackers)),
		Committed: make(map[string]float64, len(a.committed)),
		Trades:    len(a.trades),
	}
	for sym, t := range a.trackers {
		snap.States[sym] = t.State().String()
		if pos, held := t.Position(); held {
			snap.Positions = append(snap.Positions, pos)
		}
	}
	for cat, amount := range a.committed {
		snap.Committed[cat] = amount
	}
	sort.Slice(snap.Positions, func(i, j int) bool { return snap.Positions[i].Symbol < snap.Positions[j].Symbol })
	return snap
}

func (a *Allocator) activeCountLocked() int {
	n := 0
	for _, t := range a.trackers {
		if t.State() != position.StateFlat {
			n++
		}
	}
	return n
}

func (a *Allocator) investmentLocked(symbol string) (category string, stake float64) {
	if amount, ok := a.cfg.InvestmentOverrides[symbol]; ok && amount > 0 {
		return a.categoryLocked(symbol), amount
	}
	category = a.categoryLocked(symbol)
	return category, a.cfg.Investments[category]
}

func (a *Allocator) categoryLocked(symbol string) string {
	if cat, ok := a.cfg.SymbolCategories[symbol]; ok {
		return cat
	}
	return "altcoin"
}

func (a *Allocator) targetsLocked(symbol string) strategy.Targets {
	if t, ok := a.cfg.TargetOverrides[symbol]; ok {
		return t
	}
	return a.cfg.Targets
}

func (a *Allocator) releaseLocked(symbol string) {
	category, _ := a.investmentLocked(symbol)
	if stake, ok := a.stakes[symbol]; ok {
		a.committed[category] -= stake
		if a.committed[category] < 0 {
			a.committed[category] = 0
		}
		delete(a.stakes, symbol)
	}
}

// sizeQuantity converts a quote-currency stake into a base quantity floored to
// the venue's lot step. decimal arithmetic avoids the float drift that makes
// (stake/price)/step land one ulp under an integer and truncate a full step.
func sizeQuantity(symbol string, stake, price float64, filters exchange.SymbolFilters) (float64, error) {
	step := filters.LotStep
	if step <= 0 {
		step = 0.00000001
	}
	raw := decimal.NewFromFloat(stake).Div(decimal.NewFromFloat(price))
	stepDec := decimal.NewFromFloat(step)
	qty := raw.Div(stepDec).Floor().Mul(stepDec)
	q, _ := qty.Float64()
	if q <= 0 || q < filters.MinQuantity {
		return 0, &SizingError{Symbol: symbol, Investment: stake, Price: price, LotStep: step}
	}
	if filters.MinNotional > 0 && q*price < filters.MinNotional {
		return 0, &SizingError{Symbol: symbol, Investment: stake, Price: price, LotStep: step}
	}
	return q, nil
}
