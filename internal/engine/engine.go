// Package engine runs the trading loop: one goroutine per symbol evaluates the
// strategy on a fixed cadence, and all portfolio mutations funnel through the
// allocator. The portfolio lock is never held across feed or venue calls.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tidebot/internal/gateway/exchange"
	"tidebot/internal/logger"
	"tidebot/internal/market"
	"tidebot/internal/pkg/circuit"
	"tidebot/internal/portfolio"
	"tidebot/internal/position"
	"tidebot/internal/scheduler"
	"tidebot/internal/strategy"
)

type Config struct {
	TickInterval   time.Duration
	HistoryWindow  int
	RunImmediately bool

	BreakerThreshold int
	BreakerCooldown  time.Duration

	// OrderTimeout bounds a single venue submission. Submissions are detached
	// from the run context so shutdown lets in-flight orders resolve instead
	// of abandoning them mid-flight.
	OrderTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Minute
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 24
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 2 * time.Minute
	}
	if c.OrderTimeout <= 0 {
		c.OrderTimeout = 30 * time.Second
	}
	return c
}

// TradeRecorder persists completed round trips. Nil disables persistence.
type TradeRecorder interface {
	RecordTrade(trade position.Trade) error
}

type Engine struct {
	cfg      Config
	feed     market.Feed
	gateway  exchange.Gateway
	alloc    *portfolio.Allocator
	strat    strategy.Strategy
	bus      *Bus
	recorder TradeRecorder

	// Symbols may be registered after construction (bot definition reloads),
	// so breakers are created on demand under the lock.
	breakerMu sync.Mutex
	breakers  map[string]*circuit.Breaker
}

// SetTradeRecorder attaches a persistence sink for completed trades. Must be
// called before Run.
func (e *Engine) SetTradeRecorder(r TradeRecorder) { e.recorder = r }

func NewEngine(cfg Config, feed market.Feed, gw exchange.Gateway, alloc *portfolio.Allocator, strat strategy.Strategy, bus *Bus) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:      cfg,
		feed:     feed,
		gateway:  gw,
		alloc:    alloc,
		strat:    strat,
		bus:      bus,
		breakers: make(map[string]*circuit.Breaker),
	}
	return e
}

func (e *Engine) breaker(symbol string) *circuit.Breaker {
	e.breakerMu.Lock()
	defer e.breakerMu.Unlock()
	cb, ok := e.breakers[symbol]
	if !ok {
		cb = circuit.NewBreaker("Engine."+symbol, e.cfg.BreakerThreshold, e.cfg.BreakerCooldown)
		e.breakers[symbol] = cb
	}
	return cb
}

// Run blocks until ctx is cancelled, driving one tick loop per symbol.
func (e *Engine) Run(ctx context.Context) error {
	symbols := e.alloc.Symbols()
	if len(symbols) == 0 {
		return errors.New("engine: no symbols registered")
	}
	logger.Infof("Engine: starting %d symbol loops strategy=%s interval=%s",
		len(symbols), e.strat.Name(), e.cfg.TickInterval)

	group, gctx := errgroup.WithContext(ctx)
	for _, sym := range symbols {
		sym := sym
		group.Go(func() error {
			cb := e.breaker(sym)
			sched := scheduler.NewTickScheduler(gctx, e.cfg.TickInterval)
			sched.RunImmediately = e.cfg.RunImmediately
			sched.Start(func() {
				if !cb.Allow() {
					logger.Warnf("Engine: breaker open, skipping tick symbol=%s", sym)
					return
				}
				if err := e.Tick(gctx, sym); err != nil {
					logger.Errorf("Engine: tick error symbol=%s err=%v", sym, err)
					cb.RecordFailure()
					return
				}
				cb.RecordSuccess()
			})
			return gctx.Err()
		})
	}
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Tick runs one evaluate-and-act cycle for symbol. A returned error means the
// tick could not complete (feed or venue trouble) and counts against the
// symbol's breaker; strategy holds and portfolio rejections are not errors.
func (e *Engine) Tick(ctx context.Context, symbol string) error {
	if state, ok := e.alloc.State(symbol); ok && state.Pending() {
		logger.Warnf("Engine: order still in flight, skipping tick symbol=%s state=%s", symbol, state)
		return nil
	}

	sample, err := e.feed.CurrentPrice(ctx, symbol)
	if err != nil {
		return fmt.Errorf("current price %s: %w", symbol, err)
	}
	history, err := e.feed.History(ctx, symbol, e.cfg.HistoryWindow)
	if err != nil {
		return fmt.Errorf("history %s: %w", symbol, err)
	}

	pos := e.alloc.OpenPosition(symbol)
	dec := e.strat.Evaluate(symbol, history, sample.Price, pos)

	evt := newEvent(EventSignal, symbol)
	evt.Action = string(dec.Action)
	evt.Reason = dec.Reason
	evt.Price = sample.Price
	e.bus.Publish(evt)

	switch dec.Action {
	case strategy.ActionBuy:
		return e.executeBuy(ctx, symbol, sample.Price, dec.Reason)
	case strategy.ActionSell:
		return e.executeSell(ctx, symbol, dec.Reason)
	default:
		return nil
	}
}

func (e *Engine) executeBuy(ctx context.Context, symbol string, price float64, reason string) error {
	qty, err := e.alloc.AdmitBuy(ctx, symbol, price)
	if err != nil {
		var sizing *portfolio.SizingError
		if errors.As(err, &sizing) {
			logger.Warnf("Engine: buy signal unsizeable, holding: %v", sizing)
			return nil
		}
		if errors.Is(err, portfolio.ErrMaxHoldings) || errors.Is(err, portfolio.ErrCapitalCeiling) || errors.Is(err, portfolio.ErrNotFlat) {
			logger.Infof("Engine: buy not admitted symbol=%s: %v", symbol, err)
			return nil
		}
		return fmt.Errorf("admit buy %s: %w", symbol, err)
	}

	res, err := e.submit(ctx, exchange.OrderRequest{
		Symbol:   symbol,
		Side:     exchange.SideBuy,
		Quantity: qty,
		ClientID: uuid.NewString(),
	}, reason)
	if err != nil {
		if ferr := e.alloc.FailBuy(symbol); ferr != nil {
			logger.Errorf("Engine: fail-buy bookkeeping error symbol=%s err=%v", symbol, ferr)
		}
		return fmt.Errorf("buy %s: %w", symbol, err)
	}
	if err := e.alloc.ConfirmBuy(symbol, res); err != nil {
		// A fill the books reject must still resolve the pending state, or
		// the symbol is stranded and its reservation leaks.
		if ferr := e.alloc.FailBuy(symbol); ferr != nil {
			logger.Errorf("Engine: fail-buy bookkeeping error symbol=%s err=%v", symbol, ferr)
		}
		e.publishFailure(symbol, exchange.SideBuy, res.OrderID, err)
		return fmt.Errorf("confirm buy %s: %w", symbol, err)
	}
	logger.Infof("Engine: bought symbol=%s qty=%.8g price=%.8g order=%s",
		symbol, res.FilledQuantity, res.FilledPrice, res.OrderID)
	return nil
}

func (e *Engine) executeSell(ctx context.Context, symbol string, reason string) error {
	qty, err := e.alloc.AdmitSell(symbol)
	if err != nil {
		return fmt.Errorf("admit sell %s: %w", symbol, err)
	}

	res, err := e.submit(ctx, exchange.OrderRequest{
		Symbol:   symbol,
		Side:     exchange.SideSell,
		Quantity: qty,
		ClientID: uuid.NewString(),
	}, reason)
	if err != nil {
		// The position survives a failed exit; the next tick retries.
		if ferr := e.alloc.FailSell(symbol); ferr != nil {
			logger.Errorf("Engine: fail-sell bookkeeping error symbol=%s err=%v", symbol, ferr)
		}
		return fmt.Errorf("sell %s: %w", symbol, err)
	}
	trade, err := e.alloc.ConfirmSell(symbol, res, reason)
	if err != nil {
		// The position survives a rejected fill and the next tick retries.
		if ferr := e.alloc.FailSell(symbol); ferr != nil {
			logger.Errorf("Engine: fail-sell bookkeeping error symbol=%s err=%v", symbol, ferr)
		}
		e.publishFailure(symbol, exchange.SideSell, res.OrderID, err)
		return fmt.Errorf("confirm sell %s: %w", symbol, err)
	}
	logger.Infof("Engine: sold symbol=%s qty=%.8g price=%.8g pnl=%.4f reason=%q",
		symbol, res.FilledQuantity, res.FilledPrice, trade.RealizedPnL, reason)
	if e.recorder != nil {
		// Persistence failures must not fail the tick; the trade is closed.
		if err := e.recorder.RecordTrade(trade); err != nil {
			logger.Warnf("Engine: trade journal write failed symbol=%s err=%v", symbol, err)
		}
	}
	return nil
}

// submit sends one order to the venue and publishes the lifecycle events. It
// detaches from the caller's cancellation so shutdown cannot orphan an order
// whose fate is unknown.
func (e *Engine) submit(ctx context.Context, req exchange.OrderRequest, reason string) (exchange.OrderResult, error) {
	evt := newEvent(EventOrderSubmitted, req.Symbol)
	evt.Action = string(req.Side)
	evt.Reason = reason
	evt.Quantity = req.Quantity
	e.bus.Publish(evt)

	oCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.OrderTimeout)
	defer cancel()
	res, err := e.gateway.Submit(oCtx, req)
	if err != nil {
		e.publishFailure(req.Symbol, req.Side, "", err)
		return exchange.OrderResult{}, err
	}

	if res.FilledPrice <= 0 || res.FilledQuantity <= 0 {
		err := fmt.Errorf("fill has invalid price/quantity (%g/%g)", res.FilledPrice, res.FilledQuantity)
		e.publishFailure(req.Symbol, req.Side, res.OrderID, err)
		return exchange.OrderResult{}, err
	}

	filled := newEvent(EventOrderFilled, req.Symbol)
	filled.Action = string(res.Side)
	filled.Price = res.FilledPrice
	filled.Quantity = res.FilledQuantity
	filled.OrderID = res.OrderID
	e.bus.Publish(filled)
	return res, nil
}

func (e *Engine) publishFailure(symbol string, side exchange.Side, orderID string, err error) {
	fail := newEvent(EventOrderFailed, symbol)
	fail.Action = string(side)
	fail.OrderID = orderID
	fail.Err = err.Error()
	e.bus.Publish(fail)
}

// InstantBuy bypasses the strategy and opens a position at the current price.
// Portfolio admission still applies: holdings, ceilings and sizing are not
// waived for manual entries.
func (e *Engine) InstantBuy(ctx context.Context, symbol string) error {
	if state, ok := e.alloc.State(symbol); !ok {
		return fmt.Errorf("instant buy %s: %w", symbol, portfolio.ErrNotRegistered)
	} else if state != position.StateFlat {
		return fmt.Errorf("instant buy %s: %w", symbol, portfolio.ErrNotFlat)
	}
	sample, err := e.feed.CurrentPrice(ctx, symbol)
	if err != nil {
		return fmt.Errorf("instant buy %s: %w", symbol, err)
	}
	return e.executeBuy(ctx, symbol, sample.Price, "manual instant buy")
}

// Status is the engine view exposed over HTTP.
type Status struct {
	Strategy  string             `json:"strategy"`
	Portfolio portfolio.Snapshot `json:"portfolio"`
	Breakers  map[string]string  `json:"breakers"`
}

func (e *Engine) Status() Status {
	st := Status{
		Strategy:  e.strat.Name(),
		Portfolio: e.alloc.Snapshot(),
	}
	e.breakerMu.Lock()
	st.Breakers = make(map[string]string, len(e.breakers))
	for sym, cb := range e.breakers {
		st.Breakers[sym] = cb.State().String()
	}
	e.breakerMu.Unlock()
	return st
}
