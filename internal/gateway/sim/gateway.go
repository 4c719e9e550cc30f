package sim

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"tidebot/internal/gateway/exchange"
)

// Gateway fills every market order instantly at the feed's last sampled price
// plus a fixed slippage, worse for the taker on both sides.
type Gateway struct {
	feed        *Feed
	slippagePct float64
	filters     map[string]exchange.SymbolFilters
	orderSeq    atomic.Int64
}

func NewGateway(feed *Feed, slippagePct float64, filters map[string]exchange.SymbolFilters) *Gateway {
	if filters == nil {
		filters = make(map[string]exchange.SymbolFilters)
	}
	return &Gateway{feed: feed, slippagePct: slippagePct, filters: filters}
}

func (g *Gateway) Name() string { return "paper" }

func (g *Gateway) Submit(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return exchange.OrderResult{}, err
	}
	if req.Quantity <= 0 {
		return exchange.OrderResult{}, fmt.Errorf("paper order %s: non-positive quantity %v", req.Symbol, req.Quantity)
	}
	price, ok := g.feed.LastPrice(req.Symbol)
	if !ok || price <= 0 {
		return exchange.OrderResult{}, fmt.Errorf("paper order %s: no reference price", req.Symbol)
	}
	switch req.Side {
	case exchange.SideBuy:
		price *= 1 + g.slippagePct/100
	case exchange.SideSell:
		price *= 1 - g.slippagePct/100
	default:
		return exchange.OrderResult{}, fmt.Errorf("paper order %s: unknown side %q", req.Symbol, req.Side)
	}
	return exchange.OrderResult{
		Symbol:         req.Symbol,
		Side:           req.Side,
		OrderID:        fmt.Sprintf("paper-%d", g.orderSeq.Add(1)),
		FilledPrice:    price,
		FilledQuantity: req.Quantity,
		FilledAt:       time.Now().UTC(),
	}, nil
}

// Filters returns the configured rules for symbol, or permissive defaults so
// recordings without filter fixtures still size orders.
func (g *Gateway) Filters(ctx context.Context, symbol string) (exchange.SymbolFilters, error) {
	if err := ctx.Err(); err != nil {
		return exchange.SymbolFilters{}, err
	}
	if f, ok := g.filters[strings.ToUpper(symbol)]; ok {
		return f, nil
	}
	return exchange.SymbolFilters{Symbol: symbol, LotStep: 0.00000001}, nil
}

// ValidSymbols accepts exactly the symbols the feed has recordings for.
func (g *Gateway) ValidSymbols(ctx context.Context, symbols []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recorded := make(map[string]bool)
	for _, sym := range g.feed.Symbols() {
		recorded[sym] = true
	}
	var out []string
	for _, sym := range symbols {
		if recorded[strings.ToUpper(sym)] {
			out = append(out, strings.ToUpper(sym))
		}
	}
	return out, nil
}
