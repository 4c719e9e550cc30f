package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"tidebot/internal/gateway/exchange"
	"tidebot/internal/logger"

	"github.com/adshao/go-binance/v2"
)

// Gateway places spot market orders and serves exchange filters. Filters are
// fetched once and cached; lot steps change rarely enough that a restart is an
// acceptable refresh.
type Gateway struct {
	client *binance.Client

	mu      sync.RWMutex
	filters map[string]exchange.SymbolFilters
}

var (
	_ exchange.Gateway         = (*Gateway)(nil)
	_ exchange.FilterProvider  = (*Gateway)(nil)
	_ exchange.SymbolValidator = (*Gateway)(nil)
)

func NewGateway(cfg Config) *Gateway {
	final := cfg.withDefaults()
	client := binance.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Gateway{
		client:  client,
		filters: make(map[string]exchange.SymbolFilters),
	}
}

func (g *Gateway) Name() string { return "binance" }

func (g *Gateway) Submit(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return exchange.OrderResult{}, fmt.Errorf("symbol is required")
	}
	if req.Quantity <= 0 {
		return exchange.OrderResult{}, fmt.Errorf("quantity must be > 0, got %v", req.Quantity)
	}
	side := binance.SideTypeBuy
	if req.Side == exchange.SideSell {
		side = binance.SideTypeSell
	}
	svc := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(formatQuantity(req.Quantity))
	if req.ClientID != "" {
		svc = svc.NewClientOrderID(req.ClientID)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	return orderResult(symbol, req.Side, res)
}

// orderResult converts a venue response into a booked fill. A response with
// no executed quantity or no derivable price is an error, never a zero-price
// success: the caller relies on Submit failing so the reservation is released.
func orderResult(symbol string, side exchange.Side, res *binance.CreateOrderResponse) (exchange.OrderResult, error) {
	filledQty := parseFloat(res.ExecutedQuantity)
	if filledQty <= 0 {
		return exchange.OrderResult{}, fmt.Errorf("order %d for %s reported no executed quantity", res.OrderID, symbol)
	}
	// Average fill price from the quote volume; individual fills only as a
	// fallback when the venue omits it.
	fillPrice := parseFloat(res.CummulativeQuoteQuantity) / filledQty
	if fillPrice <= 0 && len(res.Fills) > 0 && res.Fills[0] != nil {
		fillPrice = parseFloat(res.Fills[0].Price)
	}
	if fillPrice <= 0 {
		return exchange.OrderResult{}, fmt.Errorf("order %d for %s reported no fill price", res.OrderID, symbol)
	}
	return exchange.OrderResult{
		Symbol:         symbol,
		Side:           side,
		OrderID:        strconv.FormatInt(res.OrderID, 10),
		FilledPrice:    fillPrice,
		FilledQuantity: filledQty,
		FilledAt:       time.UnixMilli(res.TransactTime),
	}, nil
}

func (g *Gateway) Filters(ctx context.Context, symbol string) (exchange.SymbolFilters, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	g.mu.RLock()
	f, ok := g.filters[symbol]
	g.mu.RUnlock()
	if ok {
		return f, nil
	}
	if err := g.refreshFilters(ctx, symbol); err != nil {
		return exchange.SymbolFilters{}, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	f, ok = g.filters[symbol]
	if !ok {
		return exchange.SymbolFilters{}, fmt.Errorf("symbol %s not found on exchange", symbol)
	}
	return f, nil
}

func (g *Gateway) ValidSymbols(ctx context.Context, symbols []string) ([]string, error) {
	info, err := g.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}
	trading := make(map[string]bool, len(info.Symbols))
	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.Status == "TRADING" {
			trading[s.Symbol] = true
			g.cacheFilters(s)
		}
	}
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if trading[sym] {
			out = append(out, sym)
		} else {
			logger.Warnf("Dropping symbol %s: not available for trading", sym)
		}
	}
	return out, nil
}

func (g *Gateway) refreshFilters(ctx context.Context, symbol string) error {
	info, err := g.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return err
	}
	for i := range info.Symbols {
		g.cacheFilters(&info.Symbols[i])
	}
	return nil
}

func (g *Gateway) cacheFilters(s *binance.Symbol) {
	f := exchange.SymbolFilters{Symbol: s.Symbol}
	if lot := s.LotSizeFilter(); lot != nil {
		f.LotStep = parseFloat(lot.StepSize)
		f.MinQuantity = parseFloat(lot.MinQuantity)
	}
	if notional := s.NotionalFilter(); notional != nil {
		f.MinNotional = parseFloat(notional.MinNotional)
	}
	if f.LotStep <= 0 {
		f.LotStep = 0.00000001
	}
	g.mu.Lock()
	g.filters[s.Symbol] = f
	g.mu.Unlock()
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
