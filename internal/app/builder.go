package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	tbcfg "tidebot/internal/config"
	cfgloader "tidebot/internal/config/loader"
	"tidebot/internal/engine"
	"tidebot/internal/gateway/binance"
	"tidebot/internal/gateway/exchange"
	"tidebot/internal/gateway/sim"
	"tidebot/internal/logger"
	"tidebot/internal/market"
	"tidebot/internal/pkg/symbol"
	"tidebot/internal/portfolio"
	"tidebot/internal/storage"
	"tidebot/internal/strategy"
	tradehttp "tidebot/internal/transport/http"
)

// venue is what a market backend must provide: order submission, sizing
// filters and symbol validation.
type venue interface {
	exchange.Gateway
	exchange.FilterProvider
	exchange.SymbolValidator
}

type AppBuilder struct {
	cfg *tbcfg.Config

	marketStackFn func(*tbcfg.Config) (market.Feed, venue, error)
	journalFn     func(string) (*storage.Journal, error)
}

type AppBuilderOption func(*AppBuilder)

// WithMarketStack overrides the feed and venue construction, used by tests to
// inject fakes without touching the network.
func WithMarketStack(fn func(*tbcfg.Config) (market.Feed, venue, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.marketStackFn = fn }
}

func NewAppBuilder(cfg *tbcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		marketStackFn: buildMarketStack,
		journalFn:     storage.NewJournal,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	bots, watcher, err := loadBots(cfg.Bots)
	if err != nil {
		return nil, err
	}

	feed, ven, err := b.marketStackFn(cfg)
	if err != nil {
		return nil, err
	}

	symbols := collectSymbols(cfg.Portfolio, bots)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured: set portfolio.symbol_categories or add bot definitions")
	}
	valid, err := ven.ValidSymbols(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("validate symbols: %w", err)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("none of the configured symbols are tradeable: %s", strings.Join(symbols, ", "))
	}
	if dropped := len(symbols) - len(valid); dropped > 0 {
		logger.Warnf("AppBuilder: %d configured symbol(s) not tradeable, continuing with %d", dropped, len(valid))
	}

	alloc := portfolio.NewAllocator(allocatorConfig(cfg, bots), ven)
	for _, sym := range valid {
		alloc.Register(sym)
	}

	strat, err := buildStrategy(cfg.Trading)
	if err != nil {
		return nil, err
	}

	bus := engine.NewBus()
	eng := engine.NewEngine(engine.Config{
		TickInterval:  cfg.Trading.TickInterval(),
		HistoryWindow: cfg.Trading.LongWindow + 2,
	}, feed, ven, alloc, strat, bus)

	var journal *storage.Journal
	if cfg.Storage.Path != "" {
		journal, err = b.journalFn(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		eng.SetTradeRecorder(journal)
	}

	httpSrv, err := tradehttp.NewServer(tradehttp.Config{
		Addr:    cfg.App.HTTPAddr,
		Engine:  eng,
		Journal: journal,
	})
	if err != nil {
		return nil, err
	}

	if watcher != nil {
		watcher.Subscribe(func(defs []cfgloader.BotDefinition) {
			for _, def := range defs {
				if def.IsEnabled() {
					alloc.Register(symbol.Normalize(def.Symbol))
				}
			}
			logger.Infof("AppBuilder: bot definitions reloaded, %d entries", len(defs))
		})
	}

	return &App{
		cfg:     cfg,
		engine:  eng,
		http:    httpSrv,
		journal: journal,
		bus:     bus,
		feed:    feed,
		watcher: watcher,
	}, nil
}

func loadBots(cfg tbcfg.BotsConfig) ([]cfgloader.BotDefinition, *cfgloader.Watcher, error) {
	if cfg.Dir == "" {
		return nil, nil, nil
	}
	if _, err := os.Stat(cfg.Dir); err != nil {
		return nil, nil, fmt.Errorf("bot definitions dir: %w", err)
	}
	if cfg.Watch {
		watcher, err := cfgloader.NewWatcher(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return watcher.Definitions(), watcher, nil
	}
	defs, err := cfgloader.LoadDir(cfg.Dir)
	if err != nil {
		return nil, nil, err
	}
	return defs, nil, nil
}

func collectSymbols(cfg tbcfg.PortfolioConfig, bots []cfgloader.BotDefinition) []string {
	seen := make(map[string]bool)
	for sym := range cfg.SymbolCategories {
		seen[symbol.Normalize(sym)] = true
	}
	for _, def := range bots {
		if def.IsEnabled() {
			seen[symbol.Normalize(def.Symbol)] = true
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// allocatorConfig merges the portfolio section with per-bot overrides. A bot
// definition may pin its own stake and exit targets; everything else falls
// back to the category defaults.
func allocatorConfig(cfg *tbcfg.Config, bots []cfgloader.BotDefinition) portfolio.Config {
	out := portfolio.Config{
		MaxHoldings:      cfg.Portfolio.MaxHoldings,
		SymbolCategories: make(map[string]string, len(cfg.Portfolio.SymbolCategories)),
		Investments:      cfg.Portfolio.Investments,
		CapitalCeilings:  cfg.Portfolio.CapitalCeilings,
		Targets: strategy.Targets{
			ProfitTargetRatio: cfg.Trading.ProfitTargetRatio,
			StopLossRatio:     cfg.Trading.StopLossRatio,
		},
		InvestmentOverrides: make(map[string]float64),
		TargetOverrides:     make(map[string]strategy.Targets),
	}
	for sym, cat := range cfg.Portfolio.SymbolCategories {
		out.SymbolCategories[symbol.Normalize(sym)] = cat
	}
	for _, def := range bots {
		if !def.IsEnabled() {
			continue
		}
		sym := symbol.Normalize(def.Symbol)
		if def.Category != "" {
			out.SymbolCategories[sym] = def.Category
		}
		if def.InvestmentAmount > 0 {
			out.InvestmentOverrides[sym] = def.InvestmentAmount
		}
		if def.ProfitTarget > 0 || def.StopLoss > 0 {
			t := out.Targets
			if def.ProfitTarget > 0 {
				t.ProfitTargetRatio = def.ProfitTarget
			}
			if def.StopLoss > 0 {
				t.StopLossRatio = def.StopLoss
			}
			out.TargetOverrides[sym] = t
		}
	}
	return out
}

func buildStrategy(cfg tbcfg.TradingConfig) (strategy.Strategy, error) {
	targets := strategy.Targets{
		ProfitTargetRatio: cfg.ProfitTargetRatio,
		StopLossRatio:     cfg.StopLossRatio,
	}
	switch cfg.Strategy {
	case "", "mean_reversion":
		return strategy.NewMeanReversion(cfg.LongWindow, targets), nil
	case "crossover":
		return strategy.NewCrossover(cfg.ShortWindow, cfg.LongWindow, targets), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}
}

func binanceConfig(m tbcfg.MarketConfig) binance.Config {
	return binance.Config{
		APIKey:        os.Getenv(m.APIKeyEnv),
		APISecret:     os.Getenv(m.APISecretEnv),
		RESTBaseURL:   m.RESTBaseURL,
		HTTPTimeout:   time.Duration(m.HTTPTimeoutSeconds) * time.Second,
		KlineInterval: m.KlineInterval,
		Interval:      m.IntervalDuration(),
	}
}

func buildMarketStack(cfg *tbcfg.Config) (market.Feed, venue, error) {
	switch cfg.Market.Source {
	case "", "binance":
		bcfg := binanceConfig(cfg.Market)
		return binance.NewFeed(bcfg), binance.NewGateway(bcfg), nil
	case "sim":
		feed, err := sim.LoadDir(cfg.Market.RecordingsDir)
		if err != nil {
			return nil, nil, err
		}
		return feed, sim.NewGateway(feed, cfg.Market.SimSlippagePct, nil), nil
	default:
		return nil, nil, fmt.Errorf("unknown market source %q", cfg.Market.Source)
	}
}
