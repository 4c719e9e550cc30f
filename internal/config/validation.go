package config

import (
	"fmt"
	"strings"
	"time"
)

// Spot kline periods the venue accepts, mapped to their wall-clock length.
var klineDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"3d":  3 * 24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// Bounds carried over from the shipped bot validator. A config outside these
// ranges is an unsafe strategy and must stop the engine from starting.
const (
	minProfitTarget = 1.001
	maxProfitTarget = 1.5
	minStopLoss     = 0.5
	maxStopLoss     = 0.999
	minInvestment   = 10.0
	maxInvestment   = 1000.0
	maxHoldingsCap  = 50
)

func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Portfolio.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MarketConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(m.Source)) {
	case "binance", "sim":
	default:
		return fmt.Errorf("market.source must be \"binance\" or \"sim\", got %q", m.Source)
	}
	if strings.EqualFold(m.Source, "sim") && strings.TrimSpace(m.RecordingsDir) == "" {
		return fmt.Errorf("market.recordings_dir is required when market.source is sim")
	}
	if m.SimSlippagePct < 0 {
		return fmt.Errorf("market.sim_slippage_pct must be >= 0")
	}
	if _, ok := klineDurations[strings.ToLower(strings.TrimSpace(m.KlineInterval))]; !ok {
		return fmt.Errorf("market.kline_interval %q is not a supported candle period", m.KlineInterval)
	}
	return nil
}

// IntervalDuration is the wall-clock length of one configured candle period.
// Zero for an interval that did not pass validation.
func (m *MarketConfig) IntervalDuration() time.Duration {
	return klineDurations[strings.ToLower(strings.TrimSpace(m.KlineInterval))]
}

func (t *TradingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(t.Strategy)) {
	case "mean_reversion", "crossover":
	default:
		return fmt.Errorf("trading.strategy must be \"mean_reversion\" or \"crossover\", got %q", t.Strategy)
	}
	if t.ProfitTargetRatio < minProfitTarget || t.ProfitTargetRatio > maxProfitTarget {
		return fmt.Errorf("trading.profit_target_ratio must be in [%v,%v], got %v", minProfitTarget, maxProfitTarget, t.ProfitTargetRatio)
	}
	if t.StopLossRatio < minStopLoss || t.StopLossRatio > maxStopLoss {
		return fmt.Errorf("trading.stop_loss_ratio must be in [%v,%v], got %v", minStopLoss, maxStopLoss, t.StopLossRatio)
	}
	if t.ShortWindow >= t.LongWindow {
		return fmt.Errorf("trading.short_window (%d) must be smaller than trading.long_window (%d)", t.ShortWindow, t.LongWindow)
	}
	if t.TickIntervalSeconds <= 0 {
		return fmt.Errorf("trading.tick_interval_seconds must be > 0")
	}
	return nil
}

func (p *PortfolioConfig) validate() error {
	if p.MaxHoldings < 0 || p.MaxHoldings > maxHoldingsCap {
		return fmt.Errorf("portfolio.max_holdings must be in [0,%d], got %d", maxHoldingsCap, p.MaxHoldings)
	}
	if len(p.Investments) == 0 {
		return fmt.Errorf("portfolio.investments requires at least one category")
	}
	for cat, amount := range p.Investments {
		if amount < minInvestment || amount > maxInvestment {
			return fmt.Errorf("portfolio.investments.%s must be in [%v,%v], got %v", cat, minInvestment, maxInvestment, amount)
		}
	}
	for cat, ceiling := range p.CapitalCeilings {
		if ceiling < 0 {
			return fmt.Errorf("portfolio.capital_ceilings.%s must be >= 0", cat)
		}
	}
	for sym, cat := range p.SymbolCategories {
		if _, ok := p.Investments[cat]; !ok {
			return fmt.Errorf("portfolio.symbol_categories.%s references unknown category %q", sym, cat)
		}
	}
	return nil
}
