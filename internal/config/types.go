package config

import "time"

// Config is the top-level configuration for tidebot.
type Config struct {
	App       AppConfig       `toml:"app"`
	Market    MarketConfig    `toml:"market"`
	Trading   TradingConfig   `toml:"trading"`
	Portfolio PortfolioConfig `toml:"portfolio"`
	Bots      BotsConfig      `toml:"bots"`
	Storage   StorageConfig   `toml:"storage"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

// MarketConfig selects the price/order backend and its connection details.
type MarketConfig struct {
	// Source is "binance" for live trading or "sim" for replayed candles.
	Source             string `toml:"source"`
	RESTBaseURL        string `toml:"rest_base_url"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
	APIKeyEnv          string `toml:"api_key_env"`
	APISecretEnv       string `toml:"api_secret_env"`
	KlineInterval      string `toml:"kline_interval"`
	// RecordingsDir holds per-symbol candle recordings for the sim source.
	RecordingsDir string  `toml:"recordings_dir"`
	SimSlippagePct float64 `toml:"sim_slippage_pct"`
}

// TradingConfig carries the strategy parameters shared by all symbols.
type TradingConfig struct {
	Strategy            string  `toml:"strategy"` // "mean_reversion" | "crossover"
	ShortWindow         int     `toml:"short_window"`
	LongWindow          int     `toml:"long_window"`
	ProfitTargetRatio   float64 `toml:"profit_target_ratio"`
	StopLossRatio       float64 `toml:"stop_loss_ratio"`
	TickIntervalSeconds int     `toml:"tick_interval_seconds"`
}

func (t TradingConfig) TickInterval() time.Duration {
	return time.Duration(t.TickIntervalSeconds) * time.Second
}

// PortfolioConfig bounds how much capital the allocator may commit.
type PortfolioConfig struct {
	MaxHoldings int `toml:"max_holdings"`
	// SymbolCategories maps a symbol to its risk category ("major", "altcoin", ...).
	SymbolCategories map[string]string `toml:"symbol_categories"`
	// Investments is the fixed per-trade stake for each category.
	Investments map[string]float64 `toml:"investments"`
	// CapitalCeilings caps the total committed stake per category.
	CapitalCeilings map[string]float64 `toml:"capital_ceilings"`
}

// BotsConfig points at the bot-definition JSON directory.
type BotsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}
