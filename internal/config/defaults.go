package config

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9981"
	defaultMarketSource    = "binance"
	defaultMarketREST      = "https://api.binance.com"
	defaultMarketTimeout   = 15
	defaultAPIKeyEnv       = "BINANCE_API_KEY"
	defaultAPISecretEnv    = "BINANCE_API_SECRET"
	defaultKlineInterval   = "1h"
	defaultStrategy        = "mean_reversion"
	defaultShortWindow     = 6
	defaultLongWindow      = 24
	defaultProfitTarget    = 1.02
	defaultStopLoss        = 0.98
	defaultTickSeconds     = 60
	defaultMaxHoldings     = 5
	defaultStoragePath     = "data/tidebot.db"
)

// Category stakes follow the static investment table the bot shipped with:
// blue-chip pairs get the largest per-trade stake, meme coins the smallest.
func defaultInvestments() map[string]float64 {
	return map[string]float64{
		"major":   100,
		"altcoin": 50,
		"defi":    30,
		"meme":    20,
	}
}

// isSetFunc reports whether a key was present in the loaded file. Explicitly
// configured zeros (e.g. portfolio.max_holdings: 0) must survive defaulting,
// because the allocator treats them as "admit no buys".
type isSetFunc func(key string) bool

func (c *Config) applyDefaults(isSet isSetFunc) {
	if isSet == nil {
		isSet = func(string) bool { return false }
	}
	c.App.applyDefaults()
	c.Market.applyDefaults()
	c.Trading.applyDefaults()
	c.Portfolio.applyDefaults(isSet)
	c.Storage.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	if a.Env == "" {
		a.Env = defaultAppEnv
	}
	if a.LogLevel == "" {
		a.LogLevel = defaultAppLogLevel
	}
	if a.HTTPAddr == "" {
		a.HTTPAddr = defaultAppHTTPAddr
	}
}

func (m *MarketConfig) applyDefaults() {
	if m.Source == "" {
		m.Source = defaultMarketSource
	}
	if m.RESTBaseURL == "" {
		m.RESTBaseURL = defaultMarketREST
	}
	if m.HTTPTimeoutSeconds <= 0 {
		m.HTTPTimeoutSeconds = defaultMarketTimeout
	}
	if m.APIKeyEnv == "" {
		m.APIKeyEnv = defaultAPIKeyEnv
	}
	if m.APISecretEnv == "" {
		m.APISecretEnv = defaultAPISecretEnv
	}
	if m.KlineInterval == "" {
		m.KlineInterval = defaultKlineInterval
	}
}

func (t *TradingConfig) applyDefaults() {
	if t.Strategy == "" {
		t.Strategy = defaultStrategy
	}
	if t.ShortWindow <= 0 {
		t.ShortWindow = defaultShortWindow
	}
	if t.LongWindow <= 0 {
		t.LongWindow = defaultLongWindow
	}
	if t.ProfitTargetRatio == 0 {
		t.ProfitTargetRatio = defaultProfitTarget
	}
	if t.StopLossRatio == 0 {
		t.StopLossRatio = defaultStopLoss
	}
	if t.TickIntervalSeconds <= 0 {
		t.TickIntervalSeconds = defaultTickSeconds
	}
}

func (p *PortfolioConfig) applyDefaults(isSet isSetFunc) {
	if p.MaxHoldings == 0 && !isSet("portfolio.max_holdings") {
		p.MaxHoldings = defaultMaxHoldings
	}
	if len(p.Investments) == 0 {
		p.Investments = defaultInvestments()
	}
}

func (s *StorageConfig) applyDefaults() {
	if s.Path == "" {
		s.Path = defaultStoragePath
	}
}
