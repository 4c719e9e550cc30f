package binance

import (
	"strings"
	"time"
)

type Config struct {
	APIKey      string
	APISecret   string
	RESTBaseURL string
	HTTPTimeout time.Duration
	// KlineInterval is the candle period used for history fetches, e.g. "1h".
	KlineInterval string
	// Interval is KlineInterval's wall-clock length. When set, the feed
	// serves history from its cache until the next candle boundary instead
	// of refetching an unchanged window every tick.
	Interval time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://api.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.KlineInterval = strings.ToLower(strings.TrimSpace(out.KlineInterval))
	if out.KlineInterval == "" {
		out.KlineInterval = "1h"
	}
	return out
}
