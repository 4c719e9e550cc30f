package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	tbcfg "tidebot/internal/config"
)

func TestBinanceConfigMapping(t *testing.T) {
	t.Setenv("TEST_BINANCE_KEY", "key-from-env")
	t.Setenv("TEST_BINANCE_SECRET", "secret-from-env")

	bcfg := binanceConfig(tbcfg.MarketConfig{
		RESTBaseURL:        "https://testnet.binance.vision",
		HTTPTimeoutSeconds: 30,
		APIKeyEnv:          "TEST_BINANCE_KEY",
		APISecretEnv:       "TEST_BINANCE_SECRET",
		KlineInterval:      "15m",
	})

	assert.Equal(t, "key-from-env", bcfg.APIKey)
	assert.Equal(t, "secret-from-env", bcfg.APISecret)
	assert.Equal(t, "https://testnet.binance.vision", bcfg.RESTBaseURL)
	assert.Equal(t, 30*time.Second, bcfg.HTTPTimeout)
	assert.Equal(t, "15m", bcfg.KlineInterval)
	assert.Equal(t, 15*time.Minute, bcfg.Interval)
}
