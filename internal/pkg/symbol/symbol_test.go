package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"btc/usdt":  "BTCUSDT",
		"BTC-USDT":  "BTCUSDT",
		"eth_usdt":  "ETHUSDT",
		" solusdt ": "SOLUSDT",
		"BTCUSDT":   "BTCUSDT",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestSplit(t *testing.T) {
	base, quote, ok := Split("btc/usdt")
	assert.True(t, ok)
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "USDT", quote)

	_, _, ok = Split("USDT")
	assert.False(t, ok)

	_, _, ok = Split("ABCXYZ")
	assert.False(t, ok)
}
