// Package symbol normalizes trading pair spellings. Config files and bot
// definitions written by hand arrive as "btc/usdt", "BTC-USDT" or "btcusdt";
// the venue wants the compact upper-case form.
package symbol

import "strings"

var separators = strings.NewReplacer("/", "", "-", "", "_", "", " ", "")

// Normalize returns the venue form of a pair: upper case, no separators.
// "btc/usdt" -> "BTCUSDT".
func Normalize(raw string) string {
	return strings.ToUpper(separators.Replace(strings.TrimSpace(raw)))
}

// Split breaks a compact pair into base and quote using the common quote
// suffixes. Returns ok=false when no known quote matches.
func Split(pair string) (base, quote string, ok bool) {
	pair = Normalize(pair)
	for _, q := range []string{"USDT", "FDUSD", "USDC", "BUSD", "BTC", "ETH", "BNB"} {
		if strings.HasSuffix(pair, q) && len(pair) > len(q) {
			return pair[:len(pair)-len(q)], q, true
		}
	}
	return "", "", false
}
