package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDef(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadDirReadsValidDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "btc.json", `{"name":"btc-bot","symbol":"btc/usdt","category":"major","investment_amount":150}`)
	writeDef(t, dir, "doge.json", `{"name":"doge-bot","symbol":"DOGEUSDT","category":"meme","profit_target":1.05,"stop_loss":0.9}`)

	defs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	// Sorted by symbol, normalized spelling.
	assert.Equal(t, "BTCUSDT", defs[0].Symbol)
	assert.Equal(t, 150.0, defs[0].InvestmentAmount)
	assert.Equal(t, "DOGEUSDT", defs[1].Symbol)
	assert.Equal(t, 1.05, defs[1].ProfitTarget)
	assert.True(t, defs[1].IsEnabled())
}

func TestLoadDirSkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "good.json", `{"name":"eth-bot","symbol":"ETHUSDT","category":"major"}`)
	writeDef(t, dir, "no-symbol.json", `{"name":"broken","category":"major"}`)
	writeDef(t, dir, "bad-stake.json", `{"name":"greedy","symbol":"SOLUSDT","category":"altcoin","investment_amount":5000}`)
	writeDef(t, dir, "garbage.json", `{not json`)
	writeDef(t, dir, "notes.txt", `ignore me`)

	defs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "ETHUSDT", defs[0].Symbol)
}

func TestLoadDirSchemaBoundsTargets(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "low-stop.json", `{"name":"x","symbol":"AUSDT","category":"altcoin","stop_loss":0.2}`)
	writeDef(t, dir, "high-target.json", `{"name":"y","symbol":"BUSDT","category":"altcoin","profit_target":2.5}`)

	defs, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestLoadDirDeduplicatesSymbols(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "a.json", `{"name":"first","symbol":"BTCUSDT","category":"major"}`)
	writeDef(t, dir, "b.json", `{"name":"second","symbol":"btcusdt","category":"meme"}`)

	defs, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestDisabledDefinition(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "off.json", `{"name":"paused","symbol":"XRPUSDT","category":"altcoin","enabled":false}`)

	defs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.False(t, defs[0].IsEnabled())
}

func TestLoadDirMissingDirectory(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
