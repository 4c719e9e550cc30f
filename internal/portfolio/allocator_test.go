package portfolio

import (
	"context"
	"testing"

	"tidebot/internal/gateway/exchange"
	"tidebot/internal/position"
	"tidebot/internal/strategy"

	"github.com/stretchr/testify/assert"
)

type staticFilters map[string]exchange.SymbolFilters

func (s staticFilters) Filters(_ context.Context, symbol string) (exchange.SymbolFilters, error) {
	if f, ok := s[symbol]; ok {
		return f, nil
	}
	return exchange.SymbolFilters{Symbol: symbol, LotStep: 0.00000001}, nil
}

func testConfig() Config {
	return Config{
		MaxHoldings: 5,
		SymbolCategories: map[string]string{
			"BTCUSDT":  "major",
			"ETHUSDT":  "major",
			"DOGEUSDT": "meme",
		},
		Investments: map[string]float64{
			"major":   100,
			"altcoin": 50,
			"meme":    20,
		},
		Targets: strategy.Targets{ProfitTargetRatio: 1.02, StopLossRatio: 0.98},
	}
}

func fill(symbol string, side exchange.Side, price, qty float64) exchange.OrderResult {
	return exchange.OrderResult{
		Symbol:         symbol,
		Side:           side,
		OrderID:        "1",
		FilledPrice:    price,
		FilledQuantity: qty,
	}
}

func TestAdmitBuySizesToLotStep(t *testing.T) {
	filters := staticFilters{"BTCUSDT": {Symbol: "BTCUSDT", LotStep: 0.001}}
	a := NewAllocator(testConfig(), filters)
	a.Register("BTCUSDT")

	// 100 / 30000 = 0.003333..., floored to 0.003.
	qty, err := a.AdmitBuy(context.Background(), "BTCUSDT", 30000)
	assert.NoError(t, err)
	assert.InDelta(t, 0.003, qty, 1e-12)

	state, ok := a.State("BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, position.StatePendingBuy, state)
}

func TestMaxHoldingsAdmitsOnlyOne(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHoldings = 1
	a := NewAllocator(cfg, staticFilters{})
	a.Register("BTCUSDT")
	a.Register("ETHUSDT")

	_, err := a.AdmitBuy(context.Background(), "BTCUSDT", 100)
	assert.NoError(t, err)

	// The first buy only reserved; the slot is already taken.
	_, err = a.AdmitBuy(context.Background(), "ETHUSDT", 100)
	assert.ErrorIs(t, err, ErrMaxHoldings)
}

func TestZeroMaxHoldingsAdmitsNoBuys(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHoldings = 0
	a := NewAllocator(cfg, staticFilters{})
	a.Register("BTCUSDT")

	_, err := a.AdmitBuy(context.Background(), "BTCUSDT", 100)
	assert.ErrorIs(t, err, ErrMaxHoldings)
}

func TestCapitalCeilingBlocksSecondBuyInCategory(t *testing.T) {
	cfg := testConfig()
	cfg.CapitalCeilings = map[string]float64{"major": 150}
	a := NewAllocator(cfg, staticFilters{})
	a.Register("BTCUSDT")
	a.Register("ETHUSDT")

	_, err := a.AdmitBuy(context.Background(), "BTCUSDT", 100)
	assert.NoError(t, err)

	// committed 100 + stake 100 > ceiling 150
	_, err = a.AdmitBuy(context.Background(), "ETHUSDT", 100)
	assert.ErrorIs(t, err, ErrCapitalCeiling)
}

func TestZeroCeilingAdmitsNoBuysInCategory(t *testing.T) {
	cfg := testConfig()
	cfg.CapitalCeilings = map[string]float64{"meme": 0}
	a := NewAllocator(cfg, staticFilters{})
	a.Register("DOGEUSDT")

	_, err := a.AdmitBuy(context.Background(), "DOGEUSDT", 0.2)
	assert.ErrorIs(t, err, ErrCapitalCeiling)
}

func TestSizingErrorWhenStakeRoundsToZero(t *testing.T) {
	// Whole-unit lot step with a stake smaller than one unit.
	filters := staticFilters{"DOGEUSDT": {Symbol: "DOGEUSDT", LotStep: 1}}
	a := NewAllocator(testConfig(), filters)
	a.Register("DOGEUSDT")

	_, err := a.AdmitBuy(context.Background(), "DOGEUSDT", 30)

	var sizing *SizingError
	assert.ErrorAs(t, err, &sizing)
	assert.Equal(t, "DOGEUSDT", sizing.Symbol)

	// A sizing rejection must not leak a reservation or a pending state.
	state, _ := a.State("DOGEUSDT")
	assert.Equal(t, position.StateFlat, state)
	assert.Equal(t, 0, a.OpenCount())
}

func TestSizingErrorBelowMinNotional(t *testing.T) {
	filters := staticFilters{"DOGEUSDT": {Symbol: "DOGEUSDT", LotStep: 1, MinNotional: 25}}
	a := NewAllocator(testConfig(), filters)
	a.Register("DOGEUSDT")

	// 20 / 0.3 floored = 66 units = 19.8 quote, under the 25 minimum.
	_, err := a.AdmitBuy(context.Background(), "DOGEUSDT", 0.3)

	var sizing *SizingError
	assert.ErrorAs(t, err, &sizing)
}

func TestConfirmBuyRebooksActualCost(t *testing.T) {
	a := NewAllocator(testConfig(), staticFilters{})
	a.Register("BTCUSDT")

	qty, err := a.AdmitBuy(context.Background(), "BTCUSDT", 100)
	assert.NoError(t, err)
	assert.InDelta(t, 1.0, qty, 1e-9)

	// Filled at a worse price: committed capital tracks the real cost.
	assert.NoError(t, a.ConfirmBuy("BTCUSDT", fill("BTCUSDT", exchange.SideBuy, 101, 1)))

	snap := a.Snapshot()
	assert.InDelta(t, 101.0, snap.Committed["major"], 1e-9)
	assert.Equal(t, "HOLDING", snap.States["BTCUSDT"])
}

func TestFailBuyReleasesReservation(t *testing.T) {
	a := NewAllocator(testConfig(), staticFilters{})
	a.Register("BTCUSDT")

	_, err := a.AdmitBuy(context.Background(), "BTCUSDT", 100)
	assert.NoError(t, err)
	assert.NoError(t, a.FailBuy("BTCUSDT"))

	snap := a.Snapshot()
	assert.InDelta(t, 0.0, snap.Committed["major"], 1e-9)
	assert.Equal(t, 0, a.OpenCount())
}

func TestSellAdmittedAtMaxHoldings(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHoldings = 1
	a := NewAllocator(cfg, staticFilters{})
	a.Register("BTCUSDT")

	_, err := a.AdmitBuy(context.Background(), "BTCUSDT", 100)
	assert.NoError(t, err)
	assert.NoError(t, a.ConfirmBuy("BTCUSDT", fill("BTCUSDT", exchange.SideBuy, 100, 1)))

	qty, err := a.AdmitSell("BTCUSDT")
	assert.NoError(t, err)
	assert.InDelta(t, 1.0, qty, 1e-9)
}

func TestConfirmSellFreesCapitalAndArchives(t *testing.T) {
	a := NewAllocator(testConfig(), staticFilters{})
	a.Register("BTCUSDT")

	_, _ = a.AdmitBuy(context.Background(), "BTCUSDT", 100)
	_ = a.ConfirmBuy("BTCUSDT", fill("BTCUSDT", exchange.SideBuy, 100, 1))
	_, _ = a.AdmitSell("BTCUSDT")

	trade, err := a.ConfirmSell("BTCUSDT", fill("BTCUSDT", exchange.SideSell, 103, 1), "profit target")
	assert.NoError(t, err)
	assert.InDelta(t, 3.0, trade.RealizedPnL, 1e-9)

	snap := a.Snapshot()
	assert.InDelta(t, 0.0, snap.Committed["major"], 1e-9)
	assert.Equal(t, 1, snap.Trades)
	assert.Equal(t, "FLAT", snap.States["BTCUSDT"])

	// Capacity is free again.
	_, err = a.AdmitBuy(context.Background(), "BTCUSDT", 100)
	assert.NoError(t, err)
}

func TestFailSellKeepsHolding(t *testing.T) {
	a := NewAllocator(testConfig(), staticFilters{})
	a.Register("BTCUSDT")

	_, _ = a.AdmitBuy(context.Background(), "BTCUSDT", 100)
	_ = a.ConfirmBuy("BTCUSDT", fill("BTCUSDT", exchange.SideBuy, 100, 1))
	_, _ = a.AdmitSell("BTCUSDT")

	assert.NoError(t, a.FailSell("BTCUSDT"))

	state, _ := a.State("BTCUSDT")
	assert.Equal(t, position.StateHolding, state)
	snap := a.Snapshot()
	assert.InDelta(t, 100.0, snap.Committed["major"], 1e-9)
}

func TestInvestmentOverrideWins(t *testing.T) {
	cfg := testConfig()
	cfg.InvestmentOverrides = map[string]float64{"BTCUSDT": 250}
	a := NewAllocator(cfg, staticFilters{})
	a.Register("BTCUSDT")

	qty, err := a.AdmitBuy(context.Background(), "BTCUSDT", 100)
	assert.NoError(t, err)
	assert.InDelta(t, 2.5, qty, 1e-9)
}

func TestUnknownSymbolRejected(t *testing.T) {
	a := NewAllocator(testConfig(), staticFilters{})

	_, err := a.AdmitBuy(context.Background(), "XRPUSDT", 1)
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, err = a.AdmitSell("XRPUSDT")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestOpenPositionView(t *testing.T) {
	a := NewAllocator(testConfig(), staticFilters{})
	a.Register("BTCUSDT")

	assert.Nil(t, a.OpenPosition("BTCUSDT"))

	_, _ = a.AdmitBuy(context.Background(), "BTCUSDT", 100)
	_ = a.ConfirmBuy("BTCUSDT", fill("BTCUSDT", exchange.SideBuy, 100, 2))

	view := a.OpenPosition("BTCUSDT")
	assert.NotNil(t, view)
	assert.Equal(t, 100.0, view.EntryPrice)
	assert.Equal(t, 2.0, view.Quantity)
}
