package position

import (
	"testing"
	"time"

	"tidebot/internal/gateway/exchange"

	"github.com/stretchr/testify/assert"
)

func buyFill(symbol string, price, qty float64) exchange.OrderResult {
	return exchange.OrderResult{
		Symbol:         symbol,
		Side:           exchange.SideBuy,
		OrderID:        "1",
		FilledPrice:    price,
		FilledQuantity: qty,
		FilledAt:       time.Now(),
	}
}

func sellFill(symbol string, price, qty float64) exchange.OrderResult {
	r := buyFill(symbol, price, qty)
	r.Side = exchange.SideSell
	return r
}

func TestFullLifecycle(t *testing.T) {
	tr := NewTracker("BTCUSDT")
	assert.Equal(t, StateFlat, tr.State())

	assert.NoError(t, tr.BeginBuy())
	assert.Equal(t, StatePendingBuy, tr.State())
	assert.True(t, tr.Pending())

	assert.NoError(t, tr.ConfirmBuy(buyFill("BTCUSDT", 100, 0.5), 1.02, 0.98))
	assert.Equal(t, StateHolding, tr.State())

	pos, held := tr.Position()
	assert.True(t, held)
	assert.Equal(t, 100.0, pos.EntryPrice)
	assert.Equal(t, 0.5, pos.Quantity)
	assert.InDelta(t, 102.0, pos.ProfitTargetPrice, 1e-9)
	assert.InDelta(t, 98.0, pos.StopLossPrice, 1e-9)

	assert.NoError(t, tr.BeginSell())
	assert.Equal(t, StatePendingSell, tr.State())

	trade, err := tr.ConfirmSell(sellFill("BTCUSDT", 103, 0.5), "profit target")
	assert.NoError(t, err)
	assert.Equal(t, StateFlat, tr.State())
	assert.InDelta(t, 1.5, trade.RealizedPnL, 1e-9) // (103-100)*0.5
	assert.Equal(t, "profit target", trade.Reason)

	_, held = tr.Position()
	assert.False(t, held)
}

func TestPositionBookedFromFillNotRequest(t *testing.T) {
	tr := NewTracker("ETHUSDT")
	assert.NoError(t, tr.BeginBuy())

	// The venue filled at a worse price and a rounded quantity.
	assert.NoError(t, tr.ConfirmBuy(buyFill("ETHUSDT", 2001.5, 0.0499), 1.02, 0.98))

	pos, held := tr.Position()
	assert.True(t, held)
	assert.Equal(t, 2001.5, pos.EntryPrice)
	assert.Equal(t, 0.0499, pos.Quantity)
}

func TestBuyCannotStartUnlessFlat(t *testing.T) {
	tr := NewTracker("BTCUSDT")
	assert.NoError(t, tr.BeginBuy())

	err := tr.BeginBuy()
	var terr *TransitionError
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, StatePendingBuy, terr.From)
}

func TestSellRequiresHolding(t *testing.T) {
	tr := NewTracker("BTCUSDT")

	err := tr.BeginSell()
	var terr *TransitionError
	assert.ErrorAs(t, err, &terr)

	assert.NoError(t, tr.BeginBuy())
	assert.ErrorAs(t, tr.BeginSell(), &terr)
}

func TestFailedBuyReturnsToFlat(t *testing.T) {
	tr := NewTracker("BTCUSDT")
	assert.NoError(t, tr.BeginBuy())
	assert.NoError(t, tr.FailBuy())
	assert.Equal(t, StateFlat, tr.State())
	_, held := tr.Position()
	assert.False(t, held)
}

func TestFailedSellKeepsPosition(t *testing.T) {
	tr := NewTracker("BTCUSDT")
	assert.NoError(t, tr.BeginBuy())
	assert.NoError(t, tr.ConfirmBuy(buyFill("BTCUSDT", 100, 1), 1.02, 0.98))
	assert.NoError(t, tr.BeginSell())

	assert.NoError(t, tr.FailSell())

	assert.Equal(t, StateHolding, tr.State())
	pos, held := tr.Position()
	assert.True(t, held)
	assert.Equal(t, 100.0, pos.EntryPrice)
}

func TestConfirmOutOfOrderRejected(t *testing.T) {
	tr := NewTracker("BTCUSDT")

	var terr *TransitionError
	assert.ErrorAs(t, tr.ConfirmBuy(buyFill("BTCUSDT", 100, 1), 1.02, 0.98), &terr)
	_, err := tr.ConfirmSell(sellFill("BTCUSDT", 100, 1), "x")
	assert.ErrorAs(t, err, &terr)
	assert.ErrorAs(t, tr.FailBuy(), &terr)
	assert.ErrorAs(t, tr.FailSell(), &terr)
}

func TestLosingTradeHasNegativePnL(t *testing.T) {
	tr := NewTracker("DOGEUSDT")
	assert.NoError(t, tr.BeginBuy())
	assert.NoError(t, tr.ConfirmBuy(buyFill("DOGEUSDT", 0.2, 500), 1.02, 0.98))
	assert.NoError(t, tr.BeginSell())

	trade, err := tr.ConfirmSell(sellFill("DOGEUSDT", 0.19, 500), "stop loss")
	assert.NoError(t, err)
	assert.InDelta(t, -5.0, trade.RealizedPnL, 1e-9)
}
