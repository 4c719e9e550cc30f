package binance

import (
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"

	"tidebot/internal/gateway/exchange"
)

func TestOrderResultAveragesQuoteVolume(t *testing.T) {
	res, err := orderResult("BTCUSDT", exchange.SideBuy, &binance.CreateOrderResponse{
		OrderID:                  42,
		ExecutedQuantity:         "0.5",
		CummulativeQuoteQuantity: "50.0",
		TransactTime:             1700000000000,
	})
	assert.NoError(t, err)
	assert.Equal(t, "42", res.OrderID)
	assert.Equal(t, 0.5, res.FilledQuantity)
	assert.Equal(t, 100.0, res.FilledPrice)
}

func TestOrderResultFallsBackToFillPrice(t *testing.T) {
	res, err := orderResult("BTCUSDT", exchange.SideBuy, &binance.CreateOrderResponse{
		OrderID:          42,
		ExecutedQuantity: "0.5",
		Fills:            []*binance.Fill{{Price: "99.5"}},
	})
	assert.NoError(t, err)
	assert.Equal(t, 99.5, res.FilledPrice)
}

func TestOrderResultRejectsZeroQuantity(t *testing.T) {
	_, err := orderResult("BTCUSDT", exchange.SideBuy, &binance.CreateOrderResponse{
		OrderID:          42,
		ExecutedQuantity: "0",
	})
	assert.ErrorContains(t, err, "no executed quantity")
}

func TestOrderResultRejectsPricelessFill(t *testing.T) {
	// Zero quote volume and no fill entries must fail, not book at price 0.
	_, err := orderResult("BTCUSDT", exchange.SideBuy, &binance.CreateOrderResponse{
		OrderID:                  42,
		ExecutedQuantity:         "0.5",
		CummulativeQuoteQuantity: "0",
	})
	assert.ErrorContains(t, err, "no fill price")
}
