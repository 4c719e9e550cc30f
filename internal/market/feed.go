package market

import "context"

// Feed supplies current prices and rolling candle history per symbol. The
// engine only consumes this contract; the Binance client and the candle
// replayer both implement it.
type Feed interface {
	// CurrentPrice returns the latest observed price for symbol.
	CurrentPrice(ctx context.Context, symbol string) (PriceSample, error)

	// History returns the most recent `window` closed candles for symbol in
	// ascending time order. Fewer candles than requested is not an error;
	// strategies treat short history as a hold.
	History(ctx context.Context, symbol string, window int) ([]Candle, error)

	Close() error
}
