package exchange

import "context"

// Gateway submits orders to the venue.
type Gateway interface {
	Name() string

	Submit(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// FilterProvider exposes per-symbol sizing rules. The allocator consults it
// before every buy; a symbol it does not know cannot be sized and is rejected.
type FilterProvider interface {
	Filters(ctx context.Context, symbol string) (SymbolFilters, error)
}

// SymbolValidator reports which of the requested symbols are actually
// tradeable on the venue. Called once at startup to drop stale definitions.
type SymbolValidator interface {
	ValidSymbols(ctx context.Context, symbols []string) ([]string, error)
}
