package sources

import (
	"context"

	"github.com/shopspring/decimal"
)

// SourceType represents the type of price source
type SourceType string

const (
	SourceTypeCEX  SourceType = "cex"
	SourceTypeIdx  SourceType = "index"
	SourceTypeFiat SourceType = "fiat"
)

// Source defines the interface that all price sources must implement.
// Implementations wrap one venue API; fetch failures are returned as typed
// errors and never retried here - retry policy belongs to the pool.
type Source interface {
	// Name returns the unique name of this source
	Name() string

	// Type returns the type of this source
	Type() SourceType

	// GetPrice returns the current spot price for one asset symbol
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// GetPrices returns spot prices for a set of symbols, best-effort
	// per symbol; missing symbols are absent from the result map
	GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)

	// Symbols returns the asset symbols this source is configured for
	Symbols() []string

	// Ping performs a lightweight liveness check against the venue
	Ping(ctx context.Context) error
}

// SourceFactory is a function that creates a new Source instance
type SourceFactory func(config map[string]interface{}) (Source, error)
