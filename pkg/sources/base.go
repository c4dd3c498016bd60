package sources

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openfeeds/oracle-aggregator/pkg/logging"
)

const defaultHTTPTimeout = 10 * time.Second

// BaseSource provides common functionality for venue adapters: the unified
// symbol to venue symbol mapping, the pegged-asset shortcut, and a shared
// HTTP client with a hard timeout.
type BaseSource struct {
	name       string
	sourcetype SourceType
	pairs      map[string]string // unified symbol -> venue-specific symbol
	pegged     map[string]bool   // assets quoted at a constant 1.0 without a network call
	httpClient *http.Client
	logger     *logging.Logger
}

// NewBaseSource creates a new base source with pair mappings.
// pairs: map of unified symbol (e.g., "BTC") -> venue symbol (e.g., "BTCUSDT").
// pegged: fiat-pegged assets this venue cannot quote reliably; they resolve
// to 1.0 without issuing a call.
func NewBaseSource(name string, sourcetype SourceType, pairs map[string]string, pegged []string, logger *logging.Logger) *BaseSource {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	peggedSet := make(map[string]bool, len(pegged))
	for _, symbol := range pegged {
		peggedSet[symbol] = true
	}

	return &BaseSource{
		name:       name,
		sourcetype: sourcetype,
		pairs:      pairs,
		pegged:     peggedSet,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logger,
	}
}

// Name returns the source name
func (b *BaseSource) Name() string {
	return b.name
}

// Type returns the source type
func (b *BaseSource) Type() SourceType {
	return b.sourcetype
}

// Symbols returns the unified symbols this source is configured for,
// pegged assets included.
func (b *BaseSource) Symbols() []string {
	symbols := make([]string, 0, len(b.pairs)+len(b.pegged))
	for symbol := range b.pairs {
		symbols = append(symbols, symbol)
	}
	for symbol := range b.pegged {
		if _, ok := b.pairs[symbol]; !ok {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

// VenueSymbol converts a unified symbol to the venue-specific symbol.
// Returns empty string if not configured.
func (b *BaseSource) VenueSymbol(symbol string) string {
	return b.pairs[symbol]
}

// UnifiedSymbol finds the unified symbol for a venue-specific symbol.
// Returns empty string if not found.
func (b *BaseSource) UnifiedSymbol(venueSymbol string) string {
	for unified, venue := range b.pairs {
		if venue == venueSymbol {
			return unified
		}
	}
	return ""
}

// PeggedPrice returns (1.0, true) when the symbol is configured as pegged
// for this venue.
func (b *BaseSource) PeggedPrice(symbol string) (decimal.Decimal, bool) {
	if b.pegged[symbol] {
		return decimal.NewFromInt(1), true
	}
	return decimal.Decimal{}, false
}

// HTTPClient returns the shared HTTP client
func (b *BaseSource) HTTPClient() *http.Client {
	return b.httpClient
}

// Logger returns the logger
func (b *BaseSource) Logger() *logging.Logger {
	return b.logger
}

// GetLoggerFromConfig extracts a logger from the config map or returns a
// noop logger so adapters never hold a nil logger.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok {
			return logger
		}
	}
	return logging.NewNoopLogger()
}

// ParsePairsFromMap extracts pair mappings from config where pairs is a map.
// Expected format: pairs: { "BTC": "BTCUSDT", "ETH": "ETHUSDT" }.
func ParsePairsFromMap(config map[string]interface{}) (map[string]string, error) {
	pairsRaw, ok := config["pairs"]
	if !ok {
		return nil, fmt.Errorf("%w: 'pairs' key", ErrInvalidConfig)
	}

	pairsMap, ok := pairsRaw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: pairs must be map[string]string", ErrInvalidConfig)
	}

	pairs := make(map[string]string, len(pairsMap))
	for unified, venueRaw := range pairsMap {
		venue, ok := venueRaw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %T", ErrInvalidConfig, unified, venueRaw)
		}
		if unified == "" || venue == "" {
			return nil, fmt.Errorf("%w: empty symbol mapping", ErrInvalidConfig)
		}
		pairs[unified] = venue
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w", ErrNoPairsConfigured)
	}

	return pairs, nil
}

// ParsePeggedFromConfig extracts the pegged-asset list from config.
// Expected format: pegged: ["USDT", "USDC"]. Missing key means none.
func ParsePeggedFromConfig(config map[string]interface{}) []string {
	raw, ok := config["pegged"]
	if !ok {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	pegged := make([]string, 0, len(list))
	for _, item := range list {
		if symbol, ok := item.(string); ok && symbol != "" {
			pegged = append(pegged, symbol)
		}
	}
	return pegged
}
