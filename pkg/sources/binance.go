package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const binanceBaseURL = "https://api.binance.com"

// BinanceSource fetches spot prices from the Binance REST API
type BinanceSource struct {
	*BaseSource
	apiURL string
}

// BinancePriceTicker represents price data from the /ticker/price endpoint
type BinancePriceTicker struct {
	Symbol string `json:"symbol"` // e.g., "BTCUSDT"
	Price  string `json:"price"`
}

// NewBinanceSource creates a new Binance source
func NewBinanceSource(config map[string]interface{}) (Source, error) {
	logger := GetLoggerFromConfig(config)

	pairs, err := ParsePairsFromMap(config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pairs: %w", err)
	}
	pegged := ParsePeggedFromConfig(config)

	apiURL := binanceBaseURL
	if u, ok := config["api_url"].(string); ok && u != "" {
		apiURL = u
	}

	return &BinanceSource{
		BaseSource: NewBaseSource("binance", SourceTypeCEX, pairs, pegged, logger),
		apiURL:     apiURL,
	}, nil
}

// GetPrice returns the current spot price for one symbol
func (s *BinanceSource) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if price, ok := s.PeggedPrice(symbol); ok {
		return price, nil
	}

	venueSymbol := s.VenueSymbol(symbol)
	if venueSymbol == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, symbol)
	}

	endpoint := s.apiURL + "/api/v3/ticker/price?symbol=" + url.QueryEscape(venueSymbol)
	body, err := s.get(ctx, endpoint)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var ticker BinancePriceTicker
	if err := json.Unmarshal(body, &ticker); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return parsePositivePrice(ticker.Price)
}

// GetPrices returns spot prices for a set of symbols, best-effort per symbol
func (s *BinanceSource) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	result := make(map[string]decimal.Decimal, len(symbols))
	wanted := make(map[string]string, len(symbols)) // venue symbol -> unified symbol

	for _, symbol := range symbols {
		if price, ok := s.PeggedPrice(symbol); ok {
			result[symbol] = price
			continue
		}
		if venueSymbol := s.VenueSymbol(symbol); venueSymbol != "" {
			wanted[strings.ToUpper(venueSymbol)] = symbol
		}
	}

	if len(wanted) == 0 {
		return result, nil
	}

	// One bulk call covers every tracked pair
	body, err := s.get(ctx, s.apiURL+"/api/v3/ticker/price")
	if err != nil {
		return result, err
	}

	var tickers []BinancePriceTicker
	if err := json.Unmarshal(body, &tickers); err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	for _, ticker := range tickers {
		unified, ok := wanted[strings.ToUpper(ticker.Symbol)]
		if !ok {
			continue
		}
		price, err := parsePositivePrice(ticker.Price)
		if err != nil {
			s.Logger().Warn("Skipping unparseable price", "source", s.Name(), "symbol", ticker.Symbol, "error", err)
			continue
		}
		result[unified] = price
	}

	return result, nil
}

// Ping performs a lightweight liveness check
func (s *BinanceSource) Ping(ctx context.Context) error {
	_, err := s.get(ctx, s.apiURL+"/api/v3/ping")
	return err
}

func (s *BinanceSource) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.HTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w", ErrRateLimitExceeded)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// parsePositivePrice parses a decimal string and rejects non-positive values
func parsePositivePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidResponse, raw)
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrNonPositivePrice, price)
	}
	return price, nil
}

func init() {
	Register("cex.binance", func(config map[string]interface{}) (Source, error) {
		return NewBinanceSource(config)
	})
}
