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

const bitfinexBaseURL = "https://api-pub.bitfinex.com"

// BitfinexSource fetches spot prices from the Bitfinex public tickers API
type BitfinexSource struct {
	*BaseSource
	apiURL string
}

// NewBitfinexSource creates a new Bitfinex source
func NewBitfinexSource(config map[string]interface{}) (Source, error) {
	logger := GetLoggerFromConfig(config)

	pairs, err := ParsePairsFromMap(config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pairs: %w", err)
	}
	pegged := ParsePeggedFromConfig(config)

	apiURL := bitfinexBaseURL
	if u, ok := config["api_url"].(string); ok && u != "" {
		apiURL = u
	}

	return &BitfinexSource{
		BaseSource: NewBaseSource("bitfinex", SourceTypeCEX, pairs, pegged, logger),
		apiURL:     apiURL,
	}, nil
}

// GetPrice returns the current spot price for one symbol
func (s *BitfinexSource) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := s.GetPrices(ctx, []string{symbol})
	if err != nil {
		return decimal.Decimal{}, err
	}
	price, ok := prices[symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, symbol)
	}
	return price, nil
}

// GetPrices returns spot prices for a set of symbols in one tickers call
func (s *BitfinexSource) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	result := make(map[string]decimal.Decimal, len(symbols))
	venueSymbols := make([]string, 0, len(symbols))
	venueToSymbol := make(map[string]string, len(symbols))

	for _, symbol := range symbols {
		if price, ok := s.PeggedPrice(symbol); ok {
			result[symbol] = price
			continue
		}
		if venueSymbol := s.VenueSymbol(symbol); venueSymbol != "" {
			venueSymbols = append(venueSymbols, venueSymbol)
			venueToSymbol[strings.ToUpper(venueSymbol)] = symbol
		}
	}

	if len(venueSymbols) == 0 {
		return result, nil
	}

	endpoint := fmt.Sprintf("%s/v2/tickers?symbols=%s",
		s.apiURL, url.QueryEscape(strings.Join(venueSymbols, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.HTTPClient().Do(req)
	if err != nil {
		return result, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return result, fmt.Errorf("%w", ErrRateLimitExceeded)
	}
	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("failed to read response: %w", err)
	}

	// Each ticker is: [SYMBOL, BID, BID_SIZE, ASK, ASK_SIZE, DAILY_CHANGE,
	// DAILY_CHANGE_RELATIVE, LAST_PRICE, VOLUME, HIGH, LOW]
	var tickers [][]interface{}
	if err := json.Unmarshal(body, &tickers); err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	for _, ticker := range tickers {
		if len(ticker) < 8 {
			s.Logger().Warn("Invalid ticker format", "source", s.Name(), "fields", len(ticker))
			continue
		}
		venueSymbol, ok := ticker[0].(string)
		if !ok {
			continue
		}
		symbol, ok := venueToSymbol[strings.ToUpper(venueSymbol)]
		if !ok {
			continue
		}
		lastPrice, ok := ticker[7].(float64)
		if !ok || lastPrice <= 0 {
			s.Logger().Warn("Skipping missing or non-positive last price", "source", s.Name(), "symbol", venueSymbol)
			continue
		}
		result[symbol] = decimal.NewFromFloat(lastPrice)
	}

	return result, nil
}

// Ping performs a lightweight liveness check
func (s *BitfinexSource) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/v2/platform/status", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.HTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

func init() {
	Register("cex.bitfinex", func(config map[string]interface{}) (Source, error) {
		return NewBitfinexSource(config)
	})
}
