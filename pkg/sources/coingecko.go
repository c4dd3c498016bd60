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

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoSource fetches prices from the CoinGecko REST API.
// Pairs map unified symbols to CoinGecko coin ids (e.g., "BTC" -> "bitcoin").
type CoinGeckoSource struct {
	*BaseSource
	apiURL string
	apiKey string
}

// NewCoinGeckoSource creates a new CoinGecko source
func NewCoinGeckoSource(config map[string]interface{}) (Source, error) {
	logger := GetLoggerFromConfig(config)

	pairs, err := ParsePairsFromMap(config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pairs: %w", err)
	}
	pegged := ParsePeggedFromConfig(config)

	apiURL := coingeckoBaseURL
	if u, ok := config["api_url"].(string); ok && u != "" {
		apiURL = u
	}

	apiKey := ""
	if key, ok := config["api_key"].(string); ok {
		apiKey = key
	}

	return &CoinGeckoSource{
		BaseSource: NewBaseSource("coingecko", SourceTypeIdx, pairs, pegged, logger),
		apiURL:     apiURL,
		apiKey:     apiKey,
	}, nil
}

// GetPrice returns the current spot price for one symbol
func (s *CoinGeckoSource) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
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

// GetPrices returns USD prices for a set of symbols in one simple/price call
func (s *CoinGeckoSource) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	result := make(map[string]decimal.Decimal, len(symbols))
	ids := make([]string, 0, len(symbols))
	idToSymbol := make(map[string]string, len(symbols))

	for _, symbol := range symbols {
		if price, ok := s.PeggedPrice(symbol); ok {
			result[symbol] = price
			continue
		}
		if id := s.VenueSymbol(symbol); id != "" {
			ids = append(ids, id)
			idToSymbol[id] = symbol
		}
	}

	if len(ids) == 0 {
		return result, nil
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		s.apiURL, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("x-cg-pro-api-key", s.apiKey)
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

	// Response format: {"bitcoin": {"usd": 50000.12}, ...}
	var quotes map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &quotes); err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	for id, quote := range quotes {
		symbol, ok := idToSymbol[id]
		if !ok {
			continue
		}
		price, ok := quote["usd"]
		if !ok || !price.IsPositive() {
			s.Logger().Warn("Skipping missing or non-positive quote", "source", s.Name(), "id", id)
			continue
		}
		result[symbol] = price
	}

	return result, nil
}

// Ping performs a lightweight liveness check
func (s *CoinGeckoSource) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/ping", nil)
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
	Register("index.coingecko", func(config map[string]interface{}) (Source, error) {
		return NewCoinGeckoSource(config)
	})
}
