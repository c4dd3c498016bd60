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

const krakenBaseURL = "https://api.kraken.com"

// KrakenSource fetches spot prices from the Kraken public Ticker API
type KrakenSource struct {
	*BaseSource
	apiURL string
}

// KrakenTickerData represents ticker data for a single pair
type KrakenTickerData struct {
	// C holds [last trade price, lot volume]
	C []string `json:"c"`
}

// KrakenTickerResponse represents the Ticker endpoint response
type KrakenTickerResponse struct {
	Error  []string                    `json:"error"`
	Result map[string]KrakenTickerData `json:"result"`
}

// NewKrakenSource creates a new Kraken source
func NewKrakenSource(config map[string]interface{}) (Source, error) {
	logger := GetLoggerFromConfig(config)

	pairs, err := ParsePairsFromMap(config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pairs: %w", err)
	}
	pegged := ParsePeggedFromConfig(config)

	apiURL := krakenBaseURL
	if u, ok := config["api_url"].(string); ok && u != "" {
		apiURL = u
	}

	return &KrakenSource{
		BaseSource: NewBaseSource("kraken", SourceTypeCEX, pairs, pegged, logger),
		apiURL:     apiURL,
	}, nil
}

// GetPrice returns the current spot price for one symbol
func (s *KrakenSource) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
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

// GetPrices returns spot prices for a set of symbols in one Ticker call
func (s *KrakenSource) GetPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	result := make(map[string]decimal.Decimal, len(symbols))
	venuePairs := make([]string, 0, len(symbols))
	pairToSymbol := make(map[string]string, len(symbols))

	for _, symbol := range symbols {
		if price, ok := s.PeggedPrice(symbol); ok {
			result[symbol] = price
			continue
		}
		if pair := s.VenueSymbol(symbol); pair != "" {
			venuePairs = append(venuePairs, pair)
			pairToSymbol[strings.ToUpper(pair)] = symbol
		}
	}

	if len(venuePairs) == 0 {
		return result, nil
	}

	endpoint := fmt.Sprintf("%s/0/public/Ticker?pair=%s",
		s.apiURL, url.QueryEscape(strings.Join(venuePairs, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.HTTPClient().Do(req)
	if err != nil {
		return result, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("failed to read response: %w", err)
	}

	var response KrakenTickerResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(response.Error) > 0 {
		return result, fmt.Errorf("%w: %v", ErrAPIError, response.Error)
	}

	// Kraken may answer with normalized pair names (e.g. XXBTZUSD for XBTUSD),
	// so match both the requested and the returned spelling.
	for pair, data := range response.Result {
		symbol, ok := pairToSymbol[strings.ToUpper(pair)]
		if !ok {
			symbol = s.matchNormalizedPair(pair, pairToSymbol)
			if symbol == "" {
				continue
			}
		}
		if len(data.C) == 0 {
			s.Logger().Warn("Ticker missing last trade price", "source", s.Name(), "pair", pair)
			continue
		}
		price, err := parsePositivePrice(data.C[0])
		if err != nil {
			s.Logger().Warn("Skipping unparseable price", "source", s.Name(), "pair", pair, "error", err)
			continue
		}
		result[symbol] = price
	}

	return result, nil
}

// matchNormalizedPair maps Kraken's normalized pair spelling back to the
// requested pair by stripping the X/Z class prefixes.
func (s *KrakenSource) matchNormalizedPair(pair string, pairToSymbol map[string]string) string {
	stripped := strings.ToUpper(pair)
	stripped = strings.ReplaceAll(stripped, "XXBT", "XBT")
	stripped = strings.ReplaceAll(stripped, "XETH", "ETH")
	stripped = strings.ReplaceAll(stripped, "ZUSD", "USD")
	if symbol, ok := pairToSymbol[stripped]; ok {
		return symbol
	}
	return ""
}

// Ping performs a lightweight liveness check
func (s *KrakenSource) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/0/public/SystemStatus", nil)
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
	Register("cex.kraken", func(config map[string]interface{}) (Source, error) {
		return NewKrakenSource(config)
	})
}
