package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coingeckoConfig(apiURL string) map[string]interface{} {
	return map[string]interface{}{
		"pairs": map[string]interface{}{
			"BTC": "bitcoin",
			"ETH": "ethereum",
		},
		"api_url": apiURL,
	}
}

func TestCoinGeckoSource_GetPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":50000.12},"ethereum":{"usd":3000}}`))
	}))
	defer server.Close()

	source, err := NewCoinGeckoSource(coingeckoConfig(server.URL))
	require.NoError(t, err)

	result, err := source.GetPrices(context.Background(), []string{"BTC", "ETH"})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.True(t, result["BTC"].Equal(decimal.NewFromFloat(50000.12)))
	assert.True(t, result["ETH"].Equal(decimal.NewFromInt(3000)))
}

func TestCoinGeckoSource_APIKeyHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-cg-pro-api-key"))
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":50000}}`))
	}))
	defer server.Close()

	config := coingeckoConfig(server.URL)
	config["api_key"] = "secret"

	source, err := NewCoinGeckoSource(config)
	require.NoError(t, err)

	_, err = source.GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
}

func TestCoinGeckoSource_MissingQuoteSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"bitcoin":{"eur":45000}}`))
	}))
	defer server.Close()

	source, err := NewCoinGeckoSource(coingeckoConfig(server.URL))
	require.NoError(t, err)

	_, err = source.GetPrice(context.Background(), "BTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedAsset)
}

func TestCoinGeckoSource_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	source, err := NewCoinGeckoSource(coingeckoConfig(server.URL))
	require.NoError(t, err)

	_, err = source.GetPrice(context.Background(), "BTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
}
