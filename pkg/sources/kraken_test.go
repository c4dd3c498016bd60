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

func krakenConfig(apiURL string) map[string]interface{} {
	return map[string]interface{}{
		"pairs": map[string]interface{}{
			"BTC": "XBTUSD",
			"ETH": "ETHUSD",
		},
		"api_url": apiURL,
	}
}

func TestKrakenSource_New(t *testing.T) {
	source, err := NewKrakenSource(krakenConfig(""))
	require.NoError(t, err)

	assert.Equal(t, "kraken", source.Name())
	assert.Equal(t, SourceTypeCEX, source.Type())
}

func TestKrakenSource_GetPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/Ticker", r.URL.Path)
		assert.Equal(t, "XBTUSD,ETHUSD", r.URL.Query().Get("pair"))
		_, _ = w.Write([]byte(`{
			"error": [],
			"result": {
				"XBTUSD": {"c": ["50000.5", "0.1"]},
				"ETHUSD": {"c": ["3000.25", "1.2"]}
			}
		}`))
	}))
	defer server.Close()

	source, err := NewKrakenSource(krakenConfig(server.URL))
	require.NoError(t, err)

	result, err := source.GetPrices(context.Background(), []string{"BTC", "ETH"})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.True(t, result["BTC"].Equal(decimal.NewFromFloat(50000.5)))
	assert.True(t, result["ETH"].Equal(decimal.NewFromFloat(3000.25)))
}

func TestKrakenSource_NormalizedPairNames(t *testing.T) {
	// Kraken answers XBTUSD requests with the XXBTZUSD spelling.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"error": [],
			"result": {
				"XXBTZUSD": {"c": ["50000", "0.1"]},
				"XETHZUSD": {"c": ["3000", "1.2"]}
			}
		}`))
	}))
	defer server.Close()

	source, err := NewKrakenSource(krakenConfig(server.URL))
	require.NoError(t, err)

	result, err := source.GetPrices(context.Background(), []string{"BTC", "ETH"})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.True(t, result["BTC"].Equal(decimal.NewFromInt(50000)))
	assert.True(t, result["ETH"].Equal(decimal.NewFromInt(3000)))
}

func TestKrakenSource_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": ["EQuery:Unknown asset pair"], "result": {}}`))
	}))
	defer server.Close()

	source, err := NewKrakenSource(krakenConfig(server.URL))
	require.NoError(t, err)

	_, err = source.GetPrice(context.Background(), "BTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAPIError)
}

func TestKrakenSource_MissingLastPriceSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"error": [],
			"result": {
				"XBTUSD": {"c": []},
				"ETHUSD": {"c": ["3000", "1.2"]}
			}
		}`))
	}))
	defer server.Close()

	source, err := NewKrakenSource(krakenConfig(server.URL))
	require.NoError(t, err)

	result, err := source.GetPrices(context.Background(), []string{"BTC", "ETH"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, result["ETH"].Equal(decimal.NewFromInt(3000)))
}

func TestKrakenSource_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/SystemStatus", r.URL.Path)
		_, _ = w.Write([]byte(`{"error":[],"result":{"status":"online"}}`))
	}))
	defer server.Close()

	source, err := NewKrakenSource(krakenConfig(server.URL))
	require.NoError(t, err)
	assert.NoError(t, source.Ping(context.Background()))
}
