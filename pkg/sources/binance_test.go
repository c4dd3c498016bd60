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

func binanceConfig(apiURL string) map[string]interface{} {
	return map[string]interface{}{
		"pairs": map[string]interface{}{
			"BTC": "BTCUSDT",
			"ETH": "ETHUSDT",
		},
		"api_url": apiURL,
	}
}

func TestBinanceSource_New(t *testing.T) {
	source, err := NewBinanceSource(binanceConfig(""))
	require.NoError(t, err)

	assert.Equal(t, "binance", source.Name())
	assert.Equal(t, SourceTypeCEX, source.Type())
	assert.ElementsMatch(t, []string{"BTC", "ETH"}, source.Symbols())
}

func TestBinanceSource_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]interface{}
	}{
		{name: "missing pairs", config: map[string]interface{}{}},
		{name: "invalid pairs type", config: map[string]interface{}{"pairs": "invalid"}},
		{name: "empty pairs", config: map[string]interface{}{"pairs": map[string]interface{}{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBinanceSource(tt.config)
			require.Error(t, err)
		})
	}
}

func TestBinanceSource_GetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"50000.12"}`))
	}))
	defer server.Close()

	source, err := NewBinanceSource(binanceConfig(server.URL))
	require.NoError(t, err)

	price, err := source.GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(50000.12)), "got %s", price)
}

func TestBinanceSource_GetPrice_UnsupportedAsset(t *testing.T) {
	source, err := NewBinanceSource(binanceConfig("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = source.GetPrice(context.Background(), "DOGE")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedAsset)
}

func TestBinanceSource_GetPrice_NonPositive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"0"}`))
	}))
	defer server.Close()

	source, err := NewBinanceSource(binanceConfig(server.URL))
	require.NoError(t, err)

	_, err = source.GetPrice(context.Background(), "BTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonPositivePrice)
}

func TestBinanceSource_GetPrice_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	source, err := NewBinanceSource(binanceConfig(server.URL))
	require.NoError(t, err)

	_, err = source.GetPrice(context.Background(), "BTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
}

func TestBinanceSource_GetPrices_Bulk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`[
			{"symbol":"BTCUSDT","price":"50000"},
			{"symbol":"ETHUSDT","price":"3000"},
			{"symbol":"XRPUSDT","price":"0.5"}
		]`))
	}))
	defer server.Close()

	source, err := NewBinanceSource(binanceConfig(server.URL))
	require.NoError(t, err)

	result, err := source.GetPrices(context.Background(), []string{"BTC", "ETH"})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.True(t, result["BTC"].Equal(decimal.NewFromInt(50000)))
	assert.True(t, result["ETH"].Equal(decimal.NewFromInt(3000)))
}

func TestBinanceSource_PeggedAssetSkipsCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer server.Close()

	config := binanceConfig(server.URL)
	config["pegged"] = []interface{}{"USDT"}

	source, err := NewBinanceSource(config)
	require.NoError(t, err)

	price, err := source.GetPrice(context.Background(), "USDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1)))
	assert.False(t, called)
}

func TestBinanceSource_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ping", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	source, err := NewBinanceSource(binanceConfig(server.URL))
	require.NoError(t, err)
	assert.NoError(t, source.Ping(context.Background()))
}
