package fintual

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_FetchPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/real_assets/226", r.URL.Path)
		fmt.Fprint(w, `{"data":{"attributes":{"last_day":{"net_asset_value":73.91,"close_price":73.85,"date":"2026-08-25"}}}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())

	result, err := client.FetchPrice("BND")
	require.NoError(t, err)
	assert.True(t, result.Price.Equal(decimal.RequireFromString("73.91")))
	assert.Equal(t, "2026-08-25", result.Date)
}

func TestClient_FetchPriceFallsBackToClosePrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"attributes":{"last_day":{"net_asset_value":null,"close_price":110.25,"date":"2026-08-25"}}}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())

	result, err := client.FetchPrice("TIP")
	require.NoError(t, err)
	assert.True(t, result.Price.Equal(decimal.RequireFromString("110.25")))
}

func TestClient_FetchPriceUnknownSymbol(t *testing.T) {
	client := NewClient("http://localhost:1", zerolog.Nop())

	_, err := client.FetchPrice("NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown symbol")
}

func TestClient_FetchPriceServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())

	_, err := client.FetchPrice("BND")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_FetchPricesFallsBackOnAnyFailure(t *testing.T) {
	// Server that always fails; the whole fetch degrades to fallback prices
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())

	prices, date := client.FetchPrices()
	assert.Empty(t, date)
	assert.Len(t, prices, len(Symbols()))
	assert.True(t, prices["BND"].Equal(decimal.RequireFromString("73.90")))
}

func TestClient_FetchPricesAllSucceed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"attributes":{"last_day":{"net_asset_value":100.0,"close_price":99.0,"date":"2026-08-25"}}}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())

	prices, date := client.FetchPrices()
	assert.Equal(t, "2026-08-25", date)
	require.Len(t, prices, len(Symbols()))
	for _, symbol := range Symbols() {
		assert.True(t, prices[symbol].Equal(decimal.NewFromInt(100)), symbol)
	}
}

func TestSymbolsSortedAndComplete(t *testing.T) {
	symbols := Symbols()
	require.Len(t, symbols, 12)
	assert.Equal(t, "BLV", symbols[0])
	assert.Equal(t, "XLY", symbols[len(symbols)-1])
}
