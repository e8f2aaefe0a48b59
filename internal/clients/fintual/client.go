// Package fintual provides clients for fintual.cl: the real-assets price API
// and the public fund pages the allocation scraper reads.
package fintual

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://fintual.cl"

// asset maps a symbol to its fintual real_asset id plus a fallback price
// (last observed 2026-02-04) used when the API is unreachable.
type asset struct {
	realAssetID   int
	fallbackPrice decimal.Decimal
}

var assets = map[string]asset{
	"ESGV": {15581, decimal.RequireFromString("119.97")},
	"QQQM": {19179, decimal.RequireFromString("249.38")},
	"FTEC": {15903, decimal.RequireFromString("215.16")},
	"SOXX": {22435, decimal.RequireFromString("330.38")},
	"XLY":  {22691, decimal.RequireFromString("120.10")},
	"FLCH": {22687, decimal.RequireFromString("23.96")},
	"FLIN": {22690, decimal.RequireFromString("38.14")},
	"VUG":  {22688, decimal.RequireFromString("467.37")},
	"IAUM": {22689, decimal.RequireFromString("49.25")},
	"BND":  {226, decimal.RequireFromString("73.90")},
	"BLV":  {15814, decimal.RequireFromString("69.17")},
	"TIP":  {16724, decimal.RequireFromString("110.25")},
}

// Symbols returns the symbols the client knows how to price, sorted
func Symbols() []string {
	symbols := make([]string, 0, len(assets))
	for symbol := range assets {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// FallbackPrices returns the static fallback price table
func FallbackPrices() map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(assets))
	for symbol, a := range assets {
		prices[symbol] = a.fallbackPrice
	}
	return prices
}

// Client for the fintual.cl real-assets price API
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new fintual API client.
// baseURL overrides the production endpoint; empty uses https://fintual.cl.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "fintual").Logger(),
	}
}

// realAssetResponse is the API shape for /api/real_assets/{id}
type realAssetResponse struct {
	Data struct {
		Attributes struct {
			LastDay struct {
				NetAssetValue *float64 `json:"net_asset_value"`
				ClosePrice    float64  `json:"close_price"`
				Date          string   `json:"date"`
			} `json:"last_day"`
		} `json:"attributes"`
	} `json:"data"`
}

// PriceResult is one fetched price with its valuation date
type PriceResult struct {
	Price decimal.Decimal
	Date  string
}

// FetchPrice fetches the latest price for a known symbol.
// net_asset_value is preferred; close_price covers assets without one.
func (c *Client) FetchPrice(symbol string) (PriceResult, error) {
	a, ok := assets[symbol]
	if !ok {
		return PriceResult{}, fmt.Errorf("unknown symbol: %s", symbol)
	}

	url := fmt.Sprintf("%s/api/real_assets/%d", c.baseURL, a.realAssetID)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return PriceResult{}, fmt.Errorf("failed to build request for %s: %w", symbol, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return PriceResult{}, fmt.Errorf("price request for %s failed: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PriceResult{}, fmt.Errorf("price request for %s returned status %d", symbol, resp.StatusCode)
	}

	var parsed realAssetResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return PriceResult{}, fmt.Errorf("failed to decode price response for %s: %w", symbol, err)
	}

	day := parsed.Data.Attributes.LastDay
	value := day.ClosePrice
	if day.NetAssetValue != nil && *day.NetAssetValue != 0 {
		value = *day.NetAssetValue
	}
	if value <= 0 {
		return PriceResult{}, fmt.Errorf("no usable price for %s", symbol)
	}

	return PriceResult{
		Price: decimal.NewFromFloat(value),
		Date:  day.Date,
	}, nil
}

// FetchPrices fetches prices for all known symbols.
// On any failure it returns the full fallback table and an empty date, so
// callers always get a complete price set.
func (c *Client) FetchPrices() (map[string]decimal.Decimal, string) {
	prices := make(map[string]decimal.Decimal, len(assets))
	var lastDate string

	for _, symbol := range Symbols() {
		result, err := c.FetchPrice(symbol)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Price fetch failed, using fallback prices")
			return FallbackPrices(), ""
		}
		prices[symbol] = result.Price
		lastDate = result.Date
	}

	return prices, lastDate
}
