package scheduler

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PriceFetcher fetches the latest price per symbol.
// The returned date is empty when fallback prices were substituted.
type PriceFetcher interface {
	FetchPrices() (map[string]decimal.Decimal, string)
}

// PriceStore persists fetched prices
type PriceStore interface {
	UpsertPrice(symbol string, price decimal.Decimal, source string) error
}

// PriceRefreshJob pulls current prices and stores them for snapshots
type PriceRefreshJob struct {
	fetcher PriceFetcher
	store   PriceStore
	log     zerolog.Logger
}

// NewPriceRefreshJob creates a new price refresh job
func NewPriceRefreshJob(fetcher PriceFetcher, store PriceStore, log zerolog.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		fetcher: fetcher,
		store:   store,
		log:     log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Run fetches and stores prices for all known symbols.
// Fallback prices are stored too so a fresh database is never priceless,
// tagged with their source so stale data is visible.
func (j *PriceRefreshJob) Run() error {
	prices, date := j.fetcher.FetchPrices()

	source := "fintual"
	if date == "" {
		source = "fallback"
	}

	stored := 0
	for symbol, price := range prices {
		if err := j.store.UpsertPrice(symbol, price, source); err != nil {
			j.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to store price")
			continue
		}
		stored++
	}

	j.log.Info().
		Int("stored", stored).
		Str("source", source).
		Str("date", date).
		Msg("Price refresh complete")

	return nil
}
