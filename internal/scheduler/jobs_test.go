package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	prices map[string]decimal.Decimal
	date   string
}

func (s stubFetcher) FetchPrices() (map[string]decimal.Decimal, string) {
	return s.prices, s.date
}

type recordingStore struct {
	stored  map[string]decimal.Decimal
	sources map[string]string
	failOn  string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		stored:  make(map[string]decimal.Decimal),
		sources: make(map[string]string),
	}
}

func (r *recordingStore) UpsertPrice(symbol string, price decimal.Decimal, source string) error {
	if symbol == r.failOn {
		return fmt.Errorf("store failure for %s", symbol)
	}
	r.stored[symbol] = price
	r.sources[symbol] = source
	return nil
}

func TestPriceRefreshJob_StoresFreshPrices(t *testing.T) {
	fetcher := stubFetcher{
		prices: map[string]decimal.Decimal{
			"BND": decimal.RequireFromString("73.91"),
			"TIP": decimal.RequireFromString("110.30"),
		},
		date: "2026-08-25",
	}
	store := newRecordingStore()

	job := NewPriceRefreshJob(fetcher, store, zerolog.Nop())
	require.NoError(t, job.Run())

	assert.Len(t, store.stored, 2)
	assert.Equal(t, "fintual", store.sources["BND"])
}

func TestPriceRefreshJob_TagsFallbackSource(t *testing.T) {
	fetcher := stubFetcher{
		prices: map[string]decimal.Decimal{"BND": decimal.RequireFromString("73.90")},
		date:   "",
	}
	store := newRecordingStore()

	job := NewPriceRefreshJob(fetcher, store, zerolog.Nop())
	require.NoError(t, job.Run())

	assert.Equal(t, "fallback", store.sources["BND"])
}

func TestPriceRefreshJob_ContinuesPastStoreFailure(t *testing.T) {
	fetcher := stubFetcher{
		prices: map[string]decimal.Decimal{
			"BND": decimal.RequireFromString("73.91"),
			"TIP": decimal.RequireFromString("110.30"),
		},
		date: "2026-08-25",
	}
	store := newRecordingStore()
	store.failOn = "BND"

	job := NewPriceRefreshJob(fetcher, store, zerolog.Nop())
	require.NoError(t, job.Run())

	assert.Len(t, store.stored, 1)
	assert.Contains(t, store.stored, "TIP")
}

type stubPruner struct {
	cutoff  time.Time
	removed int64
	err     error
}

func (s *stubPruner) Prune(olderThan time.Time) (int64, error) {
	s.cutoff = olderThan
	return s.removed, s.err
}

func TestHistoryPruneJob_UsesRetentionWindow(t *testing.T) {
	pruner := &stubPruner{removed: 3}
	job := NewHistoryPruneJob(pruner, 24*time.Hour, zerolog.Nop())

	require.NoError(t, job.Run())

	expected := time.Now().UTC().Add(-24 * time.Hour)
	assert.WithinDuration(t, expected, pruner.cutoff, time.Minute)
}

func TestHistoryPruneJob_DefaultRetention(t *testing.T) {
	pruner := &stubPruner{}
	job := NewHistoryPruneJob(pruner, 0, zerolog.Nop())

	require.NoError(t, job.Run())

	expected := time.Now().UTC().Add(-90 * 24 * time.Hour)
	assert.WithinDuration(t, expected, pruner.cutoff, time.Minute)
}

func TestHistoryPruneJob_PropagatesError(t *testing.T) {
	pruner := &stubPruner{err: fmt.Errorf("db locked")}
	job := NewHistoryPruneJob(pruner, time.Hour, zerolog.Nop())

	assert.Error(t, job.Run())
}

func TestScheduler_AddJobValidatesSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	job := NewHistoryPruneJob(&stubPruner{}, time.Hour, zerolog.Nop())

	assert.Error(t, s.AddJob("not a cron expression", job))
	assert.NoError(t, s.AddJob("0 0 3 * * *", job))
}

func TestScheduler_RunNowBypassesSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	pruner := &stubPruner{}
	job := NewHistoryPruneJob(pruner, time.Hour, zerolog.Nop())

	require.NoError(t, s.RunNow(job))
	assert.False(t, pruner.cutoff.IsZero())
}
