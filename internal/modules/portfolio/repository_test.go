package portfolio

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/rebalancer/internal/domain"
)

func setupTestRepo(t *testing.T) *Repository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.EnsureSchema())
	return repo
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRepository_ReplaceAndListPositions(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.ReplacePositions([]Position{
		{Symbol: "META", Quantity: 5},
		{Symbol: "AAPL", Quantity: 10},
		{Symbol: "BND", Quantity: 0}, // dropped
	})
	require.NoError(t, err)

	positions, err := repo.ListPositions()
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, int64(10), positions[0].Quantity)
	assert.Equal(t, "META", positions[1].Symbol)
}

func TestRepository_ReplaceClearsPrevious(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.ReplacePositions([]Position{{Symbol: "META", Quantity: 5}}))
	require.NoError(t, repo.ReplacePositions([]Position{{Symbol: "AAPL", Quantity: 3}}))

	positions, err := repo.ListPositions()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)
}

func TestRepository_ReplaceRejectsNegativeQuantity(t *testing.T) {
	repo := setupTestRepo(t)

	err := repo.ReplacePositions([]Position{{Symbol: "META", Quantity: -1}})
	require.Error(t, err)

	// Failed replace must not clear existing data
	require.NoError(t, repo.ReplacePositions([]Position{{Symbol: "AAPL", Quantity: 3}}))
	err = repo.ReplacePositions([]Position{{Symbol: "META", Quantity: -1}})
	require.Error(t, err)
	positions, err := repo.ListPositions()
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestRepository_PriceRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.UpsertPrice("AAPL", d("185.37"), "fintual"))

	quote, err := repo.GetQuote("AAPL")
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.True(t, quote.Price.Equal(d("185.37")))
	assert.Equal(t, "fintual", quote.Source)

	// Upsert replaces
	require.NoError(t, repo.UpsertPrice("AAPL", d("190.00"), "manual"))
	quote, err = repo.GetQuote("AAPL")
	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(d("190")))
	assert.Equal(t, "manual", quote.Source)
}

func TestRepository_PriceRejectsNonPositive(t *testing.T) {
	repo := setupTestRepo(t)

	assert.Error(t, repo.UpsertPrice("AAPL", d("0"), "manual"))
	assert.Error(t, repo.UpsertPrice("AAPL", d("-5"), "manual"))
}

func TestRepository_GetQuoteMissing(t *testing.T) {
	repo := setupTestRepo(t)

	quote, err := repo.GetQuote("NOPE")
	require.NoError(t, err)
	assert.Nil(t, quote)
}

func TestService_Snapshot(t *testing.T) {
	repo := setupTestRepo(t)
	svc := NewService(repo, zerolog.Nop())

	require.NoError(t, repo.ReplacePositions([]Position{
		{Symbol: "META", Quantity: 5},
		{Symbol: "AAPL", Quantity: 10},
	}))
	require.NoError(t, repo.UpsertPrice("META", d("580"), "manual"))
	require.NoError(t, repo.UpsertPrice("AAPL", d("185"), "manual"))
	require.NoError(t, repo.UpsertPrice("BND", d("73.90"), "manual"))

	target, err := domain.NewTargetAllocation(map[string]decimal.Decimal{
		"AAPL": d("0.6"),
		"BND":  d("0.4"),
	})
	require.NoError(t, err)

	p, err := svc.Snapshot(target)
	require.NoError(t, err)
	assert.True(t, p.TotalValue().Equal(d("4750"))) // 5*580 + 10*185

	// The untargeted holding keeps its price; the unheld target symbol
	// gets one from the price table
	price, ok := p.PriceOf("BND")
	require.True(t, ok)
	assert.True(t, price.Equal(d("73.90")))
}

func TestService_SnapshotMissingPrice(t *testing.T) {
	repo := setupTestRepo(t)
	svc := NewService(repo, zerolog.Nop())

	require.NoError(t, repo.ReplacePositions([]Position{{Symbol: "META", Quantity: 5}}))

	target, err := domain.NewTargetAllocation(map[string]decimal.Decimal{
		"META": d("1.0"),
	})
	require.NoError(t, err)

	_, err = svc.Snapshot(target)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingPrice)
}
