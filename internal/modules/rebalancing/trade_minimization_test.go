package rebalancing

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/solver"
)

func newTradeMin(t *testing.T, tolerance, extraCash string) *TradeMinimizationStrategy {
	t.Helper()
	strategy, err := NewTradeMinimizationStrategy(newSolver(), d(tolerance), d(extraCash), zerolog.Nop())
	require.NoError(t, err)
	return strategy
}

// assertWithinBand checks that every post-trade allocation fraction
// (relative to the pre-trade total value) lies within the band.
func assertWithinBand(t *testing.T, p *domain.Portfolio, orders []domain.RebalanceOrder, tolerance decimal.Decimal) {
	t.Helper()

	projected, err := p.Apply(orders)
	require.NoError(t, err)
	total := p.TotalValue()

	for _, symbol := range p.Target().Symbols() {
		weight, _ := p.Target().Weight(symbol)

		value := decimal.Zero
		if stock, held := projected.Holding(symbol); held {
			value = stock.MarketValue()
		}
		fraction := value.Div(total)
		drift := fraction.Sub(weight).Abs()
		assert.True(t, drift.LessThanOrEqual(tolerance),
			"%s drift %s exceeds tolerance %s", symbol, drift, tolerance)
	}
}

func TestTradeMinimization_DriftedPortfolio(t *testing.T) {
	// 75/25 drift against a 50/50 target with a +-2% band: both symbols
	// must land on exactly $1,000 of a $2,000 portfolio.
	portfolio := portfolioOf(t,
		map[string]holding{
			"AAPL": {qty: 15, price: "100"},
			"META": {qty: 5, price: "100"},
		},
		map[string]string{"AAPL": "0.5", "META": "0.5"},
		nil,
	)

	strategy := newTradeMin(t, "0.02", "0")
	orders, err := strategy.Compute(portfolio)
	require.NoError(t, err)

	bySymbol := ordersBySymbol(orders)
	require.Contains(t, bySymbol, "AAPL")
	require.Contains(t, bySymbol, "META")
	assert.Equal(t, domain.ActionSell, bySymbol["AAPL"].Action)
	assert.Equal(t, int64(5), bySymbol["AAPL"].Shares)
	assert.Equal(t, domain.ActionBuy, bySymbol["META"].Action)
	assert.Equal(t, int64(5), bySymbol["META"].Shares)

	assertWithinBand(t, portfolio, orders, strategy.Tolerance())
}

func TestTradeMinimization_WithinBandIsNoOp(t *testing.T) {
	// 51/49 against 50/50 with a +-2% band: already acceptable, and the
	// objective prefers zero trades.
	portfolio := portfolioOf(t,
		map[string]holding{
			"AAPL": {qty: 51, price: "100"},
			"META": {qty: 49, price: "100"},
		},
		map[string]string{"AAPL": "0.5", "META": "0.5"},
		nil,
	)

	orders, err := newTradeMin(t, "0.02", "0").Compute(portfolio)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestTradeMinimization_InfeasibleBand(t *testing.T) {
	// META at $260 has no whole-share value inside the band, so the
	// problem is infeasible and the failure surfaces as a solver error.
	portfolio := portfolioOf(t,
		map[string]holding{
			"AAPL": {qty: 10, price: "100"},
			"META": {qty: 2, price: "260"},
		},
		map[string]string{"AAPL": "0.5", "META": "0.5"},
		nil,
	)

	_, err := newTradeMin(t, "0.03", "0").Compute(portfolio)
	assert.ErrorIs(t, err, solver.ErrInfeasible)
}

func TestTradeMinimization_ExtraCashUnlocksFeasibility(t *testing.T) {
	// Same portfolio as above: the band needs AAPL at 8 shares ($800)
	// and META at 3 shares ($780), which exceeds the $1,520 liquidation
	// budget by $60. Injecting $100 makes it feasible.
	portfolio := portfolioOf(t,
		map[string]holding{
			"AAPL": {qty: 10, price: "100"},
			"META": {qty: 2, price: "260"},
		},
		map[string]string{"AAPL": "0.5", "META": "0.5"},
		nil,
	)

	strategy := newTradeMin(t, "0.03", "100")
	orders, err := strategy.Compute(portfolio)
	require.NoError(t, err)

	bySymbol := ordersBySymbol(orders)
	require.Contains(t, bySymbol, "AAPL")
	require.Contains(t, bySymbol, "META")
	assert.Equal(t, domain.ActionSell, bySymbol["AAPL"].Action)
	assert.Equal(t, int64(2), bySymbol["AAPL"].Shares)
	assert.Equal(t, domain.ActionBuy, bySymbol["META"].Action)
	assert.Equal(t, int64(1), bySymbol["META"].Shares)

	assertWithinBand(t, portfolio, orders, strategy.Tolerance())
}

func TestTradeMinimization_LiquidatesUntargetedHoldings(t *testing.T) {
	portfolio := portfolioOf(t,
		map[string]holding{
			"AAPL": {qty: 10, price: "100"},
			"XYZ":  {qty: 4, price: "25"},
		},
		map[string]string{"AAPL": "1"},
		nil,
	)

	orders, err := newTradeMin(t, "0.02", "0").Compute(portfolio)
	require.NoError(t, err)

	bySymbol := ordersBySymbol(orders)
	require.Contains(t, bySymbol, "XYZ")
	assert.Equal(t, domain.ActionSell, bySymbol["XYZ"].Action)
	assert.Equal(t, int64(4), bySymbol["XYZ"].Shares)
}

func TestTradeMinimization_ToleranceValidation(t *testing.T) {
	tests := []struct {
		name      string
		tolerance string
		extraCash string
		wantErr   bool
	}{
		{"default via zero", "0", "0", false},
		{"lower bound", "0.01", "0", false},
		{"upper bound", "0.03", "0", false},
		{"too tight", "0.005", "0", true},
		{"too loose", "0.05", "0", true},
		{"negative extra cash", "0.02", "-1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy, err := NewTradeMinimizationStrategy(newSolver(), d(tt.tolerance), d(tt.extraCash), zerolog.Nop())
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidTolerance)
				return
			}
			require.NoError(t, err)
			if tt.tolerance == "0" {
				assert.True(t, strategy.Tolerance().Equal(DefaultTolerance))
			}
		})
	}
}

func TestTradeMinimization_EmptyPortfolio(t *testing.T) {
	portfolio := portfolioOf(t,
		map[string]holding{},
		map[string]string{"AAPL": "1"},
		map[string]string{"AAPL": "185"},
	)

	orders, err := newTradeMin(t, "0.02", "0").Compute(portfolio)
	require.NoError(t, err)
	assert.Empty(t, orders)
}
