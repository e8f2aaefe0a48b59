package rebalancing

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/solver"
)

// Tolerance band limits. The band is a per-symbol allowance around the
// target weight; outside 1%-3% the band is either uselessly tight for
// whole-share trading or loose enough to make the strategy a no-op.
var (
	DefaultTolerance = decimal.NewFromFloat(0.02)
	MinTolerance     = decimal.NewFromFloat(0.01)
	MaxTolerance     = decimal.NewFromFloat(0.03)
)

// TradeMinimizationStrategy minimizes the total number of shares traded
// while keeping every symbol's post-trade allocation inside a tolerance
// band around its target weight.
//
// Mathematical formulation:
//
// Let:
//   - x[i]  = final whole shares of symbol i
//   - h[i]  = currently held shares of symbol i
//   - p[i]  = price per share of symbol i
//   - w[i]  = target weight of symbol i
//   - V     = total portfolio value
//   - tol   = tolerance around target weights
//   - C     = extra cash injected into the budget
//
// Decision variables:
//   - x[i]  >= 0, integer         (final shares, no shorting)
//   - t+[i] >= 0, integer         (shares bought)
//   - t-[i] in [0, h[i]], integer (shares sold)
//
// Objective:
//
//	minimize sum_i (t+[i] + t-[i])
//
// Subject to:
//
//	x[i] = h[i] + t+[i] - t-[i]                      (trade balance)
//	max((w[i]-tol)*V, 0) <= p[i]*x[i] <= (w[i]+tol)*V (tolerance band)
//	sum_i p[i]*x[i] <= V + C                          (budget)
//
// Any feasible point inside the band is acceptable; the objective only
// ranks feasible points by total shares traded.
type TradeMinimizationStrategy struct {
	solver    solver.Solver
	tolerance decimal.Decimal
	extraCash decimal.Decimal
	log       zerolog.Logger
}

// NewTradeMinimizationStrategy creates a trade-minimization strategy. A
// zero tolerance selects the +-2% default; values outside 1%-3% are
// rejected. Extra cash widens the budget and must be non-negative.
func NewTradeMinimizationStrategy(slv solver.Solver, tolerance, extraCash decimal.Decimal, log zerolog.Logger) (*TradeMinimizationStrategy, error) {
	if tolerance.IsZero() {
		tolerance = DefaultTolerance
	}
	if tolerance.LessThan(MinTolerance) || tolerance.GreaterThan(MaxTolerance) {
		return nil, fmt.Errorf("%w: %s is outside [%s, %s]",
			domain.ErrInvalidTolerance, tolerance, MinTolerance, MaxTolerance)
	}
	if extraCash.IsNegative() {
		return nil, fmt.Errorf("%w: extra cash %s is negative", domain.ErrInvalidTolerance, extraCash)
	}

	return &TradeMinimizationStrategy{
		solver:    slv,
		tolerance: tolerance,
		extraCash: extraCash,
		log:       log.With().Str("strategy", string(StrategyTradeMinimization)).Logger(),
	}, nil
}

// Name returns the strategy identifier.
func (s *TradeMinimizationStrategy) Name() StrategyName {
	return StrategyTradeMinimization
}

// Tolerance returns the configured band width.
func (s *TradeMinimizationStrategy) Tolerance() decimal.Decimal {
	return s.tolerance
}

// Compute solves the integer program and converts the optimal final-shares
// vector into orders. A band too narrow for whole shares makes the problem
// infeasible; that failure is returned for the caller to fall back on.
func (s *TradeMinimizationStrategy) Compute(p *domain.Portfolio) ([]domain.RebalanceOrder, error) {
	if p.Target().Len() == 0 {
		return nil, fmt.Errorf("%w: no target allocation set", domain.ErrInvalidAllocation)
	}

	total := p.TotalValue()
	if total.IsZero() {
		return nil, nil
	}

	data, err := collectSymbolData(p)
	if err != nil {
		return nil, err
	}

	n := len(data.symbols)
	totalF := total.InexactFloat64()
	tolF := s.tolerance.InexactFloat64()

	targetValues := make([]decimal.Decimal, n)
	problem := solver.NewProblem()
	shares := make([]solver.VarID, n)
	objective := make(map[solver.VarID]float64, 2*n)
	budget := make(map[solver.VarID]float64, n)

	for i, symbol := range data.symbols {
		weight, _ := p.Target().Weight(symbol)
		targetValues[i] = total.Mul(weight)

		price := data.prices[i].InexactFloat64()
		held := float64(data.held[i])

		x, err := problem.AddVariable("x_"+symbol, 0, math.Inf(1), true)
		if err != nil {
			return nil, err
		}
		bought, err := problem.AddVariable("t+_"+symbol, 0, math.Inf(1), true)
		if err != nil {
			return nil, err
		}
		sold, err := problem.AddVariable("t-_"+symbol, 0, held, true)
		if err != nil {
			return nil, err
		}

		shares[i] = x
		objective[bought] = 1
		objective[sold] = 1
		budget[x] = price

		// Trade balance: x - t+ + t- = h.
		problem.AddConstraint(map[solver.VarID]float64{x: 1, bought: -1, sold: 1}, held, held)

		// Tolerance band on the post-trade dollar value.
		w := weight.InexactFloat64()
		lower := math.Max((w-tolF)*totalF, 0)
		upper := (w + tolF) * totalF
		problem.AddConstraint(map[solver.VarID]float64{x: price}, lower, upper)
	}

	problem.AddConstraint(budget, math.Inf(-1), total.Add(s.extraCash).InexactFloat64())
	problem.SetObjective(objective)

	solution, err := s.solver.Solve(problem)
	if err != nil {
		return nil, fmt.Errorf("trade minimization optimization: %w", err)
	}

	final, err := finalShares(solution, shares)
	if err != nil {
		return nil, fmt.Errorf("trade minimization optimization: %w", err)
	}

	s.log.Debug().Float64("shares_traded", solution.Objective).Msg("optimization solved")
	orders := ordersFromFinalShares(data, final, targetValues)
	return append(orders, liquidationOrders(p)...), nil
}
