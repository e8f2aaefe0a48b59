package rebalancing

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/solver"
)

// TrackingErrorStrategy minimizes the total absolute dollar deviation from
// the ideal target allocation, as an integer linear program.
//
// Mathematical formulation:
//
// Let:
//   - x[i] = final whole shares of symbol i (decision variable)
//   - p[i] = price per share of symbol i
//   - w[i] = target weight of symbol i
//   - V    = total portfolio value
//   - T[i] = w[i] * V = ideal dollar allocation for symbol i
//
// Decision variables:
//   - x[i]  >= 0, integer (no shorting)
//   - e+[i] >= 0          (under-allocation)
//   - e-[i] >= 0          (over-allocation)
//
// Objective:
//
//	minimize sum_i (e+[i] + e-[i])
//
// Subject to:
//
//	p[i]*x[i] - e+[i] + e-[i] = T[i]      (deviation balance)
//	sum_i p[i]*x[i] <= V + sum_i p[i]     (budget, one share of headroom
//	                                       per symbol)
//
// The budget row keeps the problem bounded; without it the objective is
// free to buy everything. The headroom admits every whole-share point that
// floor division can reach: a floored sell leaves a position at most one
// share above its target value, so the optimum here is never worse than
// the Simple strategy's result.
type TrackingErrorStrategy struct {
	solver solver.Solver
	log    zerolog.Logger
}

// NewTrackingErrorStrategy creates a tracking-error strategy backed by the
// given solver.
func NewTrackingErrorStrategy(slv solver.Solver, log zerolog.Logger) *TrackingErrorStrategy {
	return &TrackingErrorStrategy{
		solver: slv,
		log:    log.With().Str("strategy", string(StrategyTrackingError)).Logger(),
	}
}

// Name returns the strategy identifier.
func (s *TrackingErrorStrategy) Name() StrategyName {
	return StrategyTrackingError
}

// Compute solves the integer program and converts the optimal final-shares
// vector into orders. Solver failures are returned to the caller, which is
// expected to fall back to the Simple strategy.
func (s *TrackingErrorStrategy) Compute(p *domain.Portfolio) ([]domain.RebalanceOrder, error) {
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
	targetValues := make([]decimal.Decimal, n)
	for i, symbol := range data.symbols {
		weight, _ := p.Target().Weight(symbol)
		targetValues[i] = total.Mul(weight)
	}

	problem := solver.NewProblem()
	shares := make([]solver.VarID, n)
	objective := make(map[solver.VarID]float64, 2*n)
	budget := make(map[solver.VarID]float64, n)

	for i, symbol := range data.symbols {
		price := data.prices[i].InexactFloat64()

		x, err := problem.AddVariable("x_"+symbol, 0, math.Inf(1), true)
		if err != nil {
			return nil, err
		}
		ePlus, err := problem.AddVariable("e+_"+symbol, 0, math.Inf(1), false)
		if err != nil {
			return nil, err
		}
		eMinus, err := problem.AddVariable("e-_"+symbol, 0, math.Inf(1), false)
		if err != nil {
			return nil, err
		}

		shares[i] = x
		objective[ePlus] = 1
		objective[eMinus] = 1
		budget[x] = price

		tv := targetValues[i].InexactFloat64()
		problem.AddConstraint(map[solver.VarID]float64{x: price, ePlus: -1, eMinus: 1}, tv, tv)
	}

	headroom := decimal.Zero
	for _, price := range data.prices {
		headroom = headroom.Add(price)
	}
	problem.AddConstraint(budget, math.Inf(-1), total.Add(headroom).InexactFloat64())
	problem.SetObjective(objective)

	solution, err := s.solver.Solve(problem)
	if err != nil {
		return nil, fmt.Errorf("tracking error optimization: %w", err)
	}

	final, err := finalShares(solution, shares)
	if err != nil {
		return nil, fmt.Errorf("tracking error optimization: %w", err)
	}

	s.log.Debug().Float64("objective", solution.Objective).Msg("optimization solved")
	orders := ordersFromFinalShares(data, final, targetValues)
	return append(orders, liquidationOrders(p)...), nil
}
