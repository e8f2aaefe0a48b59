package rebalancing

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/solver"
)

// Options selects and configures a strategy for one rebalance call.
type Options struct {
	Strategy StrategyName
	// Tolerance is the trade-minimization band width; zero selects the
	// +-2% default. Ignored by the other strategies.
	Tolerance decimal.Decimal
	// ExtraCash widens the trade-minimization budget. Ignored by the
	// other strategies.
	ExtraCash decimal.Decimal
}

// Result is the outcome of a rebalance computation. UsedFallback marks
// runs where the optimization strategy failed and the Simple result was
// substituted; the substitution is never silent.
type Result struct {
	Strategy       StrategyName            `json:"strategy"`
	Orders         []domain.RebalanceOrder `json:"orders"`
	UsedFallback   bool                    `json:"used_fallback"`
	FallbackReason string                  `json:"fallback_reason,omitempty"`
	Projected      *domain.Portfolio       `json:"-"`
}

// Service dispatches rebalance calls to the selected strategy and owns the
// fallback contract: a solver-layer failure from an optimization strategy
// is caught, classified and replaced with the Simple strategy's result.
// Solver failures never propagate as fatal errors.
type Service struct {
	solver solver.Solver
	log    zerolog.Logger
}

// NewService creates a rebalancing service backed by the given solver.
func NewService(slv solver.Solver, log zerolog.Logger) *Service {
	return &Service{
		solver: slv,
		log:    log.With().Str("service", "rebalancing").Logger(),
	}
}

// Rebalance runs the selected strategy over the portfolio snapshot and
// returns the orders plus the projected post-trade portfolio.
func (s *Service) Rebalance(p *domain.Portfolio, opts Options) (*Result, error) {
	strategy, err := s.buildStrategy(opts)
	if err != nil {
		return nil, err
	}

	result := &Result{Strategy: strategy.Name()}

	orders, err := strategy.Compute(p)
	if err != nil {
		if !isSolverFailure(err) {
			return nil, err
		}

		s.log.Warn().
			Str("strategy", string(strategy.Name())).
			Err(err).
			Msg("optimization failed, falling back to simple strategy")

		orders, fallbackErr := NewSimpleStrategy().Compute(p)
		if fallbackErr != nil {
			return nil, fallbackErr
		}
		result.Orders = orders
		result.UsedFallback = true
		result.FallbackReason = err.Error()
	} else {
		result.Orders = orders
	}

	projected, err := p.Apply(result.Orders)
	if err != nil {
		return nil, fmt.Errorf("projecting post-trade portfolio: %w", err)
	}
	result.Projected = projected

	s.log.Info().
		Str("strategy", string(result.Strategy)).
		Int("orders", len(result.Orders)).
		Bool("used_fallback", result.UsedFallback).
		Msg("rebalance computed")
	return result, nil
}

func (s *Service) buildStrategy(opts Options) (Strategy, error) {
	switch opts.Strategy {
	case StrategySimple, "":
		return NewSimpleStrategy(), nil
	case StrategyTrackingError:
		return NewTrackingErrorStrategy(s.solver, s.log), nil
	case StrategyTradeMinimization:
		return NewTradeMinimizationStrategy(s.solver, opts.Tolerance, opts.ExtraCash, s.log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, opts.Strategy)
	}
}

// isSolverFailure reports whether the error comes from the solver layer
// (infeasible, unbounded, numerical trouble or an exhausted node budget).
// Domain errors such as a missing price are not solver failures and must
// propagate.
func isSolverFailure(err error) bool {
	return errors.Is(err, solver.ErrInfeasible) ||
		errors.Is(err, solver.ErrUnbounded) ||
		errors.Is(err, solver.ErrNumerical) ||
		errors.Is(err, solver.ErrNodeLimit)
}
