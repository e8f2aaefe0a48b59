package rebalancing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aristath/rebalancer/internal/domain"
)

// SimpleStrategy rebalances with floor division: for each target symbol it
// computes the dollar gap to the ideal allocation and trades as many whole
// shares as fit inside that gap. It needs no solver and never fails for a
// well-formed portfolio, which makes it the universal fallback for the
// optimization strategies.
type SimpleStrategy struct{}

// NewSimpleStrategy creates the floor-division strategy.
func NewSimpleStrategy() *SimpleStrategy {
	return &SimpleStrategy{}
}

// Name returns the strategy identifier.
func (s *SimpleStrategy) Name() StrategyName {
	return StrategySimple
}

// Compute produces one order per target symbol whose dollar gap covers at
// least one share, plus full liquidations for holdings outside the target.
func (s *SimpleStrategy) Compute(p *domain.Portfolio) ([]domain.RebalanceOrder, error) {
	if p.Target().Len() == 0 {
		return nil, fmt.Errorf("%w: no target allocation set", domain.ErrInvalidAllocation)
	}

	total := p.TotalValue()
	if total.IsZero() {
		return nil, nil
	}

	var orders []domain.RebalanceOrder
	for _, symbol := range p.Target().Symbols() {
		weight, _ := p.Target().Weight(symbol)
		targetValue := total.Mul(weight)

		currentValue := decimal.Zero
		if stock, held := p.Holding(symbol); held {
			currentValue = stock.MarketValue()
		}

		price, ok := p.PriceOf(symbol)
		if !ok {
			return nil, fmt.Errorf("%w: %s is in the target allocation but has no price", domain.ErrMissingPrice, symbol)
		}

		delta := targetValue.Sub(currentValue)
		if delta.IsZero() {
			continue // already at target
		}

		shares := delta.Abs().Div(price).Floor().IntPart()
		if shares == 0 {
			continue // the gap is smaller than one share's value
		}

		action := domain.ActionBuy
		if delta.IsNegative() {
			action = domain.ActionSell
		}

		amount := decimal.NewFromInt(shares).Mul(price)
		orders = append(orders, domain.RebalanceOrder{
			Action:           action,
			Symbol:           symbol,
			Shares:           shares,
			DollarAmount:     amount,
			TargetDollars:    delta.Abs(),
			DeviationDollars: delta.Abs().Sub(amount),
		})
	}

	return append(orders, liquidationOrders(p)...), nil
}
