// Package rebalancing computes the whole-share orders that move a portfolio
// toward its target allocation. Three interchangeable strategies implement
// one contract: the floor-division Simple strategy, and two integer-program
// strategies (tracking error, trade minimization) that degrade to Simple
// when the solver fails.
package rebalancing

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/solver"
)

// StrategyName identifies a rebalancing strategy.
type StrategyName string

const (
	StrategySimple            StrategyName = "simple"
	StrategyTrackingError     StrategyName = "tracking_error"
	StrategyTradeMinimization StrategyName = "trade_minimization"
)

// ErrUnknownStrategy is returned when a strategy name matches nothing.
var ErrUnknownStrategy = fmt.Errorf("unknown strategy")

// Strategies lists the selectable strategy names.
func Strategies() []StrategyName {
	return []StrategyName{StrategySimple, StrategyTrackingError, StrategyTradeMinimization}
}

// Strategy turns an immutable portfolio snapshot into an ordered list of
// rebalance orders. Implementations are pure: they never mutate the
// portfolio and return freshly allocated slices.
type Strategy interface {
	Name() StrategyName
	Compute(p *domain.Portfolio) ([]domain.RebalanceOrder, error)
}

// symbolData is the per-symbol numeric view the optimization strategies
// share: target symbols in sorted order with prices and held quantities.
type symbolData struct {
	symbols []string
	prices  []decimal.Decimal
	held    []int64
}

// collectSymbolData gathers prices and holdings for every target symbol.
// A target symbol with no holding and no lookup price is an error: sizing
// a buy without a price would silently under-invest.
func collectSymbolData(p *domain.Portfolio) (*symbolData, error) {
	symbols := p.Target().Symbols()
	data := &symbolData{
		symbols: symbols,
		prices:  make([]decimal.Decimal, len(symbols)),
		held:    make([]int64, len(symbols)),
	}

	for i, symbol := range symbols {
		price, ok := p.PriceOf(symbol)
		if !ok {
			return nil, fmt.Errorf("%w: %s is in the target allocation but has no price", domain.ErrMissingPrice, symbol)
		}
		data.prices[i] = price
		if stock, held := p.Holding(symbol); held {
			data.held[i] = stock.Quantity
		}
	}
	return data, nil
}

// integralityTol bounds how far a solved share count may sit from a whole
// number before the solution is rejected.
const integralityTol = 1e-6

// finalShares snaps the solved share variables to whole numbers. A value
// that is not integral within tolerance fails as a numerical solver error,
// so the caller's fallback path handles it.
func finalShares(solution *solver.Solution, shares []solver.VarID) ([]int64, error) {
	final := make([]int64, len(shares))
	for i, id := range shares {
		value := solution.Values[id]
		rounded := math.Round(value)
		if math.Abs(value-rounded) > integralityTol {
			return nil, fmt.Errorf("%w: share count %v is not integral", solver.ErrNumerical, value)
		}
		final[i] = int64(rounded)
	}
	return final, nil
}

// liquidationOrders sells every holding absent from the target allocation
// in full. Liquidation is exact, so target and deviation are both zero.
func liquidationOrders(p *domain.Portfolio) []domain.RebalanceOrder {
	var orders []domain.RebalanceOrder
	for _, stock := range p.Holdings() {
		if p.Target().Has(stock.Symbol) || stock.Quantity == 0 {
			continue
		}
		orders = append(orders, domain.RebalanceOrder{
			Action:           domain.ActionSell,
			Symbol:           stock.Symbol,
			Shares:           stock.Quantity,
			DollarAmount:     stock.MarketValue(),
			TargetDollars:    decimal.Zero,
			DeviationDollars: decimal.Zero,
		})
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].Symbol < orders[j].Symbol })
	return orders
}

// ordersFromFinalShares converts a solved final-shares vector into orders.
// targetValues[i] is the ideal dollar allocation w_i * V the solver was
// tracking; the deviation is how far the whole-share result lands from it.
func ordersFromFinalShares(data *symbolData, final []int64, targetValues []decimal.Decimal) []domain.RebalanceOrder {
	var orders []domain.RebalanceOrder
	for i, symbol := range data.symbols {
		traded := final[i] - data.held[i]
		if traded == 0 {
			continue
		}

		action := domain.ActionBuy
		if traded < 0 {
			action = domain.ActionSell
			traded = -traded
		}

		price := data.prices[i]
		finalValue := decimal.NewFromInt(final[i]).Mul(price)
		orders = append(orders, domain.RebalanceOrder{
			Action:           action,
			Symbol:           symbol,
			Shares:           traded,
			DollarAmount:     decimal.NewFromInt(traded).Mul(price),
			TargetDollars:    targetValues[i],
			DeviationDollars: targetValues[i].Sub(finalValue).Abs(),
		})
	}
	return orders
}
