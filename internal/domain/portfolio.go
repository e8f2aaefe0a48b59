package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Portfolio is an immutable snapshot of holdings plus a target allocation.
// The price lookup supplies prices for target symbols that are not held,
// so buy orders for new positions can be sized.
type Portfolio struct {
	holdings map[string]Stock
	target   TargetAllocation
	prices   map[string]decimal.Decimal
}

// NewPortfolio creates a portfolio snapshot. The target allocation must
// already be valid (see NewTargetAllocation); holdings are keyed by symbol
// with later duplicates rejected.
func NewPortfolio(holdings []Stock, target TargetAllocation, prices map[string]decimal.Decimal) (*Portfolio, error) {
	if target.Len() == 0 {
		return nil, fmt.Errorf("%w: no target allocation set", ErrInvalidAllocation)
	}

	held := make(map[string]Stock, len(holdings))
	for _, stock := range holdings {
		if _, dup := held[stock.Symbol]; dup {
			return nil, fmt.Errorf("%w: duplicate holding %s", ErrInvalidStock, stock.Symbol)
		}
		held[stock.Symbol] = stock
	}

	lookup := make(map[string]decimal.Decimal, len(prices))
	for symbol, price := range prices {
		if !price.IsPositive() {
			return nil, fmt.Errorf("%w: lookup price for %s is %s", ErrInvalidStock, symbol, price)
		}
		lookup[symbol] = price
	}

	return &Portfolio{holdings: held, target: target, prices: lookup}, nil
}

// Target returns the portfolio's target allocation.
func (p *Portfolio) Target() TargetAllocation {
	return p.target
}

// Holding returns the stock held for a symbol and whether it is held.
func (p *Portfolio) Holding(symbol string) (Stock, bool) {
	stock, ok := p.holdings[symbol]
	return stock, ok
}

// Holdings returns the held stocks sorted by symbol.
func (p *Portfolio) Holdings() []Stock {
	stocks := make([]Stock, 0, len(p.holdings))
	for _, stock := range p.holdings {
		stocks = append(stocks, stock)
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].Symbol < stocks[j].Symbol })
	return stocks
}

// TotalValue returns the sum of all holdings' market values.
func (p *Portfolio) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, stock := range p.holdings {
		total = total.Add(stock.MarketValue())
	}
	return total
}

// CurrentAllocation returns each held symbol's fraction of total value.
// When total value is zero every fraction is zero; an empty portfolio is
// defined behavior, not an error.
func (p *Portfolio) CurrentAllocation() map[string]decimal.Decimal {
	allocation := make(map[string]decimal.Decimal, len(p.holdings))
	total := p.TotalValue()

	for symbol, stock := range p.holdings {
		if total.IsZero() {
			allocation[symbol] = decimal.Zero
			continue
		}
		allocation[symbol] = stock.MarketValue().Div(total)
	}
	return allocation
}

// PriceOf returns the price for a symbol, preferring the held stock's
// price over the lookup table.
func (p *Portfolio) PriceOf(symbol string) (decimal.Decimal, bool) {
	if stock, ok := p.holdings[symbol]; ok {
		return stock.Price, true
	}
	price, ok := p.prices[symbol]
	return price, ok
}

// Apply produces the projected portfolio after executing the given orders.
// The receiver is not modified. Symbols traded down to zero shares are
// removed from the projection.
func (p *Portfolio) Apply(orders []RebalanceOrder) (*Portfolio, error) {
	quantities := make(map[string]int64, len(p.holdings))
	prices := make(map[string]decimal.Decimal, len(p.holdings))
	for symbol, stock := range p.holdings {
		quantities[symbol] = stock.Quantity
		prices[symbol] = stock.Price
	}

	for _, order := range orders {
		if _, ok := prices[order.Symbol]; !ok {
			price, ok := p.prices[order.Symbol]
			if !ok {
				if order.Shares == 0 {
					return nil, fmt.Errorf("%w: order for %s has zero shares", ErrInvalidStock, order.Symbol)
				}
				// Recover the price from the order itself.
				price = order.DollarAmount.Div(decimal.NewFromInt(order.Shares))
			}
			prices[order.Symbol] = price
		}
		quantities[order.Symbol] += order.SignedShares()
	}

	holdings := make([]Stock, 0, len(quantities))
	for symbol, quantity := range quantities {
		if quantity < 0 {
			return nil, fmt.Errorf("%w: applying orders leaves %s at %d shares", ErrInvalidStock, symbol, quantity)
		}
		if quantity == 0 {
			continue
		}
		stock, err := NewStock(symbol, quantity, prices[symbol])
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, stock)
	}

	return NewPortfolio(holdings, p.target, p.prices)
}
