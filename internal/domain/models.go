// Package domain provides the core entities for the rebalancing computation:
// stocks, target allocations, portfolios and rebalance orders.
//
// All monetary values use shopspring/decimal - never float64 for money.
// Entities are immutable snapshots; strategies never mutate a portfolio,
// they return fresh order lists.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Action represents the side of a rebalance order
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Stock represents a holding with its current price
type Stock struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// NewStock validates and creates a stock holding.
// Quantity must be non-negative and price strictly positive.
func NewStock(symbol string, quantity int64, price decimal.Decimal) (Stock, error) {
	if symbol == "" {
		return Stock{}, fmt.Errorf("%w: empty symbol", ErrInvalidStock)
	}
	if quantity < 0 {
		return Stock{}, fmt.Errorf("%w: %s has negative quantity %d", ErrInvalidStock, symbol, quantity)
	}
	if !price.IsPositive() {
		return Stock{}, fmt.Errorf("%w: %s has non-positive price %s", ErrInvalidStock, symbol, price)
	}
	return Stock{Symbol: symbol, Quantity: quantity, Price: price}, nil
}

// MarketValue returns quantity * price
func (s Stock) MarketValue() decimal.Decimal {
	return decimal.NewFromInt(s.Quantity).Mul(s.Price)
}

// RebalanceOrder represents a single whole-share buy or sell with
// deviation tracking against the ideal dollar target.
type RebalanceOrder struct {
	Action Action `json:"action"`
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
	// DollarAmount is shares * price, the actual traded value
	DollarAmount decimal.Decimal `json:"dollar_amount"`
	// TargetDollars is the ideal value the trade was aiming at
	TargetDollars decimal.Decimal `json:"target_dollars"`
	// DeviationDollars is how far the whole-share trade falls short of
	// the ideal, always >= 0
	DeviationDollars decimal.Decimal `json:"deviation_dollars"`
}

func (o RebalanceOrder) String() string {
	return fmt.Sprintf("%s %d %s ($%s, target: $%s, deviation: $%s)",
		o.Action, o.Shares, o.Symbol,
		o.DollarAmount.StringFixed(2),
		o.TargetDollars.StringFixed(2),
		o.DeviationDollars.StringFixed(2))
}

// SignedShares returns the share delta the order applies to a holding:
// positive for buys, negative for sells.
func (o RebalanceOrder) SignedShares() int64 {
	if o.Action == ActionSell {
		return -o.Shares
	}
	return o.Shares
}
