package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// allocationSumTolerance is the epsilon for the sum-to-one invariant.
var allocationSumTolerance = decimal.New(1, -6) // 1e-6

// TargetAllocation maps symbols to target portfolio fractions.
// Fractions are validated at construction: each in [0,1], summing to 1
// within a small epsilon. Invalid allocations fail, they are never
// silently renormalized.
type TargetAllocation struct {
	weights map[string]decimal.Decimal
}

// NewTargetAllocation validates and creates a target allocation.
func NewTargetAllocation(weights map[string]decimal.Decimal) (TargetAllocation, error) {
	if len(weights) == 0 {
		return TargetAllocation{}, fmt.Errorf("%w: no symbols", ErrInvalidAllocation)
	}

	one := decimal.NewFromInt(1)
	sum := decimal.Zero
	for symbol, w := range weights {
		if w.IsNegative() || w.GreaterThan(one) {
			return TargetAllocation{}, fmt.Errorf(
				"%w: weight for %s must be between 0 and 1, got %s",
				ErrInvalidAllocation, symbol, w)
		}
		sum = sum.Add(w)
	}

	if sum.Sub(one).Abs().GreaterThan(allocationSumTolerance) {
		return TargetAllocation{}, fmt.Errorf(
			"%w: weights must sum to 1, got %s", ErrInvalidAllocation, sum)
	}

	copied := make(map[string]decimal.Decimal, len(weights))
	for symbol, w := range weights {
		copied[symbol] = w
	}
	return TargetAllocation{weights: copied}, nil
}

// Weight returns the target fraction for a symbol and whether it is present.
func (a TargetAllocation) Weight(symbol string) (decimal.Decimal, bool) {
	w, ok := a.weights[symbol]
	return w, ok
}

// Has reports whether the symbol appears in the allocation.
func (a TargetAllocation) Has(symbol string) bool {
	_, ok := a.weights[symbol]
	return ok
}

// Symbols returns the allocation symbols in sorted order so callers
// iterate deterministically.
func (a TargetAllocation) Symbols() []string {
	symbols := make([]string, 0, len(a.weights))
	for symbol := range a.weights {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Len returns the number of symbols in the allocation.
func (a TargetAllocation) Len() int {
	return len(a.weights)
}

// Weights returns a copy of the symbol->fraction map.
func (a TargetAllocation) Weights() map[string]decimal.Decimal {
	copied := make(map[string]decimal.Decimal, len(a.weights))
	for symbol, w := range a.weights {
		copied[symbol] = w
	}
	return copied
}
