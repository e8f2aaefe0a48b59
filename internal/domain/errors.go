package domain

import "errors"

// Sentinel errors for construction and precondition failures.
// Wrap with fmt.Errorf("...: %w", Err...) and check with errors.Is.
var (
	// ErrInvalidAllocation - target fractions out of [0,1] or not summing to 1
	ErrInvalidAllocation = errors.New("invalid target allocation")
	// ErrInvalidStock - negative quantity or non-positive price
	ErrInvalidStock = errors.New("invalid stock")
	// ErrMissingPrice - a target symbol is neither held nor present in the price lookup
	ErrMissingPrice = errors.New("missing price")
	// ErrInvalidTolerance - tolerance band outside the supported 1%-3% range
	ErrInvalidTolerance = errors.New("invalid tolerance")
)
