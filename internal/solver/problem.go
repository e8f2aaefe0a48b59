// Package solver provides a small mixed-integer linear programming
// capability: a problem builder plus a branch-and-bound solver layered on
// gonum's simplex method. The rebalancing strategies construct their
// objectives and constraints against this package only, so the underlying
// solver implementation is swappable.
package solver

import (
	"fmt"
	"math"
)

// VarID identifies a decision variable within a Problem.
type VarID int

type variable struct {
	name    string
	lower   float64
	upper   float64 // may be +Inf
	integer bool
}

type constraint struct {
	coeffs map[VarID]float64
	lower  float64 // may be -Inf
	upper  float64 // may be +Inf
}

// Problem is a minimization problem over bounded variables with linear
// constraints. Lower bounds must be finite and non-negative; upper bounds
// may be infinite.
type Problem struct {
	vars      []variable
	cons      []constraint
	objective map[VarID]float64
}

// NewProblem creates an empty minimization problem.
func NewProblem() *Problem {
	return &Problem{objective: make(map[VarID]float64)}
}

// AddVariable adds a decision variable with the given bounds. Integer
// variables are restricted to whole values by the solver.
func (p *Problem) AddVariable(name string, lower, upper float64, integer bool) (VarID, error) {
	if math.IsInf(lower, 0) || math.IsNaN(lower) || lower < 0 {
		return 0, fmt.Errorf("variable %s: lower bound must be finite and non-negative, got %v", name, lower)
	}
	if upper < lower {
		return 0, fmt.Errorf("variable %s: upper bound %v below lower bound %v", name, upper, lower)
	}
	p.vars = append(p.vars, variable{name: name, lower: lower, upper: upper, integer: integer})
	return VarID(len(p.vars) - 1), nil
}

// AddConstraint adds lower <= sum(coeffs[v] * x[v]) <= upper. Either bound
// may be infinite; equal bounds make an equality constraint.
func (p *Problem) AddConstraint(coeffs map[VarID]float64, lower, upper float64) {
	copied := make(map[VarID]float64, len(coeffs))
	for id, c := range coeffs {
		copied[id] = c
	}
	p.cons = append(p.cons, constraint{coeffs: copied, lower: lower, upper: upper})
}

// SetObjective sets the minimization objective coefficients. Variables
// absent from the map have coefficient zero.
func (p *Problem) SetObjective(coeffs map[VarID]float64) {
	p.objective = make(map[VarID]float64, len(coeffs))
	for id, c := range coeffs {
		p.objective[id] = c
	}
}

// NumVariables returns the number of decision variables.
func (p *Problem) NumVariables() int {
	return len(p.vars)
}
