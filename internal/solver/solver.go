package solver

import "errors"

// Failure classes. Callers classify with errors.Is; anything that is not
// one of these is a programmer error in problem construction.
var (
	// ErrInfeasible - no assignment satisfies the constraints
	ErrInfeasible = errors.New("problem is infeasible")
	// ErrUnbounded - the objective can decrease without limit
	ErrUnbounded = errors.New("problem is unbounded")
	// ErrNumerical - the simplex method failed to converge
	ErrNumerical = errors.New("numerical failure")
	// ErrNodeLimit - branch and bound exhausted its node budget without an incumbent
	ErrNodeLimit = errors.New("node limit reached")
)

// Solution is an optimal (or best-found) assignment.
type Solution struct {
	// Values holds one value per variable, indexed by VarID. Integer
	// variables hold exact whole values.
	Values []float64
	// Objective is the objective value at this assignment.
	Objective float64
}

// Solver solves a Problem to optimality or reports a typed failure.
type Solver interface {
	Solve(p *Problem) (*Solution, error)
}
