package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	defaultMaxNodes = 10000
	defaultIntTol   = 1e-6
	simplexTol      = 1e-10
	pruneTol        = 1e-9
)

// BranchBound solves mixed-integer problems by branch and bound: each node
// solves the LP relaxation with gonum's simplex method, then branches on a
// fractional integer variable until all integer variables take whole values.
type BranchBound struct {
	// MaxNodes caps the number of relaxations solved per call. Problem
	// sizes here are tens of symbols, so the default is generous.
	MaxNodes int
	// IntTol is the tolerance for treating a relaxed value as integral.
	IntTol float64

	log zerolog.Logger
}

// NewBranchBound creates a solver with default limits.
func NewBranchBound(log zerolog.Logger) *BranchBound {
	return &BranchBound{
		MaxNodes: defaultMaxNodes,
		IntTol:   defaultIntTol,
		log:      log.With().Str("solver", "branch_bound").Logger(),
	}
}

// node carries the variable bounds for one branch of the search tree.
type node struct {
	lower []float64
	upper []float64
}

// Solve runs branch and bound. On success the returned solution has whole
// values for every integer variable. Failures are ErrInfeasible,
// ErrUnbounded, ErrNumerical or ErrNodeLimit.
func (s *BranchBound) Solve(p *Problem) (*Solution, error) {
	n := len(p.vars)
	if n == 0 {
		return &Solution{Values: nil, Objective: 0}, nil
	}

	maxNodes := s.MaxNodes
	if maxNodes <= 0 {
		maxNodes = defaultMaxNodes
	}
	intTol := s.IntTol
	if intTol <= 0 {
		intTol = defaultIntTol
	}

	root := node{lower: make([]float64, n), upper: make([]float64, n)}
	for i, v := range p.vars {
		root.lower[i] = v.lower
		root.upper[i] = v.upper
	}

	var best *Solution
	bestObj := math.Inf(1)
	stack := []node{root}
	visited := 0

	for len(stack) > 0 {
		if visited >= maxNodes {
			if best != nil {
				s.log.Warn().Int("nodes", visited).Msg("node limit reached, returning incumbent")
				return best, nil
			}
			return nil, fmt.Errorf("%w after %d nodes", ErrNodeLimit, visited)
		}
		visited++

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		relaxed, err := s.solveRelaxation(p, current)
		switch {
		case errors.Is(err, ErrInfeasible):
			continue
		case errors.Is(err, ErrUnbounded):
			// An unbounded relaxation means the integer problem has no
			// finite optimum either.
			return nil, err
		case err != nil:
			if visited == 1 {
				return nil, err
			}
			// Numerical trouble deep in the tree: abandon the branch.
			s.log.Debug().Err(err).Msg("dropping branch after relaxation failure")
			continue
		}

		// Bound: a relaxation no better than the incumbent cannot improve.
		if relaxed.Objective >= bestObj-pruneTol {
			continue
		}

		branchVar := s.pickBranchVariable(p, relaxed.Values, intTol)
		if branchVar < 0 {
			candidate := s.roundIntegral(p, relaxed)
			if candidate.Objective < bestObj {
				best = candidate
				bestObj = candidate.Objective
			}
			continue
		}

		value := relaxed.Values[branchVar]
		floorVal := math.Floor(value)
		ceilVal := math.Ceil(value)

		// Push the up branch first so the down branch is explored first;
		// with budget-style constraints the down branch is usually feasible.
		if ceilVal <= current.upper[branchVar] {
			up := cloneNode(current)
			up.lower[branchVar] = ceilVal
			stack = append(stack, up)
		}
		if floorVal >= current.lower[branchVar] {
			down := cloneNode(current)
			down.upper[branchVar] = floorVal
			stack = append(stack, down)
		}
	}

	if best == nil {
		return nil, ErrInfeasible
	}
	s.log.Debug().Int("nodes", visited).Float64("objective", bestObj).Msg("solved")
	return best, nil
}

func cloneNode(nd node) node {
	lower := make([]float64, len(nd.lower))
	upper := make([]float64, len(nd.upper))
	copy(lower, nd.lower)
	copy(upper, nd.upper)
	return node{lower: lower, upper: upper}
}

// pickBranchVariable returns the integer variable whose relaxed value is
// furthest from integral, or -1 when all integer variables are integral.
func (s *BranchBound) pickBranchVariable(p *Problem, values []float64, intTol float64) int {
	branch := -1
	worst := intTol
	for i, v := range p.vars {
		if !v.integer {
			continue
		}
		frac := math.Abs(values[i] - math.Round(values[i]))
		if frac > worst {
			worst = frac
			branch = i
		}
	}
	return branch
}

// roundIntegral snaps integer variables to whole values and recomputes the
// objective at the snapped point.
func (s *BranchBound) roundIntegral(p *Problem, sol *Solution) *Solution {
	values := make([]float64, len(sol.Values))
	copy(values, sol.Values)
	for i, v := range p.vars {
		if v.integer {
			values[i] = math.Round(values[i])
		}
	}

	objective := 0.0
	for id, c := range p.objective {
		objective += c * values[id]
	}
	return &Solution{Values: values, Objective: objective}
}

// solveRelaxation solves the LP relaxation of p with the node's variable
// bounds via simplex on the standard-form equivalent.
//
// Standard form construction: every variable is shifted by its lower bound
// (y = x - l, y >= 0); finite upper bounds and one-sided constraint rows
// each contribute a slack column, equality rows none. Right-hand sides are
// sign-normalized for the simplex routine.
func (s *BranchBound) solveRelaxation(p *Problem, nd node) (*Solution, error) {
	n := len(p.vars)

	for i := range p.vars {
		if nd.lower[i] > nd.upper[i] {
			return nil, ErrInfeasible
		}
	}

	type row struct {
		coeffs []float64 // length n, variable part
		slack  float64   // +1, -1 or 0
		rhs    float64
	}
	var rows []row

	// Upper-bound rows: y_i + s = u_i - l_i.
	for i := range p.vars {
		if math.IsInf(nd.upper[i], 1) {
			continue
		}
		coeffs := make([]float64, n)
		coeffs[i] = 1
		rows = append(rows, row{coeffs: coeffs, slack: 1, rhs: nd.upper[i] - nd.lower[i]})
	}

	// Constraint rows, shifted by the variable lower bounds.
	for _, con := range p.cons {
		coeffs := make([]float64, n)
		shift := 0.0
		for id, c := range con.coeffs {
			coeffs[id] = c
			shift += c * nd.lower[id]
		}

		lower := con.lower
		upper := con.upper
		if !math.IsInf(lower, -1) {
			lower -= shift
		}
		if !math.IsInf(upper, 1) {
			upper -= shift
		}

		switch {
		case !math.IsInf(lower, -1) && lower == upper:
			rows = append(rows, row{coeffs: coeffs, slack: 0, rhs: upper})
		default:
			if !math.IsInf(upper, 1) {
				rows = append(rows, row{coeffs: coeffs, slack: 1, rhs: upper})
			}
			if !math.IsInf(lower, -1) {
				lowCoeffs := make([]float64, n)
				copy(lowCoeffs, coeffs)
				rows = append(rows, row{coeffs: lowCoeffs, slack: -1, rhs: lower})
			}
		}
	}

	// Only inequality rows carry a slack column; an equality row with a
	// dedicated slack column would hand the simplex matrix a zero column.
	numSlack := 0
	for _, rw := range rows {
		if rw.slack != 0 {
			numSlack++
		}
	}

	// Objective over the shifted variables; the constant part is added back
	// to the reported objective value.
	shiftedConst := 0.0
	c := make([]float64, n+numSlack)
	for id, coeff := range p.objective {
		c[id] = coeff
		shiftedConst += coeff * nd.lower[id]
	}

	if len(rows) == 0 {
		// No constraints: the minimum sits at the lower bounds unless some
		// coefficient rewards growing a variable without limit.
		values := make([]float64, n)
		for i := range p.vars {
			values[i] = nd.lower[i]
			if c[i] < 0 && math.IsInf(nd.upper[i], 1) {
				return nil, ErrUnbounded
			}
			if c[i] < 0 {
				values[i] = nd.upper[i]
			}
		}
		objective := 0.0
		for id, coeff := range p.objective {
			objective += coeff * values[id]
		}
		return &Solution{Values: values, Objective: objective}, nil
	}

	m := len(rows)
	width := n + numSlack
	data := make([]float64, m*width)
	b := make([]float64, m)
	slackCol := n
	for r, rw := range rows {
		sign := 1.0
		if rw.rhs < 0 {
			sign = -1
		}
		for j := 0; j < n; j++ {
			data[r*width+j] = sign * rw.coeffs[j]
		}
		if rw.slack != 0 {
			data[r*width+slackCol] = sign * rw.slack
			slackCol++
		}
		b[r] = sign * rw.rhs
	}
	a := mat.NewDense(m, width, data)

	_, optX, err := lp.Simplex(c, a, b, simplexTol, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return nil, ErrInfeasible
	case errors.Is(err, lp.ErrUnbounded):
		return nil, ErrUnbounded
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}

	values := make([]float64, n)
	objective := shiftedConst
	for i := range p.vars {
		values[i] = optX[i] + nd.lower[i]
		objective += c[i] * optX[i]
	}
	return &Solution{Values: values, Objective: objective}, nil
}
