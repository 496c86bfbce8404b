package model

import (
	"fmt"
	"math"
	"strings"
)

type Direction int

const (
	Maximize Direction = iota
	Minimize
)

func (d Direction) String() string {
	switch d {
	case Maximize:
		return "max"
	case Minimize:
		return "min"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts "max"/"min" and their long forms, case insensitive.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "max", "maximize", "maximise":
		return Maximize, nil
	case "min", "minimize", "minimise":
		return Minimize, nil
	default:
		return 0, invalid("sense", "unrecognized optimization sense %q", s)
	}
}

type Relation int

const (
	LE Relation = iota
	GE
	EQ
)

func (r Relation) String() string {
	switch r {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "="
	default:
		return fmt.Sprintf("Relation(%d)", int(r))
	}
}

// Flip swaps LE and GE. EQ is its own flip.
func (r Relation) Flip() Relation {
	switch r {
	case LE:
		return GE
	case GE:
		return LE
	default:
		return r
	}
}

func ParseRelation(s string) (Relation, error) {
	switch strings.TrimSpace(s) {
	case "<=", "≤", "=<":
		return LE, nil
	case ">=", "≥", "=>":
		return GE, nil
	case "=", "==":
		return EQ, nil
	default:
		return 0, invalid("constraints_type", "unsupported relation %q", s)
	}
}

// Constraint is a single row: Coefficients · x Relation RHS.
type Constraint struct {
	Coefficients []float64
	Relation     Relation
	RHS          float64
}

// Satisfied reports whether x satisfies the constraint within tol.
func (c Constraint) Satisfied(x []float64, tol float64) bool {
	lhs := 0.0
	for j, a := range c.Coefficients {
		lhs += a * x[j]
	}
	switch c.Relation {
	case LE:
		return lhs <= c.RHS+tol
	case GE:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

// Limits bounds the size of accepted problems.
type Limits struct {
	MinVariables   int
	MaxVariables   int
	MinConstraints int
	MaxConstraints int
}

// DefaultLimits matches the form-driven use case: at most ten of each.
var DefaultLimits = Limits{
	MinVariables:   1,
	MaxVariables:   10,
	MinConstraints: 1,
	MaxConstraints: 10,
}

// Check reports whether a problem with n variables and m constraints is
// within l. A zero maximum disables that bound.
func (l Limits) Check(n, m int) error {
	if l.MaxVariables > 0 && (n < l.MinVariables || n > l.MaxVariables) {
		return invalid("c", "%d variables outside the accepted range [%d, %d]", n, l.MinVariables, l.MaxVariables)
	}
	if l.MaxConstraints > 0 && (m < l.MinConstraints || m > l.MaxConstraints) {
		return invalid("A", "%d constraints outside the accepted range [%d, %d]", m, l.MinConstraints, l.MaxConstraints)
	}
	return nil
}

// Problem is a validated linear program over non-negative variables.
// A Problem is never modified after NewProblem returns it.
type Problem struct {
	objective   []float64
	direction   Direction
	constraints []Constraint
}

// NewProblem validates its inputs and returns a Problem owning copies of them.
func NewProblem(objective []float64, dir Direction, constraints []Constraint, limits Limits) (*Problem, error) {
	n := len(objective)
	if n < 1 {
		return nil, invalid("c", "at least one variable is required")
	}
	m := len(constraints)
	if err := limits.Check(n, m); err != nil {
		return nil, err
	}
	if dir != Maximize && dir != Minimize {
		return nil, invalid("sense", "unrecognized optimization sense %v", dir)
	}
	if err := finite("c", objective); err != nil {
		return nil, err
	}

	p := &Problem{
		objective:   append([]float64(nil), objective...),
		direction:   dir,
		constraints: make([]Constraint, m),
	}
	for i, c := range constraints {
		if len(c.Coefficients) != n {
			return nil, invalid(fmt.Sprintf("A[%d]", i), "has %d coefficients, want %d", len(c.Coefficients), n)
		}
		if c.Relation != LE && c.Relation != GE && c.Relation != EQ {
			return nil, invalid(fmt.Sprintf("constraints_type[%d]", i), "unsupported relation %v", c.Relation)
		}
		if err := finite(fmt.Sprintf("A[%d]", i), c.Coefficients); err != nil {
			return nil, err
		}
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return nil, invalid(fmt.Sprintf("b[%d]", i), "must be finite")
		}
		p.constraints[i] = Constraint{
			Coefficients: append([]float64(nil), c.Coefficients...),
			Relation:     c.Relation,
			RHS:          c.RHS,
		}
	}
	return p, nil
}

func finite(field string, v []float64) error {
	for j, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return invalid(fmt.Sprintf("%s[%d]", field, j), "must be finite")
		}
	}
	return nil
}

func (p *Problem) NumVars() int        { return len(p.objective) }
func (p *Problem) NumConstraints() int { return len(p.constraints) }
func (p *Problem) Direction() Direction { return p.direction }

// Objective returns a copy of the objective coefficients.
func (p *Problem) Objective() []float64 {
	return append([]float64(nil), p.objective...)
}

// Constraint returns a copy of the i-th constraint.
func (p *Problem) Constraint(i int) Constraint {
	c := p.constraints[i]
	c.Coefficients = append([]float64(nil), c.Coefficients...)
	return c
}

// Constraints returns copies of all constraints in order.
func (p *Problem) Constraints() []Constraint {
	out := make([]Constraint, len(p.constraints))
	for i := range p.constraints {
		out[i] = p.Constraint(i)
	}
	return out
}

// Coefficient returns A[i][j] without copying.
func (p *Problem) Coefficient(i, j int) float64 { return p.constraints[i].Coefficients[j] }

// RHS returns b[i].
func (p *Problem) RHS(i int) float64 { return p.constraints[i].RHS }

// Relation returns the relation of row i.
func (p *Problem) Relation(i int) Relation { return p.constraints[i].Relation }

// AllLE reports whether every constraint is LE with a non-negative rhs,
// i.e. whether the all-slack basis is feasible.
func (p *Problem) AllLE() bool {
	for _, c := range p.constraints {
		if c.Relation != LE || c.RHS < 0 {
			return false
		}
	}
	return true
}

// Evaluate returns c · x.
func (p *Problem) Evaluate(x []float64) float64 {
	z := 0.0
	for j, c := range p.objective {
		z += c * x[j]
	}
	return z
}

// Feasible reports whether x is non-negative and satisfies every constraint within tol.
func (p *Problem) Feasible(x []float64, tol float64) bool {
	for _, v := range x {
		if v < -tol {
			return false
		}
	}
	for _, c := range p.constraints {
		if !c.Satisfied(x, tol) {
			return false
		}
	}
	return true
}

// AsMaximization returns the maximization problem with the negated
// objective when p minimizes, and p itself otherwise.
func (p *Problem) AsMaximization() *Problem {
	if p.direction == Maximize {
		return p
	}
	neg := make([]float64, len(p.objective))
	for j, c := range p.objective {
		neg[j] = -c
	}
	return &Problem{
		objective:   neg,
		direction:   Maximize,
		constraints: p.constraints,
	}
}

func (p *Problem) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%v z = %s\n", p.direction, linear(p.objective))
	for _, c := range p.constraints {
		fmt.Fprintf(&sb, "  %s %v %g\n", linear(c.Coefficients), c.Relation, c.RHS)
	}
	sb.WriteString("  x >= 0")
	return sb.String()
}

func linear(coefs []float64) string {
	terms := make([]string, 0, len(coefs))
	for j, a := range coefs {
		terms = append(terms, fmt.Sprintf("%g x%d", a, j+1))
	}
	return strings.Join(terms, " + ")
}
