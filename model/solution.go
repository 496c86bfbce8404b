package model

import "fmt"

type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Vertex is a candidate corner of a two-variable feasible region.
// Lines holds the indices of the boundaries it was intersected from:
// -1 and -2 stand for x1 = 0 and x2 = 0, others are constraint rows.
type Vertex struct {
	X1, X2   float64
	Feasible bool
	Lines    [2]int
}

// Step records one pivot of a simplex run.
type Step struct {
	Iteration int
	Entering  int
	Leaving   int
	Row       int
	Objective float64
}

// Solution is the outcome of a single solve call.
type Solution struct {
	Status Status

	// Objective is only meaningful when Status is Optimal.
	Objective float64

	// Variables has one value per original variable.
	Variables []float64

	// Vertices lists the feasible vertices found by the graphical method.
	Vertices []Vertex

	// Strategy names the method that produced the solution.
	Strategy string

	Iterations int
	Trace      []Step
}

func (s *Solution) IsOptimal() bool    { return s.Status == Optimal }
func (s *Solution) IsInfeasible() bool { return s.Status == Infeasible }
func (s *Solution) IsUnbounded() bool  { return s.Status == Unbounded }

// Value returns the value of variable j, or 0 if j is out of range.
func (s *Solution) Value(j int) float64 {
	if j < 0 || j >= len(s.Variables) {
		return 0
	}
	return s.Variables[j]
}
