// Package graphical solves two-variable linear programs by enumerating the
// corners of the feasible region.
//
// Every pair of boundary lines (each constraint taken as an equality, plus
// the axes x1 = 0 and x2 = 0) is intersected; intersections that satisfy all
// constraints are the vertices of the region, and the best of them is the
// optimum unless the region extends forever in an improving direction.
package graphical

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"k8s.io/klog"
	"q.log/lpsolve/duality"
	"q.log/lpsolve/model"
)

const (
	// Axis indices used in model.Vertex.Lines.
	AxisX1 = -1
	AxisX2 = -2

	detTol = 1e-12
	dupTol = 1e-8

	DefaultTolerance = 1e-9
)

type Options struct {
	Tolerance float64
}

type Option func(*Options) error

// WithTolerance sets the slack allowed when testing a vertex against a constraint.
func WithTolerance(tol float64) Option {
	return func(o *Options) error {
		if !(tol > 0 && tol < 1e-3) {
			return errors.Errorf("tolerance must be in (0, 1e-3), got %g", tol)
		}
		o.Tolerance = tol
		return nil
	}
}

// line is a·x = c for a two-variable a.
type line struct {
	a     [2]float64
	c     float64
	index int
}

func lines(p *model.Problem) []line {
	ls := []line{
		{a: [2]float64{1, 0}, index: AxisX1},
		{a: [2]float64{0, 1}, index: AxisX2},
	}
	for i := range p.NumConstraints() {
		ls = append(ls, line{
			a:     [2]float64{p.Coefficient(i, 0), p.Coefficient(i, 1)},
			c:     p.RHS(i),
			index: i,
		})
	}
	return ls
}

// intersect solves the 2x2 system; ok is false for parallel lines.
func intersect(l1, l2 line) (x [2]float64, ok bool) {
	det := l1.a[0]*l2.a[1] - l2.a[0]*l1.a[1]
	if math.Abs(det) < detTol {
		return x, false
	}
	x[0] = (l1.c*l2.a[1] - l2.c*l1.a[1]) / det
	x[1] = (l1.a[0]*l2.c - l2.a[0]*l1.c) / det
	return x, true
}

// feasible tests x against non-negativity and every constraint, scaling
// the tolerance by the size of each row.
func feasible(p *model.Problem, x [2]float64, tol float64) bool {
	if x[0] < -tol || x[1] < -tol {
		return false
	}
	xs := x[:]
	for i := range p.NumConstraints() {
		c := p.Constraint(i)
		scale := math.Max(1, math.Max(math.Abs(c.RHS), floats.Norm(c.Coefficients, math.Inf(1))))
		if !c.Satisfied(xs, tol*scale) {
			return false
		}
	}
	return true
}

// Candidates returns every pairwise intersection of boundary lines in
// enumeration order, each tagged feasible or not. Parallel pairs are skipped.
func Candidates(p *model.Problem, tol float64) []model.Vertex {
	ls := lines(p)
	var out []model.Vertex
	for i := range ls {
		for j := i + 1; j < len(ls); j++ {
			x, ok := intersect(ls[i], ls[j])
			if !ok {
				continue
			}
			out = append(out, model.Vertex{
				X1:       x[0],
				X2:       x[1],
				Feasible: feasible(p, x, tol),
				Lines:    [2]int{ls[i].index, ls[j].index},
			})
		}
	}
	return out
}

// Vertices returns the distinct feasible corners of p in enumeration order.
// Coordinates within tolerance of zero are clamped to zero.
func Vertices(p *model.Problem, tol float64) []model.Vertex {
	var out []model.Vertex
	for _, v := range Candidates(p, tol) {
		if !v.Feasible {
			continue
		}
		v.X1 = math.Max(0, v.X1)
		v.X2 = math.Max(0, v.X2)
		if !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func contains(vs []model.Vertex, v model.Vertex) bool {
	for _, u := range vs {
		if math.Abs(u.X1-v.X1) < dupTol && math.Abs(u.X2-v.X2) < dupTol {
			return true
		}
	}
	return false
}

// rays lists the directions that can span the recession cone of a
// two-variable region: the axes and both directions along each constraint line.
func rays(p *model.Problem) [][2]float64 {
	rs := [][2]float64{{1, 0}, {0, 1}}
	for i := range p.NumConstraints() {
		a, b := p.Coefficient(i, 0), p.Coefficient(i, 1)
		norm := math.Hypot(a, b)
		if norm == 0 {
			continue
		}
		rs = append(rs, [2]float64{b / norm, -a / norm}, [2]float64{-b / norm, a / norm})
	}
	return rs
}

// recedes reports whether moving along d from a feasible point stays feasible.
func recedes(p *model.Problem, d [2]float64, tol float64) bool {
	if d[0] < -tol || d[1] < -tol {
		return false
	}
	for i := range p.NumConstraints() {
		c := p.Constraint(i)
		scale := math.Max(1, floats.Norm(c.Coefficients, math.Inf(1)))
		dot := c.Coefficients[0]*d[0] + c.Coefficients[1]*d[1]
		switch c.Relation {
		case model.LE:
			if dot > tol*scale {
				return false
			}
		case model.GE:
			if dot < -tol*scale {
				return false
			}
		case model.EQ:
			if math.Abs(dot) > tol*scale {
				return false
			}
		}
	}
	return true
}

// ImprovingRay returns a feasible direction along which the objective of a
// maximization grows. Since the region lies in the first quadrant its
// recession cone is pointed, so checking the extreme rays is enough.
func ImprovingRay(p *model.Problem, tol float64) ([2]float64, bool) {
	c := p.Objective()
	scale := math.Max(1, floats.Norm(c, math.Inf(1)))
	for _, d := range rays(p) {
		if recedes(p, d, tol) && c[0]*d[0]+c[1]*d[1] > tol*scale {
			return d, true
		}
	}
	return [2]float64{}, false
}

// Solve finds the optimum of a two-variable problem. The feasible vertices
// are kept in the solution for plotting.
func Solve(p *model.Problem, opts ...Option) (*model.Solution, error) {
	o := Options{Tolerance: DefaultTolerance}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errors.Wrap(err, "applying graphical option")
		}
	}
	if p.NumVars() != 2 {
		return nil, model.Invalid("c", "the graphical method needs exactly 2 variables, got %d", p.NumVars())
	}
	return duality.Maximize(p, func(q *model.Problem) (*model.Solution, error) {
		return solve(q, o.Tolerance), nil
	})
}

func solve(p *model.Problem, tol float64) *model.Solution {
	vertices := Vertices(p, tol)
	sol := &model.Solution{
		Strategy:  "graphical",
		Variables: make([]float64, 2),
		Vertices:  vertices,
	}
	if len(vertices) == 0 {
		klog.V(2).Info("no feasible vertex: infeasible")
		sol.Status = model.Infeasible
		return sol
	}
	if d, ok := ImprovingRay(p, tol); ok {
		klog.V(2).Infof("objective grows along %v: unbounded", d)
		sol.Status = model.Unbounded
		return sol
	}

	c := p.Objective()
	best := 0
	bestValue := math.Inf(-1)
	for i, v := range vertices {
		z := c[0]*v.X1 + c[1]*v.X2
		klog.V(4).Infof("vertex %d (%g, %g): z = %g", i+1, v.X1, v.X2, z)
		if i == 0 || z > bestValue+tol*math.Max(1, math.Abs(bestValue)) {
			best, bestValue = i, z
		}
	}

	sol.Status = model.Optimal
	sol.Objective = bestValue
	sol.Variables = []float64{vertices[best].X1, vertices[best].X2}
	return sol
}
