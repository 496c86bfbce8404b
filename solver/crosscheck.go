package solver

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
	"k8s.io/klog"
	"q.log/lpsolve/model"
)

var (
	// ErrMismatch is returned by CrossCheck when gonum's simplex disagrees.
	ErrMismatch = errors.New("solution disagrees with reference solver")

	// ErrNoReference is returned by Reference when gonum's simplex gives no
	// answer: its basis turned singular or it ran past ReferenceTimeout.
	ErrNoReference = errors.New("reference solver gave no answer")
)

const referenceTol = 1e-6

// ReferenceTimeout bounds a single Reference call. gonum's simplex has no
// iteration cap, so a call that times out leaves its goroutine running.
var ReferenceTimeout = 2 * time.Second

type reference struct {
	z   float64
	err error
}

// Reference solves p with gonum's simplex. Only the status and, when
// optimal, the objective value in p's own direction are reported.
func Reference(p *model.Problem) (model.Status, float64, error) {
	n, m := p.NumVars(), p.NumConstraints()

	// gonum minimizes, so a maximization is solved as min -c·x. c is
	// divided by its largest magnitude and z scaled back afterwards.
	c := p.Objective()
	scale := 0.0
	for _, v := range c {
		scale = math.Max(scale, math.Abs(v))
	}
	if scale == 0 {
		scale = 1
	}
	if p.Direction() == model.Maximize {
		scale = -scale
	}
	for j := range c {
		c[j] /= scale
	}

	var le, eq []model.Constraint
	for i := range m {
		if p.Relation(i) == model.EQ {
			eq = append(eq, p.Constraint(i))
		} else {
			le = append(le, p.Constraint(i))
		}
	}

	// G·x <= h holds the inequalities and -x <= 0 for every variable.
	g := mat.NewDense(len(le)+n, n, nil)
	h := make([]float64, len(le)+n)
	for i, row := range le {
		sign := 1.0
		if row.Relation == model.GE {
			sign = -1
		}
		for j, v := range row.Coefficients {
			g.Set(i, j, sign*v)
		}
		h[i] = sign * row.RHS
	}
	for j := range n {
		g.Set(len(le)+j, j, -1)
	}

	var a mat.Matrix
	var b []float64
	if len(eq) > 0 {
		ad := mat.NewDense(len(eq), n, nil)
		for i, row := range eq {
			ad.SetRow(i, row.Coefficients)
			b = append(b, row.RHS)
		}
		a = ad
	}

	done := make(chan reference, 1)
	go func() {
		// lp panics on shapes it does not accept, such as more equality
		// rows than columns.
		defer func() {
			if r := recover(); r != nil {
				done <- reference{err: errors.Errorf("%v", r)}
			}
		}()
		cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
		z, _, err := lp.Simplex(cStd, aStd, bStd, 1e-9, nil)
		done <- reference{z: z, err: err}
	}()

	var res reference
	select {
	case res = <-done:
	case <-time.After(ReferenceTimeout):
		return 0, 0, errors.Wrapf(ErrNoReference, "no result after %v", ReferenceTimeout)
	}

	switch {
	case res.err == nil:
	case errors.Is(res.err, lp.ErrInfeasible):
		return model.Infeasible, 0, nil
	case errors.Is(res.err, lp.ErrUnbounded):
		return model.Unbounded, 0, nil
	default:
		// singular bases, redundant EQ rows and the like
		return 0, 0, errors.Wrap(ErrNoReference, res.err.Error())
	}
	return model.Optimal, res.z * scale, nil
}

// CrossCheck solves p again with gonum's simplex and returns ErrMismatch
// if the status or the optimal value differ from sol. A problem gonum
// cannot answer is logged and passes.
func CrossCheck(p *model.Problem, sol *model.Solution) error {
	status, z, err := Reference(p)
	if errors.Is(err, ErrNoReference) {
		klog.Warningf("cross-check skipped: %v", err)
		return nil
	}
	if err != nil {
		return err
	}
	klog.V(3).Infof("reference solver: %v %g", status, z)
	if status != sol.Status {
		return errors.Wrapf(ErrMismatch, "status %v, reference %v", sol.Status, status)
	}
	if status == model.Optimal && math.Abs(z-sol.Objective) > referenceTol*math.Max(1, math.Abs(z)) {
		return errors.Wrapf(ErrMismatch, "objective %g, reference %g", sol.Objective, z)
	}
	return nil
}
