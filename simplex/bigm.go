package simplex

import (
	"math"

	"k8s.io/klog"
	"q.log/lpsolve/duality"
	"q.log/lpsolve/model"
)

// artificialTol is how far above zero a basic artificial may sit at the
// optimum, relative to the largest rhs, before the problem counts as infeasible.
const artificialTol = 1e-6

// SolveBigM solves p with any mix of LE, GE and EQ rows. GE rows get a
// surplus and an artificial column, EQ rows an artificial column; every
// artificial is penalized by M in the objective row.
func SolveBigM(p *model.Problem, opts ...Option) (*model.Solution, error) {
	o, err := NewOptions(opts...)
	if err != nil {
		return nil, err
	}
	return solveBigM(p, o)
}

func solveBigM(p *model.Problem, o Options) (*model.Solution, error) {
	return duality.Maximize(p, func(q *model.Problem) (*model.Solution, error) {
		return bigM(q, o)
	})
}

// BigM returns the penalty used for p: K * max(1, max|c_j|).
func BigM(p *model.Problem, factor float64) float64 {
	scale := 1.0
	for _, c := range p.Objective() {
		scale = math.Max(scale, math.Abs(c))
	}
	return factor * scale
}

// normalize multiplies rows with a negative rhs by -1, flipping LE and GE.
func normalize(p *model.Problem) (*model.Problem, error) {
	flipped := false
	rows := p.Constraints()
	for i, c := range rows {
		if c.RHS >= 0 {
			continue
		}
		for j := range c.Coefficients {
			c.Coefficients[j] = -c.Coefficients[j]
		}
		rows[i].RHS = -c.RHS
		rows[i].Relation = c.Relation.Flip()
		flipped = true
	}
	if !flipped {
		return p, nil
	}
	return model.NewProblem(p.Objective(), p.Direction(), rows, model.Limits{})
}

// auxiliaryColumns lays out slack, surplus and artificial columns row by row.
func auxiliaryColumns(p *model.Problem) []Column {
	var extra []Column
	for i := range p.NumConstraints() {
		switch p.Relation(i) {
		case model.LE:
			extra = append(extra, Column{Kind: Slack, Row: i})
		case model.GE:
			extra = append(extra, Column{Kind: Surplus, Row: i}, Column{Kind: Artificial, Row: i})
		case model.EQ:
			extra = append(extra, Column{Kind: Artificial, Row: i})
		}
	}
	return extra
}

func bigM(p *model.Problem, o Options) (*model.Solution, error) {
	p, err := normalize(p)
	if err != nil {
		return nil, err
	}

	M := BigM(p, o.BigMFactor)
	klog.V(2).Infof("big-M with M = %g", M)

	t, err := Build(p, auxiliaryColumns(p), M, o.Tolerance)
	if err != nil {
		return nil, err
	}
	t.setTracing(o.Trace)

	status, err := t.Run(o.MaxIterations)
	if err != nil {
		return nil, err
	}

	sol := &model.Solution{
		Status:     status,
		Strategy:   "bigm",
		Iterations: t.Iterations(),
		Trace:      t.Trace(),
		Variables:  make([]float64, p.NumVars()),
	}

	switch status {
	case model.Optimal:
		if artificialsPositive(t, p) {
			klog.V(2).Info("artificial variable still positive at the optimum: infeasible")
			sol.Status = model.Infeasible
			return sol, nil
		}
		x, z := t.Solution(p.NumVars())
		values := t.Values()
		for j, c := range t.Columns() {
			if c.Kind == Artificial {
				z += M * values[j]
			}
		}
		sol.Variables, sol.Objective = x, z
	case model.Unbounded:
		if artificialsPositive(t, p) {
			// The penalized problem is unbounded while still using
			// artificials, so feasibility of the original is unknown.
			feasible, err := isFeasible(p, o)
			if err != nil {
				return nil, err
			}
			if !feasible {
				sol.Status = model.Infeasible
			}
		}
	}
	return sol, nil
}

func artificialsPositive(t *Tableau, p *model.Problem) bool {
	scale := 1.0
	for i := range p.NumConstraints() {
		scale = math.Max(scale, math.Abs(p.RHS(i)))
	}
	values := t.Values()
	columns := t.Columns()
	for _, b := range t.Basis() {
		if columns[b].Kind == Artificial && values[b] > artificialTol*scale {
			return true
		}
	}
	return false
}

// isFeasible minimizes the sum of artificials alone, which is bounded below
// by zero, and reports whether that sum reaches zero.
func isFeasible(p *model.Problem, o Options) (bool, error) {
	rows := p.Constraints()
	zero, err := model.NewProblem(make([]float64, p.NumVars()), model.Maximize, rows, model.Limits{})
	if err != nil {
		return false, err
	}
	t, err := Build(zero, auxiliaryColumns(zero), 1, o.Tolerance)
	if err != nil {
		return false, err
	}
	status, err := t.Run(o.MaxIterations)
	if err != nil {
		return false, err
	}
	return status == model.Optimal && !artificialsPositive(t, zero), nil
}
