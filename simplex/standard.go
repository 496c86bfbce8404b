package simplex

import (
	"k8s.io/klog"
	"q.log/lpsolve/duality"
	"q.log/lpsolve/model"
)

// SolveStandard solves p with one slack variable per row. It only applies
// when every row is LE with a non-negative rhs, so the all-slack basis is
// feasible from the start; any other problem is handed to SolveBigM.
func SolveStandard(p *model.Problem, opts ...Option) (*model.Solution, error) {
	o, err := NewOptions(opts...)
	if err != nil {
		return nil, err
	}
	if !p.AllLE() {
		klog.V(2).Info("problem has GE, EQ or negative rhs rows, delegating to big-M")
		return solveBigM(p, o)
	}
	return duality.Maximize(p, func(q *model.Problem) (*model.Solution, error) {
		return standard(q, o)
	})
}

func standard(p *model.Problem, o Options) (*model.Solution, error) {
	extra := make([]Column, p.NumConstraints())
	for i := range extra {
		extra[i] = Column{Kind: Slack, Row: i}
	}

	t, err := Build(p, extra, 0, o.Tolerance)
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
		Strategy:   "standard",
		Iterations: t.Iterations(),
		Trace:      t.Trace(),
	}
	if status == model.Optimal {
		sol.Variables, sol.Objective = t.Solution(p.NumVars())
	} else {
		sol.Variables = make([]float64, p.NumVars())
	}
	return sol, nil
}
