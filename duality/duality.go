// Package duality turns minimization problems into maximization ones so
// that every solving strategy only has to maximize.
package duality

import "q.log/lpsolve/model"

// SolveFunc solves a maximization problem.
type SolveFunc func(p *model.Problem) (*model.Solution, error)

// Maximize runs solve on p when p maximizes. For a minimization it solves
// max -c·x instead and negates the optimal value back; variable values and
// vertices pass through unchanged.
func Maximize(p *model.Problem, solve SolveFunc) (*model.Solution, error) {
	if p.Direction() == model.Maximize {
		return solve(p)
	}

	sol, err := solve(p.AsMaximization())
	if err != nil {
		return nil, err
	}
	if sol.Status == model.Optimal {
		sol.Objective = -sol.Objective
	}
	for i := range sol.Trace {
		sol.Trace[i].Objective = -sol.Trace[i].Objective
	}
	return sol, nil
}
