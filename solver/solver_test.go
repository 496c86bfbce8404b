package solver

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"q.log/lpsolve/model"
	"q.log/lpsolve/simplex"
)

const delta = 1e-7

func row(rel model.Relation, rhs float64, coefs ...float64) model.Constraint {
	return model.Constraint{Coefficients: coefs, Relation: rel, RHS: rhs}
}

func newProblem(t *testing.T, dir model.Direction, c []float64, rows ...model.Constraint) *model.Problem {
	t.Helper()
	p, err := model.NewProblem(c, dir, rows, model.Limits{})
	require.NoError(t, err)
	return p
}

// Max 3x1 + 5x2
// s.t. x1 <= 4, 2x2 <= 12, 3x1 + 2x2 <= 18
func scenarioA(t *testing.T) *model.Problem {
	return newProblem(t, model.Maximize, []float64{3, 5},
		row(model.LE, 4, 1, 0),
		row(model.LE, 12, 0, 2),
		row(model.LE, 18, 3, 2),
	)
}

// Max x1 + x2
// s.t. x1 >= 1, x2 >= 1, x1 + x2 <= 1
func scenarioB(t *testing.T) *model.Problem {
	return newProblem(t, model.Maximize, []float64{1, 1},
		row(model.GE, 1, 1, 0),
		row(model.GE, 1, 0, 1),
		row(model.LE, 1, 1, 1),
	)
}

// Max x1 + x2
// s.t. x1 >= 0, x2 >= 0
func scenarioC(t *testing.T) *model.Problem {
	return newProblem(t, model.Maximize, []float64{1, 1},
		row(model.GE, 0, 1, 0),
		row(model.GE, 0, 0, 1),
	)
}

// Max 2x1 + 3x2
// s.t. x1 + x2 <= 4, x1 + 2x2 >= 2, x1 = 1
func scenarioD(t *testing.T) *model.Problem {
	return newProblem(t, model.Maximize, []float64{2, 3},
		row(model.LE, 4, 1, 1),
		row(model.GE, 2, 1, 2),
		row(model.EQ, 1, 1, 0),
	)
}

// Min 4x1 + 2x2
// s.t. x1 + x2 >= 3
func scenarioE(t *testing.T) *model.Problem {
	return newProblem(t, model.Minimize, []float64{4, 2}, row(model.GE, 3, 1, 1))
}

func TestSelect(t *testing.T) {
	assert.Equal(t, Graphical, Select(scenarioA(t)))

	le := newProblem(t, model.Maximize, []float64{1, 1, 1}, row(model.LE, 1, 1, 1, 1))
	assert.Equal(t, Standard, Select(le))

	ge := newProblem(t, model.Maximize, []float64{1, 1, 1}, row(model.GE, 1, 1, 1, 1))
	assert.Equal(t, BigM, Select(ge))

	negative := newProblem(t, model.Maximize, []float64{1, 1, 1}, row(model.LE, -1, -1, 1, 1))
	assert.Equal(t, BigM, Select(negative))
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"":          Auto,
		"AUTO":      Auto,
		"simplex":   Standard,
		"big-M":     BigM,
		"grafico":   Graphical,
		"graphical": Graphical,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStrategy("interior-point")
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestScenarios(t *testing.T) {
	for _, s := range []Strategy{Auto, BigM, Graphical} {
		t.Run(string(s), func(t *testing.T) {
			sol, err := Solve(scenarioA(t), WithStrategy(s), WithCrossCheck(true))
			require.NoError(t, err)
			require.Equal(t, model.Optimal, sol.Status)
			assert.InDelta(t, 36, sol.Objective, delta)
			assert.InDelta(t, 2, sol.Value(0), delta)
			assert.InDelta(t, 6, sol.Value(1), delta)

			sol, err = Solve(scenarioB(t), WithStrategy(s), WithCrossCheck(true))
			require.NoError(t, err)
			assert.Equal(t, model.Infeasible, sol.Status)

			sol, err = Solve(scenarioC(t), WithStrategy(s), WithCrossCheck(true))
			require.NoError(t, err)
			assert.Equal(t, model.Unbounded, sol.Status)

			sol, err = Solve(scenarioD(t), WithStrategy(s), WithCrossCheck(true))
			require.NoError(t, err)
			require.Equal(t, model.Optimal, sol.Status)
			assert.InDelta(t, 11, sol.Objective, delta)
			assert.InDelta(t, 1, sol.Value(0), delta)
			assert.InDelta(t, 3, sol.Value(1), delta)

			sol, err = Solve(scenarioE(t), WithStrategy(s), WithCrossCheck(true))
			require.NoError(t, err)
			require.Equal(t, model.Optimal, sol.Status)
			assert.InDelta(t, 6, sol.Objective, delta)
			assert.InDelta(t, 0, sol.Value(0), delta)
			assert.InDelta(t, 3, sol.Value(1), delta)
		})
	}
}

func TestSolveReportsStrategy(t *testing.T) {
	sol, err := Solve(scenarioA(t))
	require.NoError(t, err)
	assert.Equal(t, "graphical", sol.Strategy)
	assert.NotEmpty(t, sol.Vertices)

	sol, err = Solve(scenarioA(t), WithStrategy(Standard))
	require.NoError(t, err)
	assert.Equal(t, "standard", sol.Strategy)
	assert.Empty(t, sol.Vertices)
}

func TestSolveGraphicalNeedsTwoVariables(t *testing.T) {
	p := newProblem(t, model.Maximize, []float64{1, 1, 1}, row(model.LE, 1, 1, 1, 1))
	_, err := Solve(p, WithStrategy(Graphical))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestSolveLimits(t *testing.T) {
	c := make([]float64, 11)
	coefs := make([]float64, 11)
	for j := range c {
		c[j], coefs[j] = 1, 1
	}
	p := newProblem(t, model.Maximize, c, row(model.LE, 1, coefs...))

	_, err := Solve(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
	// same wording as model.NewProblem
	_, perr := model.NewProblem(c, model.Maximize, []model.Constraint{row(model.LE, 1, coefs...)}, model.DefaultLimits)
	require.Error(t, perr)
	assert.Equal(t, perr.Error(), err.Error())

	sol, err := Solve(p, WithLimits(model.Limits{}))
	require.NoError(t, err)
	assert.InDelta(t, 1, sol.Objective, delta)

	_, err = Solve(p, WithLimits(model.Limits{MinVariables: 5, MaxVariables: 2}))
	assert.Error(t, err)
}

func TestSolveIterationLimit(t *testing.T) {
	_, err := Solve(scenarioA(t), WithStrategy(Standard), WithSimplexOptions(simplex.WithMaxIterations(1)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, simplex.ErrIterationLimit))
}

func TestSolveRejectsBadSimplexOption(t *testing.T) {
	_, err := Solve(scenarioA(t), WithSimplexOptions(simplex.WithTolerance(0)))
	assert.Error(t, err)
}

func TestGraphicalAgreesWithBigM(t *testing.T) {
	problems := []*model.Problem{
		scenarioA(t), scenarioB(t), scenarioC(t), scenarioD(t), scenarioE(t),
		// Min x1 + x2 s.t. x1 + 2x2 >= 4, 3x1 + x2 >= 6
		newProblem(t, model.Minimize, []float64{1, 1},
			row(model.GE, 4, 1, 2),
			row(model.GE, 6, 3, 1),
		),
		// Max x1 + 2x2 s.t. x1 - x2 >= -2, x1 + x2 <= 6
		newProblem(t, model.Maximize, []float64{1, 2},
			row(model.GE, -2, 1, -1),
			row(model.LE, 6, 1, 1),
		),
	}
	for i, p := range problems {
		g, err := Solve(p, WithStrategy(Graphical))
		require.NoError(t, err, i)
		b, err := Solve(p, WithStrategy(BigM))
		require.NoError(t, err, i)

		require.Equal(t, b.Status, g.Status, "problem %d", i)
		if g.IsOptimal() {
			assert.InDelta(t, b.Objective, g.Objective, delta, "problem %d", i)
		}
	}
}

func TestStandardAgreesWithBigM(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for k := range 25 {
		n, m := 3+rng.Intn(3), 2+rng.Intn(4)
		c := make([]float64, n)
		for j := range c {
			c[j] = float64(1 + rng.Intn(9))
		}
		rows := make([]model.Constraint, m)
		for i := range rows {
			coefs := make([]float64, n)
			for j := range coefs {
				coefs[j] = float64(1 + rng.Intn(9))
			}
			rows[i] = row(model.LE, float64(10+rng.Intn(40)), coefs...)
		}
		p := newProblem(t, model.Maximize, c, rows...)

		std, err := Solve(p, WithStrategy(Standard))
		require.NoError(t, err)
		big, err := Solve(p, WithStrategy(BigM))
		require.NoError(t, err)

		require.Equal(t, model.Optimal, std.Status)
		require.Equal(t, model.Optimal, big.Status)
		assert.InDelta(t, std.Objective, big.Objective, delta, "problem %d:\n%v", k, p)
		assert.NoError(t, CrossCheck(p, std), "problem %d", k)
		assert.True(t, p.Feasible(std.Variables, 1e-6), "problem %d", k)
	}
}

// Min 2x1 + 3x2 + x3
// s.t. x1 + x2 >= 2, x1 + x3 <= 5, x2 + x3 >= 1
func TestDualityLaw(t *testing.T) {
	rows := []model.Constraint{
		row(model.GE, 2, 1, 1, 0),
		row(model.LE, 5, 1, 0, 1),
		row(model.GE, 1, 0, 1, 1),
	}
	c := []float64{2, 3, 1}
	neg := []float64{-2, -3, -1}

	for _, s := range []Strategy{Standard, BigM} {
		lo, err := Solve(newProblem(t, model.Minimize, c, rows...), WithStrategy(s))
		require.NoError(t, err)
		hi, err := Solve(newProblem(t, model.Maximize, neg, rows...), WithStrategy(s))
		require.NoError(t, err)

		require.Equal(t, model.Optimal, lo.Status)
		assert.InDelta(t, -hi.Objective, lo.Objective, delta)
		assert.InDelta(t, 5, lo.Objective, delta)
	}
}

func TestSolveIsIdempotent(t *testing.T) {
	p := scenarioD(t)
	for _, s := range []Strategy{Standard, BigM, Graphical} {
		first, err := Solve(p, WithStrategy(s))
		require.NoError(t, err)
		second, err := Solve(p, WithStrategy(s))
		require.NoError(t, err)
		assert.Equal(t, first, second, s)
	}
}

func TestCrossCheckDetectsMismatch(t *testing.T) {
	p := scenarioA(t)
	err := CrossCheck(p, &model.Solution{Status: model.Optimal, Objective: 35, Variables: []float64{2, 6}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMismatch))

	err = CrossCheck(p, &model.Solution{Status: model.Unbounded, Variables: []float64{0, 0}})
	assert.True(t, errors.Is(err, ErrMismatch))
}

func TestReference(t *testing.T) {
	status, z, err := Reference(scenarioE(t))
	require.NoError(t, err)
	assert.Equal(t, model.Optimal, status)
	assert.InDelta(t, 6, z, delta)

	status, _, err = Reference(scenarioB(t))
	require.NoError(t, err)
	assert.Equal(t, model.Infeasible, status)
}

func TestSolveAll(t *testing.T) {
	var problems []*model.Problem
	for range 20 {
		problems = append(problems, scenarioA(t), scenarioB(t), scenarioD(t))
	}
	three := newProblem(t, model.Maximize, []float64{1, 1, 1}, row(model.LE, 1, 1, 1, 1))
	problems = append(problems, three)

	results, err := SolveAll(context.Background(), problems, 4, WithStrategy(BigM))
	require.NoError(t, err)
	require.Len(t, results, len(problems))
	for i := 0; i < 60; i += 3 {
		require.NoError(t, results[i].Err)
		assert.InDelta(t, 36, results[i].Solution.Objective, delta)
		assert.Equal(t, model.Infeasible, results[i+1].Solution.Status)
		assert.InDelta(t, 11, results[i+2].Solution.Objective, delta)
	}
	assert.InDelta(t, 1, results[60].Solution.Objective, delta)
}

func TestSolveAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SolveAll(ctx, []*model.Problem{scenarioA(t)}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

// Every cost is non-positive, so x = 0 is optimal; gonum's simplex used to
// cycle on the raw thousands-sized costs.
func TestCrossCheckLargeCosts(t *testing.T) {
	p := newProblem(t, model.Maximize, []float64{0, -2000, -8000, -1000, -8000},
		row(model.LE, 10, 1, 1, 1, 0, 0),
		row(model.LE, 8, 2, 0, 0, -1, 1),
		row(model.LE, 6, 0, -1, 3, 1, 0),
	)
	sol, err := Solve(p)
	require.NoError(t, err)
	require.Equal(t, model.Optimal, sol.Status)
	assert.InDelta(t, 0, sol.Objective, delta)

	start := time.Now()
	assert.NoError(t, CrossCheck(p, sol))
	assert.Less(t, time.Since(start), ReferenceTimeout)

	// Max -1000x1 - 4000x2 - 7000x3
	// s.t. x1 + x2 + 5x3 <= 16, -3x1 + 7x2 - 3x3 <= 16
	p = newProblem(t, model.Maximize, []float64{-1000, -4000, -7000},
		row(model.LE, 16, 1, 1, 5),
		row(model.LE, 16, -3, 7, -3),
	)
	sol, err = Solve(p, WithCrossCheck(true))
	require.NoError(t, err)
	require.Equal(t, model.Optimal, sol.Status)
	assert.InDelta(t, 0, sol.Objective, delta)

	status, z, err := Reference(p)
	require.NoError(t, err)
	assert.Equal(t, model.Optimal, status)
	assert.InDelta(t, 0, z, delta)
}

func TestCrossCheckRedundantEqualities(t *testing.T) {
	// Max x1 + 2x2 + x3
	// s.t. x1 + x2 = 2, x1 + x2 = 2, x3 <= 1
	p := newProblem(t, model.Maximize, []float64{1, 2, 1},
		row(model.EQ, 2, 1, 1, 0),
		row(model.EQ, 2, 1, 1, 0),
		row(model.LE, 1, 0, 0, 1),
	)
	sol, err := Solve(p, WithCrossCheck(true))
	require.NoError(t, err)
	require.Equal(t, model.Optimal, sol.Status)
	assert.InDelta(t, 5, sol.Objective, delta)

	// more equality rows than gonum's standard form has columns
	one := newProblem(t, model.Minimize, []float64{3},
		row(model.EQ, 1, 1),
		row(model.EQ, 1, 1),
		row(model.EQ, 1, 1),
	)
	_, _, err = Reference(one)
	assert.ErrorIs(t, err, ErrNoReference)

	sol, err = Solve(one, WithCrossCheck(true))
	require.NoError(t, err)
	require.Equal(t, model.Optimal, sol.Status)
	assert.InDelta(t, 3, sol.Objective, delta)
	assert.InDelta(t, 1, sol.Value(0), delta)
}

func randomProblem(rng *rand.Rand, n, m int) (model.Direction, []float64, []model.Constraint) {
	dir := model.Maximize
	if rng.Intn(2) == 0 {
		dir = model.Minimize
	}
	c := make([]float64, n)
	for j := range c {
		c[j] = float64(rng.Intn(19) - 9)
	}
	relations := []model.Relation{model.LE, model.LE, model.GE, model.GE, model.EQ}
	rows := make([]model.Constraint, m)
	for i := range rows {
		coefs := make([]float64, n)
		for floats.Norm(coefs, 1) == 0 {
			for j := range coefs {
				coefs[j] = float64(rng.Intn(11) - 5)
			}
		}
		rows[i] = row(relations[rng.Intn(len(relations))], float64(rng.Intn(21)-10), coefs...)
	}
	return dir, c, rows
}

func scaled(c []float64, k float64) []float64 {
	out := make([]float64, len(c))
	for j, v := range c {
		out[j] = k * v
	}
	return out
}

func TestMixedRelationsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for k := range 150 {
		dir, c, rows := randomProblem(rng, 2+rng.Intn(3), 1+rng.Intn(4))
		p := newProblem(t, dir, c, rows...)

		base, err := Solve(p, WithStrategy(BigM))
		if errors.Is(err, simplex.ErrIterationLimit) {
			t.Logf("problem %d cycles, skipped:\n%v", k, p)
			continue
		}
		require.NoError(t, err, "problem %d", k)
		if base.IsOptimal() {
			assert.True(t, p.Feasible(base.Variables, 1e-6), "problem %d:\n%v", k, p)
		}

		for _, f := range []float64{100, 1000} {
			q := newProblem(t, dir, scaled(c, f), rows...)
			sol, err := Solve(q, WithStrategy(BigM))
			require.NoError(t, err, "problem %d x%g", k, f)
			require.Equal(t, base.Status, sol.Status, "problem %d x%g:\n%v", k, f, q)
			if base.IsOptimal() {
				assert.InDelta(t, base.Objective, sol.Objective/f, 1e-6*math.Max(1, math.Abs(base.Objective)), "problem %d x%g", k, f)
			}
		}

		if p.NumVars() == 2 {
			g, err := Solve(p, WithStrategy(Graphical))
			require.NoError(t, err, "problem %d", k)
			require.Equal(t, base.Status, g.Status, "problem %d:\n%v", k, p)
			if g.IsOptimal() {
				assert.InDelta(t, g.Objective, base.Objective, 1e-6*math.Max(1, math.Abs(g.Objective)), "problem %d", k)
			}
		}

		start := time.Now()
		assert.NoError(t, CrossCheck(p, base), "problem %d:\n%v", k, p)
		assert.Less(t, time.Since(start), ReferenceTimeout+time.Second, "problem %d", k)
	}
}
