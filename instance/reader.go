package instance

import (
	"math"
	"runtime"

	"github.com/lukpank/go-glpk/glpk"
	"github.com/pkg/errors"
	"q.log/lpsolve/model"
)

// MPS is a problem read from an MPS file.
type MPS struct {
	Problem *model.Problem
	// Columns holds the variable names in order.
	Columns []string
}

// ReadMPS reads a fixed-format MPS file with GLPK. Row ranges become a GE
// and an LE row; column bounds other than x >= 0 become extra rows.
func ReadMPS(filename string) (*MPS, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	lp := glpk.New()
	defer lp.Delete()
	if err := lp.ReadMPS(glpk.MPS_FILE, nil, filename); err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}

	n := lp.NumCols()
	dir := model.Minimize
	if lp.ObjDir() == glpk.MAX {
		dir = model.Maximize
	}

	//populate obj function
	c := make([]float64, n)
	names := make([]string, n)
	for j := range n {
		c[j] = lp.ObjCoef(j + 1)
		names[j] = lp.ColName(j + 1)
	}

	//populate constraints
	var rows []model.Constraint
	for i := range lp.NumRows() + 1 {
		if i == 0 {
			continue
		}
		coefs := make([]float64, n)
		idxs, vals := lp.MatRow(i)
		for k, j := range idxs {
			if j == 0 {
				continue
			}
			coefs[j-1] = vals[k]
		}
		rows = append(rows, boundRows(coefs, lp.RowLB(i), lp.RowUB(i))...)
	}

	for j := range n {
		lb, ub := lp.ColLB(j+1), lp.ColUB(j+1)
		if lb < 0 {
			return nil, model.Invalid(names[j], "lower bound %g: only non-negative variables are supported", lb)
		}
		unit := make([]float64, n)
		unit[j] = 1
		if lb == 0 {
			lb = -math.MaxFloat64
		}
		rows = append(rows, boundRows(unit, lb, ub)...)
	}

	p, err := model.NewProblem(c, dir, rows, model.Limits{})
	if err != nil {
		return nil, errors.Wrapf(err, "converting %s", filename)
	}
	return &MPS{Problem: p, Columns: names}, nil
}

// boundRows turns lb <= a·x <= ub into constraints. GLPK reports a missing
// bound as ±math.MaxFloat64.
func boundRows(a []float64, lb, ub float64) []model.Constraint {
	hasLB, hasUB := lb != -math.MaxFloat64, ub != math.MaxFloat64
	switch {
	case hasLB && hasUB && lb == ub:
		return []model.Constraint{{Coefficients: a, Relation: model.EQ, RHS: lb}}
	case hasLB && hasUB:
		return []model.Constraint{
			{Coefficients: a, Relation: model.GE, RHS: lb},
			{Coefficients: append([]float64(nil), a...), Relation: model.LE, RHS: ub},
		}
	case hasLB:
		return []model.Constraint{{Coefficients: a, Relation: model.GE, RHS: lb}}
	case hasUB:
		return []model.Constraint{{Coefficients: a, Relation: model.LE, RHS: ub}}
	default:
		return nil
	}
}
