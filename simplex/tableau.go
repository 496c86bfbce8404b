package simplex

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog"
	"q.log/lpsolve/model"
)

var (
	// ErrIterationLimit is returned when the pivot cap is hit before the
	// tableau reaches optimality or proves unboundedness.
	ErrIterationLimit = errors.New("simplex: iteration limit exceeded")

	// ErrNumerical is returned instead of dividing by a near-zero pivot.
	ErrNumerical = errors.New("simplex: near-zero pivot element")

	errNoBasis = errors.New("simplex: row has no identity column for the initial basis")
)

// priceNoise is the rounding noise tolerated in the objective row, relative
// to its largest coefficient. With big-M that coefficient is M, and a
// reduced cost of M*1e-15 left over from elimination must not enter.
const priceNoise = 1e-12

type Kind int

const (
	Original Kind = iota
	Slack
	Surplus
	Artificial
)

func (k Kind) String() string {
	switch k {
	case Original:
		return "x"
	case Slack:
		return "s"
	case Surplus:
		return "e"
	case Artificial:
		return "a"
	default:
		return "?"
	}
}

// Column describes one tableau column. Auxiliary columns carry a single
// non-zero entry in Row; Original columns ignore Row.
type Column struct {
	Kind Kind
	Row  int
}

// coefficient is the constraint-row entry an auxiliary column gets.
func (c Column) coefficient() float64 {
	if c.Kind == Surplus {
		return -1
	}
	return 1
}

// Tableau is a dense simplex tableau in maximization convention.
// Rows 0..m-1 are constraints and row m is the objective row; the last
// column is the right-hand side. The solution is optimal once every
// objective-row entry is non-negative.
type Tableau struct {
	t       *mat.Dense
	m       int
	columns []Column
	basis   []int
	tol     float64
	price   float64 // optimality threshold for the objective row

	iterations int
	trace      []model.Step
	tracing    bool
}

// Build lays out p with the given auxiliary columns appended after the
// original variables. Artificial columns get penalty in the objective row.
// Every row must own a Slack or Artificial column; those form the initial
// basis, and the objective row is reduced so that they price at zero.
func Build(p *model.Problem, extra []Column, penalty float64, tol float64) (*Tableau, error) {
	n := p.NumVars()
	m := p.NumConstraints()

	columns := make([]Column, 0, n+len(extra))
	for range n {
		columns = append(columns, Column{Kind: Original, Row: -1})
	}
	columns = append(columns, extra...)

	cols := len(columns) + 1
	rhs := cols - 1
	t := mat.NewDense(m+1, cols, nil)

	scale := math.Max(1, math.Abs(penalty))
	for j, c := range p.Objective() {
		t.Set(m, j, -c)
		scale = math.Max(scale, math.Abs(c))
	}
	for i := range m {
		for j := range n {
			t.Set(i, j, p.Coefficient(i, j))
		}
		t.Set(i, rhs, p.RHS(i))
	}

	basis := make([]int, m)
	for i := range basis {
		basis[i] = -1
	}
	for k, c := range extra {
		j := n + k
		if c.Row < 0 || c.Row >= m {
			return nil, errors.Errorf("simplex: column %d refers to row %d of %d", j, c.Row, m)
		}
		t.Set(c.Row, j, c.coefficient())
		switch c.Kind {
		case Slack, Artificial:
			if basis[c.Row] == -1 {
				basis[c.Row] = j
			}
		}
		if c.Kind == Artificial {
			t.Set(m, j, penalty)
		}
	}

	tab := &Tableau{
		t:       t,
		m:       m,
		columns: columns,
		basis:   basis,
		tol:     tol,
		price:   math.Max(tol, priceNoise*scale),
	}
	for i, b := range basis {
		if b == -1 {
			return nil, errors.Wrapf(errNoBasis, "row %d", i)
		}
		if p.RHS(i) < 0 {
			return nil, errors.Errorf("simplex: row %d has negative rhs %g", i, p.RHS(i))
		}
		if f := t.At(m, b); f != 0 {
			floats.AddScaled(t.RawRowView(m), -f, t.RawRowView(i))
		}
	}
	return tab, nil
}

func (t *Tableau) rhs() int {
	_, c := t.t.Dims()
	return c - 1
}

// Rows returns the number of constraint rows.
func (t *Tableau) Rows() int { return t.m }

// Columns returns the column layout, excluding the rhs.
func (t *Tableau) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

// Basis returns, for each constraint row, the index of its basic column.
func (t *Tableau) Basis() []int {
	return append([]int(nil), t.basis...)
}

// At returns the tableau entry in row i, column j. Column Columns() is the rhs.
func (t *Tableau) At(i, j int) float64 { return t.t.At(i, j) }

func (t *Tableau) Iterations() int { return t.iterations }

// FindPivotColumn returns the column with the most negative objective-row
// entry, the lowest index winning ties. ok is false once the tableau is
// optimal: no entry lies below the pricing threshold, which grows with M
// and the largest |c_j|.
func (t *Tableau) FindPivotColumn() (col int, ok bool) {
	obj := t.t.RawRowView(t.m)[:t.rhs()]
	best := -t.price
	col = -1
	for j, v := range obj {
		if v < best {
			best = v
			col = j
		}
	}
	return col, col != -1
}

// FindPivotRow runs the minimum-ratio test on col. Ratios within tolerance of
// each other are ties and go to the lowest row. ok is false when no row has a
// positive entry in col, i.e. the objective can grow without bound.
func (t *Tableau) FindPivotRow(col int) (row int, ok bool) {
	rhs := t.rhs()
	best := math.Inf(1)
	row = -1
	for i := range t.m {
		a := t.t.At(i, col)
		if a <= t.tol {
			continue
		}
		ratio := t.t.At(i, rhs) / a
		if ratio < best-t.tol {
			best = ratio
			row = i
		}
	}
	return row, row != -1
}

// Pivot makes col basic in row: the row is divided by the pivot element and
// col is eliminated from every other row, objective row included.
func (t *Tableau) Pivot(row, col int) error {
	p := t.t.At(row, col)
	if math.Abs(p) <= t.tol {
		return errors.Wrapf(ErrNumerical, "pivot (%d, %d) = %g", row, col, p)
	}

	pr := t.t.RawRowView(row)
	floats.Scale(1/p, pr)
	pr[col] = 1
	for i := range t.m + 1 {
		if i == row {
			continue
		}
		r := t.t.RawRowView(i)
		if f := r[col]; f != 0 {
			floats.AddScaled(r, -f, pr)
			r[col] = 0
		}
	}

	leaving := t.basis[row]
	t.basis[row] = col
	t.iterations++

	klog.V(4).Infof("pivot %d: column %s%d enters, column %s%d leaves row %d, z = %g",
		t.iterations, t.columns[col].Kind, col, t.columns[leaving].Kind, leaving, row, t.Objective())
	if klog.V(5) {
		klog.Infof("tableau after pivot %d:\n%v", t.iterations, t)
	}
	if t.tracing {
		t.trace = append(t.trace, model.Step{
			Iteration: t.iterations,
			Entering:  col,
			Leaving:   leaving,
			Row:       row,
			Objective: t.Objective(),
		})
	}
	return nil
}

// Run iterates FindPivotColumn, FindPivotRow and Pivot until the tableau is
// optimal or unbounded. Running out of iterations is an error.
func (t *Tableau) Run(maxIterations int) (model.Status, error) {
	for {
		col, ok := t.FindPivotColumn()
		if !ok {
			return model.Optimal, nil
		}
		if t.iterations >= maxIterations {
			return 0, errors.Wrapf(ErrIterationLimit, "after %d pivots", t.iterations)
		}
		row, ok := t.FindPivotRow(col)
		if !ok {
			klog.V(4).Infof("column %d has no positive entry: unbounded", col)
			return model.Unbounded, nil
		}
		if err := t.Pivot(row, col); err != nil {
			return 0, err
		}
	}
}

// Values returns the value of every column: the rhs of its row when basic,
// zero otherwise. Entries within tolerance of zero are reported as zero.
func (t *Tableau) Values() []float64 {
	x := make([]float64, len(t.columns))
	rhs := t.rhs()
	for i, b := range t.basis {
		v := t.t.At(i, rhs)
		if math.Abs(v) <= t.tol {
			v = 0
		}
		x[b] = v
	}
	return x
}

// Objective reads the objective value from the rhs cell of the objective row.
func (t *Tableau) Objective() float64 {
	return t.t.At(t.m, t.rhs())
}

// Solution extracts the values of the first n columns and the objective.
func (t *Tableau) Solution(n int) ([]float64, float64) {
	return t.Values()[:n], t.Objective()
}

func (t *Tableau) String() string {
	return fmt.Sprintf("basis = %v\n    %v", t.basis,
		mat.Formatted(t.t, mat.Prefix("    "), mat.Squeeze()))
}

// Trace returns the recorded pivots; empty unless tracing was enabled.
func (t *Tableau) Trace() []model.Step { return t.trace }

func (t *Tableau) setTracing(on bool) { t.tracing = on }
