package instance

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"q.log/lpsolve/graphical"
	"q.log/lpsolve/model"
	"sigs.k8s.io/yaml"
)

// Point is an (x1, x2) pair.
type Point [2]float64

// Boundary is one constraint line clipped to the plot box.
type Boundary struct {
	Row      int    `json:"row"`
	Relation string `json:"relation"`
	From     Point  `json:"from"`
	To       Point  `json:"to"`
}

// Response is returned for every solving strategy. Vertices, Region and
// the plot fields are only set by the graphical method; Error is set
// whenever no optimum is reported.
type Response struct {
	Solution     []float64 `json:"solution,omitempty"`
	OptimalValue *float64  `json:"optimal_value,omitempty"`
	Status       string    `json:"status,omitempty"`
	Strategy     string    `json:"strategy,omitempty"`
	Iterations   int       `json:"iterations,omitempty"`

	Vertices   []Point    `json:"vertices,omitempty"`
	Region     []Point    `json:"region,omitempty"`
	PlotLimit  float64    `json:"plot_limit,omitempty"`
	Boundaries []Boundary `json:"boundaries,omitempty"`

	Log []string `json:"log,omitempty"`

	Error string `json:"error,omitempty"`
}

// NewResponse describes the outcome of a solve call. A non-nil err wins
// over sol.
func NewResponse(sol *model.Solution, err error) *Response {
	if err != nil {
		return &Response{Error: err.Error()}
	}

	r := &Response{
		Solution:   sol.Variables,
		Status:     sol.Status.String(),
		Strategy:   sol.Strategy,
		Iterations: sol.Iterations,
	}
	if sol.IsOptimal() {
		z := sol.Objective
		r.OptimalValue = &z
	} else {
		r.Error = fmt.Sprintf("problem is %v", sol.Status)
	}

	for _, v := range sol.Vertices {
		r.Vertices = append(r.Vertices, Point{v.X1, v.X2})
	}
	for _, v := range graphical.Polygon(sol.Vertices) {
		r.Region = append(r.Region, Point{v.X1, v.X2})
	}
	if len(sol.Vertices) > 0 {
		r.PlotLimit = graphical.PlotLimit(sol.Vertices)
	}

	for _, s := range sol.Trace {
		r.Log = append(r.Log, fmt.Sprintf("iteration %d: column %d enters, column %d leaves at row %d, z = %g",
			s.Iteration, s.Entering, s.Leaving, s.Row, s.Objective))
	}
	return r
}

// AddBoundaries fills in the constraint lines of a graphical solution.
func (r *Response) AddBoundaries(p *model.Problem) {
	if r.PlotLimit == 0 || p.NumVars() != 2 {
		return
	}
	for _, s := range graphical.Boundaries(p, r.PlotLimit) {
		r.Boundaries = append(r.Boundaries, Boundary{
			Row:      s.Row,
			Relation: s.Relation.String(),
			From:     s.From,
			To:       s.To,
		})
	}
}

// Encode writes r as indented JSON or, for format "yaml", as YAML.
func (r *Response) Encode(w io.Writer, format string) error {
	return encode(w, r, format)
}

func encode(w io.Writer, v interface{}, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "encoding json")
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "encoding yaml")
		}
		_, err = w.Write(data)
		return errors.WithStack(err)
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}
