// Package instance converts between problem files, HTTP bodies and the
// solver's model.
package instance

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"q.log/lpsolve/model"
	"sigs.k8s.io/yaml"
)

// Request is a problem as submitted by a client. A row with no entry in
// ConstraintsType is taken as "<=", and an empty Sense as "max".
type Request struct {
	C               []float64   `json:"c"`
	A               [][]float64 `json:"A"`
	B               []float64   `json:"b"`
	Sense           string      `json:"sense,omitempty"`
	ConstraintsType []string    `json:"constraints_type,omitempty"`

	// Strategy optionally forces a solving method.
	Strategy string `json:"strategy,omitempty"`
}

// Decode parses a request written in JSON or YAML.
func Decode(data []byte) (*Request, error) {
	var r Request
	if err := yaml.UnmarshalStrict(data, &r); err != nil {
		return nil, errors.WithStack(&model.InvalidInputError{Reason: err.Error()})
	}
	return &r, nil
}

// ReadFile decodes the request stored at path.
func ReadFile(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	r, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return r, nil
}

// Problem validates the request and builds the model it describes.
func (r *Request) Problem(limits model.Limits) (*model.Problem, error) {
	if len(r.A) != len(r.B) {
		return nil, model.Invalid("b", "has %d entries for %d rows of A", len(r.B), len(r.A))
	}
	if len(r.ConstraintsType) > 0 && len(r.ConstraintsType) != len(r.A) {
		return nil, model.Invalid("constraints_type", "has %d entries for %d rows of A", len(r.ConstraintsType), len(r.A))
	}

	sense := r.Sense
	if sense == "" {
		sense = "max"
	}
	dir, err := model.ParseDirection(sense)
	if err != nil {
		return nil, err
	}

	rows := make([]model.Constraint, len(r.A))
	for i := range r.A {
		rel := model.LE
		if len(r.ConstraintsType) > 0 {
			rel, err = model.ParseRelation(r.ConstraintsType[i])
			if err != nil {
				return nil, model.Invalid(fmt.Sprintf("constraints_type[%d]", i), "%q is not one of <=, >=, =", r.ConstraintsType[i])
			}
		}
		rows[i] = model.Constraint{Coefficients: r.A[i], Relation: rel, RHS: r.B[i]}
	}
	return model.NewProblem(r.C, dir, rows, limits)
}

// NewRequest is the inverse of Request.Problem.
func NewRequest(p *model.Problem) *Request {
	r := &Request{
		C:     p.Objective(),
		Sense: "max",
	}
	if p.Direction() == model.Minimize {
		r.Sense = "min"
	}
	for _, c := range p.Constraints() {
		r.A = append(r.A, c.Coefficients)
		r.B = append(r.B, c.RHS)
		r.ConstraintsType = append(r.ConstraintsType, c.Relation.String())
	}
	return r
}

// Encode writes r as indented JSON or, for format "yaml", as YAML.
func (r *Request) Encode(w io.Writer, format string) error {
	return encode(w, r, format)
}
