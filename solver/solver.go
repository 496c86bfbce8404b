// Package solver picks a solving strategy for a problem and runs it.
package solver

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog"
	"q.log/lpsolve/graphical"
	"q.log/lpsolve/model"
	"q.log/lpsolve/simplex"
)

type Strategy string

const (
	Auto      Strategy = "auto"
	Standard  Strategy = "standard"
	BigM      Strategy = "bigm"
	Graphical Strategy = "graphical"
)

// ParseStrategy accepts the strategy names plus the aliases used by the
// HTTP routes.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "standard", "simplex":
		return Standard, nil
	case "bigm", "big-m":
		return BigM, nil
	case "graphical", "grafico":
		return Graphical, nil
	}
	return "", model.Invalid("strategy", "unknown strategy %q", s)
}

// Select is the decision table: two variables go to the graphical method,
// LE rows with non-negative rhs to the standard simplex, the rest to big-M.
func Select(p *model.Problem) Strategy {
	switch {
	case p.NumVars() == 2:
		return Graphical
	case p.AllLE():
		return Standard
	default:
		return BigM
	}
}

type Options struct {
	Strategy   Strategy
	Limits     model.Limits
	CrossCheck bool
	Simplex    []simplex.Option
	Graphical  []graphical.Option
}

type Option func(*Options) error

func WithStrategy(s Strategy) Option {
	return func(o *Options) error {
		if _, err := ParseStrategy(string(s)); err != nil {
			return err
		}
		o.Strategy = s
		return nil
	}
}

// WithLimits bounds the problem size accepted by Solve. The zero Limits
// accepts any size.
func WithLimits(l model.Limits) Option {
	return func(o *Options) error {
		if l.MinVariables > l.MaxVariables && l.MaxVariables != 0 {
			return errors.Errorf("variable limits %d..%d are empty", l.MinVariables, l.MaxVariables)
		}
		if l.MinConstraints > l.MaxConstraints && l.MaxConstraints != 0 {
			return errors.Errorf("constraint limits %d..%d are empty", l.MinConstraints, l.MaxConstraints)
		}
		o.Limits = l
		return nil
	}
}

// WithCrossCheck verifies every solution against gonum's simplex.
func WithCrossCheck(on bool) Option {
	return func(o *Options) error {
		o.CrossCheck = on
		return nil
	}
}

func WithSimplexOptions(opts ...simplex.Option) Option {
	return func(o *Options) error {
		if _, err := simplex.NewOptions(opts...); err != nil {
			return err
		}
		o.Simplex = append(o.Simplex, opts...)
		return nil
	}
}

func WithGraphicalOptions(opts ...graphical.Option) Option {
	return func(o *Options) error {
		o.Graphical = append(o.Graphical, opts...)
		return nil
	}
}

func newOptions(opts ...Option) (Options, error) {
	o := Options{Strategy: Auto, Limits: model.DefaultLimits}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return Options{}, errors.Wrap(err, "applying solver option")
		}
	}
	return o, nil
}

// Solve runs the selected strategy on p. Minimization is handled by each
// strategy, so the reported objective is always in p's own direction.
func Solve(p *model.Problem, opts ...Option) (*model.Solution, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	if err := o.Limits.Check(p.NumVars(), p.NumConstraints()); err != nil {
		return nil, err
	}

	strategy := o.Strategy
	if strategy == Auto {
		strategy = Select(p)
	}
	klog.V(2).Infof("solving %d x %d problem with %s", p.NumConstraints(), p.NumVars(), strategy)

	var sol *model.Solution
	switch strategy {
	case Standard:
		sol, err = simplex.SolveStandard(p, o.Simplex...)
	case BigM:
		sol, err = simplex.SolveBigM(p, o.Simplex...)
	case Graphical:
		sol, err = graphical.Solve(p, o.Graphical...)
	default:
		return nil, model.Invalid("strategy", "unknown strategy %q", strategy)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s", strategy)
	}

	if o.CrossCheck {
		if err := CrossCheck(p, sol); err != nil {
			return sol, err
		}
	}
	return sol, nil
}

// Result pairs a batch entry with its outcome.
type Result struct {
	Solution *model.Solution
	Err      error
}

// SolveAll solves problems concurrently, at most workers at a time. A
// failing problem is reported in its Result and does not stop the others;
// the returned error is only set when ctx is cancelled.
func SolveAll(ctx context.Context, problems []*model.Problem, workers int, opts ...Option) ([]Result, error) {
	results := make([]Result, len(problems))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, p := range problems {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sol, err := Solve(p, opts...)
			results[i] = Result{Solution: sol, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
