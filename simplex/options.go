package simplex

import "github.com/pkg/errors"

const (
	DefaultMaxIterations = 500
	DefaultBigMFactor    = 1e6
	DefaultTolerance     = 1e-9
)

// Options tunes a simplex run. The zero value is not usable; start from
// NewOptions.
type Options struct {
	// MaxIterations caps the number of pivots.
	MaxIterations int

	// BigMFactor is K in M = K * max(1, max|c_j|).
	BigMFactor float64

	// Tolerance is the magnitude under which tableau entries count as zero.
	Tolerance float64

	// Trace records every pivot in Solution.Trace.
	Trace bool
}

type Option func(*Options) error

func WithMaxIterations(n int) Option {
	return func(o *Options) error {
		if n < 1 {
			return errors.Errorf("max iterations must be positive, got %d", n)
		}
		o.MaxIterations = n
		return nil
	}
}

func WithBigMFactor(k float64) Option {
	return func(o *Options) error {
		if !(k >= 1) {
			return errors.Errorf("big-M factor must be at least 1, got %g", k)
		}
		o.BigMFactor = k
		return nil
	}
}

func WithTolerance(tol float64) Option {
	return func(o *Options) error {
		if !(tol > 0 && tol < 1e-3) {
			return errors.Errorf("tolerance must be in (0, 1e-3), got %g", tol)
		}
		o.Tolerance = tol
		return nil
	}
}

func WithTrace(on bool) Option {
	return func(o *Options) error {
		o.Trace = on
		return nil
	}
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) (Options, error) {
	o := Options{
		MaxIterations: DefaultMaxIterations,
		BigMFactor:    DefaultBigMFactor,
		Tolerance:     DefaultTolerance,
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return Options{}, errors.Wrap(err, "applying simplex option")
		}
	}
	return o, nil
}
