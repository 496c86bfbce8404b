// Package server exposes the solver over HTTP.
package server

import (
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog"
	"q.log/lpsolve/instance"
	"q.log/lpsolve/model"
	"q.log/lpsolve/simplex"
	"q.log/lpsolve/solver"
)

const DefaultMaxBodyBytes = 1 << 20

type config struct {
	limits       model.Limits
	solverOpts   []solver.Option
	maxBodyBytes int64
	registry     *prometheus.Registry
}

type Option func(*config)

// WithLimits bounds the size of accepted problems.
func WithLimits(l model.Limits) Option {
	return func(c *config) { c.limits = l }
}

// WithSolverOptions is applied to every solve call, before the strategy
// chosen by the route or the request.
func WithSolverOptions(opts ...solver.Option) Option {
	return func(c *config) { c.solverOpts = append(c.solverOpts, opts...) }
}

func WithMaxBodyBytes(n int64) Option {
	return func(c *config) { c.maxBodyBytes = n }
}

// WithRegistry registers the server's metrics on r instead of a private registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(c *config) { c.registry = r }
}

// Server routes solve requests and serves metrics. It holds no state
// between requests besides its metrics, so requests are solved concurrently.
type Server struct {
	mux    *http.ServeMux
	config config

	solves     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	iterations *prometheus.HistogramVec
}

func New(opts ...Option) *Server {
	c := config{
		limits:       model.DefaultLimits,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}

	s := &Server{
		mux:    http.NewServeMux(),
		config: c,
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lpsolve_solves_total",
			Help: "Counts solve requests by strategy and outcome.",
		}, []string{"strategy", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lpsolve_solve_duration_seconds",
			Help:    "Time spent solving, by strategy.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"strategy"}),
		iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lpsolve_pivots",
			Help:    "Simplex pivots per solved problem, by strategy.",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		}, []string{"strategy"}),
	}
	c.registry.MustRegister(s.solves, s.duration, s.iterations)

	s.mux.Handle("POST /api/solve", s.solveHandler(solver.Auto))
	s.mux.Handle("POST /api/simplex", s.solveHandler(solver.Standard))
	s.mux.Handle("POST /api/bigm", s.solveHandler(solver.BigM))
	s.mux.Handle("POST /api/grafico", s.solveHandler(solver.Graphical))
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// solveHandler answers with an instance.Response. A route strategy of
// solver.Auto lets the request pick one.
func (s *Server) solveHandler(route solver.Strategy) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.maxBodyBytes))
		if err != nil {
			s.fail(w, route, http.StatusRequestEntityTooLarge, errors.Wrap(err, "reading request"))
			return
		}
		req, err := instance.Decode(body)
		if err != nil {
			s.fail(w, route, http.StatusBadRequest, err)
			return
		}

		strategy := route
		if strategy == solver.Auto {
			if strategy, err = solver.ParseStrategy(req.Strategy); err != nil {
				s.fail(w, route, http.StatusBadRequest, err)
				return
			}
		}

		p, err := req.Problem(s.config.limits)
		if err != nil {
			s.fail(w, strategy, http.StatusBadRequest, err)
			return
		}
		if strategy == solver.Auto {
			strategy = solver.Select(p)
		}
		klog.V(2).Infof("%s %s: %d x %d problem", r.Method, r.URL.Path, p.NumConstraints(), p.NumVars())

		opts := append(append([]solver.Option(nil), s.config.solverOpts...),
			solver.WithStrategy(strategy), solver.WithLimits(s.config.limits))
		start := time.Now()
		sol, err := solver.Solve(p, opts...)
		s.duration.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())
		if err != nil {
			s.fail(w, strategy, statusFor(err), err)
			return
		}

		s.solves.WithLabelValues(string(strategy), sol.Status.String()).Inc()
		s.iterations.WithLabelValues(string(strategy)).Observe(float64(sol.Iterations))
		resp := instance.NewResponse(sol, nil)
		resp.AddBoundaries(p)
		write(w, http.StatusOK, resp)
	})
}

// statusFor maps solver errors to HTTP codes. Infeasible and unbounded
// problems are not errors and are answered with 200.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, simplex.ErrIterationLimit), errors.Is(err, simplex.ErrNumerical):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, strategy solver.Strategy, code int, err error) {
	label := "error"
	if code == http.StatusBadRequest {
		label = "invalid"
	}
	s.solves.WithLabelValues(string(strategy), label).Inc()
	if code >= http.StatusInternalServerError {
		klog.Errorf("solve failed: %+v", err)
	} else {
		klog.V(2).Infof("rejected request: %v", err)
	}
	write(w, code, instance.NewResponse(nil, err))
}

func write(w http.ResponseWriter, code int, resp *instance.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := resp.Encode(w, "json"); err != nil {
		klog.Errorf("writing response: %v", err)
	}
}
