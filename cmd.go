package main

import (
	"context"
	goflag "flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"k8s.io/klog"
	"q.log/lpsolve/instance"
	"q.log/lpsolve/model"
	"q.log/lpsolve/server"
	"q.log/lpsolve/simplex"
	"q.log/lpsolve/solver"
)

const envPrefix = "LPSOLVE"

// NewCommand builds the lpsolve command tree. Every flag can also be set
// as LPSOLVE_<FLAG> in the environment or in the --config file.
func NewCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "lpsolve",
		Short:         "Solve small linear programs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return errors.WithStack(err)
			}
			if path := v.GetString("config"); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return errors.Wrapf(err, "reading config %s", path)
				}
				klog.V(2).Infof("using config %s", v.ConfigFileUsed())
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML file with flag values")
	flags.String("strategy", "auto", "solving method: auto, standard, bigm or graphical")
	flags.Int("max-iterations", simplex.DefaultMaxIterations, "pivot limit for the simplex methods")
	flags.Float64("bigm-factor", simplex.DefaultBigMFactor, "K in M = K * max(1, max|c|)")
	flags.Float64("tolerance", simplex.DefaultTolerance, "values below this magnitude count as zero")
	flags.Bool("trace", false, "include every pivot in the output")
	flags.Bool("cross-check", false, "verify results against gonum's simplex")
	flags.Int("max-variables", model.DefaultLimits.MaxVariables, "largest accepted number of variables, 0 for no limit")
	flags.Int("max-constraints", model.DefaultLimits.MaxConstraints, "largest accepted number of constraints, 0 for no limit")

	fs := goflag.NewFlagSet("klog", goflag.ExitOnError)
	klog.InitFlags(fs)
	flags.AddGoFlagSet(fs)

	root.AddCommand(newSolveCommand(v), newMPSCommand(v), newServeCommand(v))
	return root
}

func limits(v *viper.Viper) model.Limits {
	l := model.DefaultLimits
	l.MaxVariables = v.GetInt("max-variables")
	l.MaxConstraints = v.GetInt("max-constraints")
	return l
}

func solverOptions(v *viper.Viper) ([]solver.Option, error) {
	strategy, err := solver.ParseStrategy(v.GetString("strategy"))
	if err != nil {
		return nil, err
	}
	simplexOpts := []simplex.Option{
		simplex.WithMaxIterations(v.GetInt("max-iterations")),
		simplex.WithBigMFactor(v.GetFloat64("bigm-factor")),
		simplex.WithTolerance(v.GetFloat64("tolerance")),
		simplex.WithTrace(v.GetBool("trace")),
	}
	if _, err := simplex.NewOptions(simplexOpts...); err != nil {
		return nil, err
	}
	return []solver.Option{
		solver.WithStrategy(strategy),
		solver.WithLimits(limits(v)),
		solver.WithCrossCheck(v.GetBool("cross-check")),
		solver.WithSimplexOptions(simplexOpts...),
	}, nil
}

func addOutputFlag(flags *pflag.FlagSet) {
	flags.StringP("output", "o", "json", "output format: json or yaml")
}

func newSolveCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve FILE...",
		Short: "Solve problems written as JSON or YAML requests",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd.Context(), cmd.OutOrStdout(), v, args)
		},
	}
	addOutputFlag(cmd.Flags())
	cmd.Flags().Int("workers", 4, "problems solved in parallel")
	return cmd
}

func runSolve(ctx context.Context, out io.Writer, v *viper.Viper, files []string) error {
	opts, err := solverOptions(v)
	if err != nil {
		return err
	}

	problems := make([]*model.Problem, len(files))
	requested := make([]solver.Strategy, len(files))
	for i, f := range files {
		req, err := instance.ReadFile(f)
		if err != nil {
			return err
		}
		if problems[i], err = req.Problem(limits(v)); err != nil {
			return errors.Wrapf(err, "%s", f)
		}
		if requested[i], err = solver.ParseStrategy(req.Strategy); err != nil {
			return errors.Wrapf(err, "%s", f)
		}
	}

	// a strategy named in a file wins over the flag
	var results []solver.Result
	if allAuto(requested) {
		results, err = solver.SolveAll(ctx, problems, v.GetInt("workers"), opts...)
		if err != nil {
			return err
		}
	} else {
		for i, p := range problems {
			fileOpts := opts
			if requested[i] != solver.Auto {
				fileOpts = append(append([]solver.Option(nil), opts...), solver.WithStrategy(requested[i]))
			}
			sol, err := solver.Solve(p, fileOpts...)
			results = append(results, solver.Result{Solution: sol, Err: err})
		}
	}

	failed := 0
	for i, res := range results {
		if res.Err != nil {
			failed++
			klog.Errorf("%s: %v", files[i], res.Err)
		}
		resp := instance.NewResponse(res.Solution, res.Err)
		if res.Err == nil {
			resp.AddBoundaries(problems[i])
		}
		if len(files) > 1 {
			fmt.Fprintf(out, "# %s\n", files[i])
		}
		if err := resp.Encode(out, v.GetString("output")); err != nil {
			return err
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d problems failed", failed, len(files))
	}
	return nil
}

func allAuto(ss []solver.Strategy) bool {
	for _, s := range ss {
		if s != solver.Auto {
			return false
		}
	}
	return true
}

func newMPSCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mps FILE",
		Short: "Solve a problem stored in fixed MPS format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := instance.ReadMPS(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if v.GetBool("to-request") {
				return instance.NewRequest(m.Problem).Encode(out, v.GetString("output"))
			}

			opts, err := solverOptions(v)
			if err != nil {
				return err
			}
			// MPS files are not held to the form limits
			opts = append(opts, solver.WithLimits(model.Limits{}))
			sol, err := solver.Solve(m.Problem, opts...)
			if err != nil {
				return err
			}
			klog.V(2).Infof("variables %v", m.Columns)
			return instance.NewResponse(sol, nil).Encode(out, v.GetString("output"))
		},
	}
	addOutputFlag(cmd.Flags())
	cmd.Flags().Bool("to-request", false, "print the problem as a request instead of solving it")
	return cmd
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the solver over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := solverOptions(v)
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			handler := server.New(
				server.WithLimits(limits(v)),
				server.WithSolverOptions(opts...),
				server.WithMaxBodyBytes(v.GetInt64("max-body-bytes")),
				server.WithRegistry(registry),
			)

			srv := &http.Server{
				Addr:              v.GetString("addr"),
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				klog.Infof("listening on %s", srv.Addr)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return errors.WithStack(err)
			case <-ctx.Done():
			}
			klog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return errors.WithStack(srv.Shutdown(shutdownCtx))
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Int64("max-body-bytes", server.DefaultMaxBodyBytes, "largest accepted request body")
	return cmd
}
