// Command taski demonstrates the taski executor against the bundled
// examples package, wiring viper configuration and a zerolog Observer
// around a cobra command tree.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ahogappa/taski"
	"github.com/ahogappa/taski/examples"
	"github.com/ahogappa/taski/internal/analyzer"
	"github.com/ahogappa/taski/internal/config"
	"github.com/ahogappa/taski/internal/obslog"
)

// Exit codes, grounded on the teacher's internal/cli ExitSuccess /
// ExitConfigError / ExitGraphFailure / ExitInternalError scheme.
const (
	exitSuccess      = 0
	exitConfigError  = 2
	exitGraphFailure = 3
	exitInternalError = 1
)

var (
	cfgFile string
	scenario string
	clean    bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		// cobra already printed the error; translate to the right exit code.
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taski",
		Short: "Run one of taski's bundled example task graphs",
		RunE:  runScenario,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (default .taski.yaml)")
	cmd.Flags().StringVar(&scenario, "scenario", "linear-chain", "scenario to run: linear-chain, diamond, parallel, cycle, dependency-failure, deadlock-race")
	cmd.Flags().BoolVar(&clean, "clean", false, "run Clean instead of Run")
	cmd.AddCommand(newAnalyzeCmd())
	return cmd
}

// newAnalyzeCmd exposes internal/analyzer as a standalone lint: it loads
// a package's source and reports the Get-based dependencies it can
// discover between package-level task variables, as a cross-check
// against their declared StaticDependencies. It never participates in
// scheduling a Run/Clean call, so it is its own subcommand rather than a
// flag on the root command.
func newAnalyzeCmd() *cobra.Command {
	var pkgPattern string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Statically cross-check Get-based task dependencies in a package",
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := analyzer.Analyze(pkgPattern, "github.com/ahogappa/taski")
			if err != nil {
				return &exitError{code: exitInternalError, err: err}
			}
			if len(rep.TaskVars) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no package-level task variables found")
				return nil
			}
			for _, v := range rep.TaskVars {
				fmt.Fprintf(cmd.OutOrStdout(), "task: %s\n", v)
			}
			for _, e := range rep.Edges {
				fmt.Fprintf(cmd.OutOrStdout(), "edge: %s -> %s\n", e.From, e.To)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pkgPattern, "package", "github.com/ahogappa/taski/examples", "package pattern to analyze")
	return cmd
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return &exitError{code: exitConfigError, err: fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)}
	}
	var logger zerolog.Logger
	if cfg.LogFormat == "json" {
		logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	}
	observer := obslog.New(logger)

	task, err := scenarioTask(scenario)
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}

	opts := []taski.Option{taski.WithObserver(observer)}
	if cfg.Workers > 0 {
		opts = append(opts, taski.WithWorkers(cfg.Workers))
	}

	var value any
	if clean {
		value, err = taski.Clean(task, opts...)
	} else {
		value, err = taski.Run(task, opts...)
	}
	if err != nil {
		return &exitError{code: exitGraphFailure, err: err}
	}

	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func scenarioTask(name string) (taski.Task, error) {
	switch name {
	case "linear-chain":
		return examples.NewLinearChain(), nil
	case "diamond":
		return examples.NewDiamond(), nil
	case "parallel":
		return examples.NewParallelIndependence(100 * time.Millisecond), nil
	case "cycle":
		return examples.NewThreeCycle(), nil
	case "dependency-failure":
		return examples.NewDependencyFailure(), nil
	case "deadlock-race":
		return examples.NewDeadlockRace(1 * time.Second), nil
	default:
		return nil, fmt.Errorf("unknown scenario %q", name)
	}
}

// exitError carries the process exit code alongside the underlying
// error, so main's boundary can translate it deterministically.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var ee *exitError
	if as(err, &ee) {
		return ee.code
	}
	return exitInternalError
}

func as(err error, target **exitError) bool {
	ee, ok := err.(*exitError)
	if !ok {
		return false
	}
	*target = ee
	return true
}
