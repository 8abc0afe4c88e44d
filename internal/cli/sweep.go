package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/LukasVik/funny-fifo/internal/config"
	"github.com/LukasVik/funny-fifo/internal/store"
	"github.com/LukasVik/funny-fifo/internal/sweep"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	Database    string
	Name        string
	Parallel    int
	RandomSeeds int
}

// PointSummary is one point of a sweep in command output.
type PointSummary struct {
	Index     int    `json:"index"`
	Seed      uint64 `json:"seed"`
	DataWidth int    `json:"data_width"`
	FIFODepth int    `json:"fifo_depth"`
	State     string `json:"state"`
	Message   string `json:"message,omitempty"`
	Digest    string `json:"digest,omitempty"`
}

// SweepOutput is the result of the sweep command.
type SweepOutput struct {
	SweepID  string         `json:"sweep_id,omitempty"`
	Name     string         `json:"name"`
	Points   int            `json:"points"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Failures []PointSummary `json:"failures"`
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep [plan.cue]",
		Short: "Run a parameter sweep",
		Long: `Run every point of a sweep plan: each seed (regression seeds first, then
fresh ones) against each data width and FIFO depth.

The plan is a CUE file; without one the default plan is used. Flags override
the plan. With --db every finished point is stored, and a failing point can
later be rerun with "funny-fifo replay".

Exit codes:
  0 - Every point passed
  1 - One or more points failed
  2 - Command error (invalid plan, database error, etc.)

Examples:
  funny-fifo sweep
  funny-fifo sweep nightly.cue --db results.db
  funny-fifo sweep --random-seeds 100 --parallel 8 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			planFile := ""
			if len(args) == 1 {
				planFile = args[0]
			}
			return runSweep(opts, planFile, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "store results in this SQLite database")
	cmd.Flags().StringVar(&opts.Name, "name", "", "sweep name (overrides the plan)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "points run at once (overrides the plan)")
	cmd.Flags().IntVar(&opts.RandomSeeds, "random-seeds", 0, "fresh seeds (overrides the plan)")

	return cmd
}

// loadPlan reads the plan file, if any, and applies flag overrides.
func (o *SweepOptions) loadPlan(planFile string, cmd *cobra.Command) (sweep.Plan, error) {
	plan := sweep.DefaultPlan()
	if planFile != "" {
		s, err := config.LoadSweep(planFile)
		if err != nil {
			return sweep.Plan{}, err
		}
		plan = s.Plan()
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		plan.Name = o.Name
	}
	if flags.Changed("parallel") {
		plan.Parallel = o.Parallel
	}
	if flags.Changed("random-seeds") {
		plan.RandomSeeds = o.RandomSeeds
	}
	if err := plan.Validate(); err != nil {
		return sweep.Plan{}, err
	}
	return plan, nil
}

func runSweep(opts *SweepOptions, planFile string, cmd *cobra.Command) error {
	plan, err := opts.loadPlan(planFile, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid sweep plan", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	runOpts := []sweep.Option{sweep.WithLogger(logger)}

	out := SweepOutput{Name: plan.Name, Points: plan.Size(), Failures: []PointSummary{}}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", slog.Any("error", closeErr))
			}
		}()

		sw, err := st.CreateSweep(ctx, plan, plan.Size())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record sweep", err)
		}
		out.SweepID = sw.ID
		runOpts = append(runOpts, sweep.WithSink(st.Sink(sw.ID)))
		logger.Info("sweep recorded", slog.String("id", sw.ID), slog.Int64("seq", sw.Seq))
	}

	report, err := sweep.NewRunner(runOpts...).Run(ctx, plan)
	if err != nil {
		return WrapExitError(ExitCommandError, "sweep aborted", err)
	}

	out.Passed = report.Passed
	out.Failed = report.Failed
	for _, pr := range report.Failures() {
		out.Failures = append(out.Failures, summarize(pr))
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		var cliErr *CLIError
		if !report.OK() {
			cliErr = &CLIError{Code: "E_SWEEP_FAILED", Message: fmt.Sprintf("%d point(s) failed", report.Failed)}
		}
		if err := writeJSON(w, out, cliErr); err != nil {
			return err
		}
	} else {
		printSweep(w, out)
	}

	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d point(s) failed", report.Failed))
	}
	return nil
}

func summarize(pr sweep.PointResult) PointSummary {
	s := PointSummary{
		Index:     pr.Point.Index,
		Seed:      pr.Point.Seed,
		DataWidth: pr.Point.DataWidth,
		FIFODepth: pr.Point.FIFODepth,
	}
	switch {
	case pr.Result != nil:
		s.State = string(pr.Result.State)
		s.Digest = pr.Result.Digest
		if !pr.Result.Passed {
			s.Message = failureMessage(pr.Result)
		}
	case pr.Err != nil:
		s.State = store.StateRejected
		s.Message = pr.Err.Error()
	}
	return s
}

func printSweep(w io.Writer, out SweepOutput) {
	fmt.Fprintf(w, "Sweep %s: %d point(s)\n", out.Name, out.Points)
	if out.SweepID != "" {
		fmt.Fprintf(w, "  id: %s\n", out.SweepID)
	}
	fmt.Fprintln(w)
	for _, f := range out.Failures {
		fmt.Fprintf(w, "✗ point %d seed=%d width=%d depth=%d: %s\n", f.Index, f.Seed, f.DataWidth, f.FIFODepth, f.State)
		if f.Message != "" {
			fmt.Fprintf(w, "  %s\n", f.Message)
		}
	}
	fmt.Fprintf(w, "Sweep Summary: %d passed, %d failed, %d total\n", out.Passed, out.Failed, out.Points)
	if out.Failed == 0 {
		fmt.Fprintln(w, "✓ All points passed")
	}
}
