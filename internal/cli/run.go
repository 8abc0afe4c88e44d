package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/harness"
	"github.com/LukasVik/funny-fifo/internal/sim"
	"github.com/LukasVik/funny-fifo/internal/stall"
	"github.com/LukasVik/funny-fifo/internal/stimulus"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	Seed        uint64
	DataWidth   int
	FIFODepth   int
	WritePeriod int64
	ReadPeriod  int64
	WriteStall  string
	ReadStall   string
	Pattern     string
	Variant     string
	Words       int
	Timeout     int64
	Drain       int
	Strict      bool
	Snapshot    bool
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Result   *harness.Result `json:"result"`
	Snapshot string          `json:"snapshot,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}
	def := harness.DefaultParams()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one randomized FIFO test",
		Long: `Run a single randomized test against the FIFO model.

Without --seed a fresh seed is drawn and reported; rerunning with that seed
reproduces the run exactly. Stall configs take the form "p" or "p,min,max":
stall with probability p percent for min..max cycles.

Exit codes:
  0 - The run passed
  1 - The run failed (mismatch, sequence length, protocol, timeout)
  2 - Command error (invalid parameters)

Examples:
  funny-fifo run
  funny-fifo run --seed 1337 --depth 15 --read-stall 80,1,4
  funny-fifo run --seed 1337 --variant no_ready --write-stall 0 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.Uint64Var(&opts.Seed, "seed", 0, "seed (default: fresh)")
	f.IntVar(&opts.DataWidth, "width", def.DataWidth, "data width in bits (1..64)")
	f.IntVar(&opts.FIFODepth, "depth", def.FIFODepth, "FIFO depth in words")
	f.Int64Var(&opts.WritePeriod, "write-period", 0, "write clock period (0: drawn from the seed)")
	f.Int64Var(&opts.ReadPeriod, "read-period", 0, "read clock period (0: drawn from the seed)")
	f.StringVar(&opts.WriteStall, "write-stall", stallFlag(def.WriteStall), "write stall config p[,min,max]")
	f.StringVar(&opts.ReadStall, "read-stall", stallFlag(def.ReadStall), "read stall config p[,min,max]")
	f.StringVar(&opts.Pattern, "pattern", string(stimulus.Descending), "stimulus pattern (descending|random)")
	f.StringVar(&opts.Variant, "variant", string(dut.VariantHandshake), "device variant (handshake|no_ready)")
	f.IntVar(&opts.Words, "words", 0, "word count (0: drawn from the seed)")
	f.Int64Var(&opts.Timeout, "timeout", 0, "simulated time budget (0: derived)")
	f.IntVar(&opts.Drain, "drain", 0, "read edges sampled after the last word (0: default)")
	f.BoolVar(&opts.Strict, "strict", false, "fail on handshake hold violations")
	f.BoolVar(&opts.Snapshot, "snapshot", false, "print the canonical trace")

	return cmd
}

func stallFlag(c stall.Config) string {
	return fmt.Sprintf("%g,%d,%d", c.ProbabilityPercent, c.MinStallCycles, c.MaxStallCycles)
}

// params turns the flags into run parameters. seedSet reports whether
// --seed was given.
func (o *RunOptions) params(seedSet bool) (harness.Params, error) {
	ws, err := stall.ParseConfig(o.WriteStall)
	if err != nil {
		return harness.Params{}, fmt.Errorf("--write-stall: %w", err)
	}
	rs, err := stall.ParseConfig(o.ReadStall)
	if err != nil {
		return harness.Params{}, fmt.Errorf("--read-stall: %w", err)
	}
	rule, err := stimulus.ParseRule(o.Pattern)
	if err != nil {
		return harness.Params{}, fmt.Errorf("--pattern: %w", err)
	}

	p := harness.Params{
		DataWidth:        o.DataWidth,
		FIFODepth:        o.FIFODepth,
		WriteClockPeriod: sim.Time(o.WritePeriod),
		ReadClockPeriod:  sim.Time(o.ReadPeriod),
		WriteStall:       ws,
		ReadStall:        rs,
		Pattern:          rule,
		WordCount:        o.Words,
		Timeout:          sim.Time(o.Timeout),
		DrainCycles:      o.Drain,
		StrictProtocol:   o.Strict,
	}
	if seedSet {
		p.Seed = harness.Seed(o.Seed)
	}
	return p, nil
}

func runOnce(opts *RunOptions, cmd *cobra.Command) error {
	params, err := opts.params(cmd.Flags().Changed("seed"))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid run parameters", err)
	}
	variant, err := dut.ParseVariant(opts.Variant)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid run parameters", err)
	}
	build, err := dut.NewBuilder(variant)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid run parameters", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	res, err := harness.Run(ctx, params, build, harness.WithLogger(logger))
	if err != nil {
		if harness.IsConfigError(err) {
			return WrapExitError(ExitCommandError, "invalid run parameters", err)
		}
		return WrapExitError(ExitCommandError, "run aborted", err)
	}

	out := RunOutput{Result: res}
	if opts.Snapshot {
		data, err := harness.Snapshot(res)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to render trace", err)
		}
		out.Snapshot = string(data)
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		var cliErr *CLIError
		if !res.Passed {
			cliErr = &CLIError{Code: "E_RUN_FAILED", Message: failureMessage(res)}
		}
		if err := writeJSON(w, out, cliErr); err != nil {
			return err
		}
	} else {
		printResult(w, res)
		if opts.Snapshot {
			fmt.Fprintln(w, out.Snapshot)
		}
	}

	if !res.Passed {
		return NewExitError(ExitFailure, fmt.Sprintf("run failed: %s", res.State))
	}
	return nil
}

// printResult renders a run summary.
func printResult(w io.Writer, res *harness.Result) {
	fmt.Fprintf(w, "%s %s seed=%d width=%d depth=%d\n", mark(res.Passed), res.State, res.Seed, res.DataWidth, res.FIFODepth)
	fmt.Fprintf(w, "  words: %d/%d checked, %d accepted\n", res.WordsChecked, res.WordCount, res.WordsAccepted)
	fmt.Fprintf(w, "  clocks: write=%d read=%d, elapsed %d of %d\n", res.WriteClockPeriod, res.ReadClockPeriod, res.Elapsed, res.Budget)
	if res.Failure != nil {
		fmt.Fprintf(w, "  failure: %v\n", res.Failure)
	}
	fmt.Fprintf(w, "  digest: %s\n", res.Digest)
}

func failureMessage(res *harness.Result) string {
	if res.Failure != nil {
		return res.Failure.Error()
	}
	return string(res.State)
}

// signalContext derives a context from the command's that is cancelled on
// SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
