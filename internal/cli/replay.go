package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/LukasVik/funny-fifo/internal/store"
	"github.com/LukasVik/funny-fifo/internal/sweep"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	SweepID  string // optional, defaults to the latest sweep
	Point    int    // optional, with --point
	Failed   bool   // only replay points that did not pass
}

// ReplayPointResult holds the replay result for a single point.
type ReplayPointResult struct {
	Index         int    `json:"index"`
	Seed          uint64 `json:"seed"`
	StoredState   string `json:"stored_state"`
	ReplayState   string `json:"replay_state"`
	StoredDigest  string `json:"stored_digest"`
	ReplayDigest  string `json:"replay_digest"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	SweepID          string              `json:"sweep_id"`
	Points           []ReplayPointResult `json:"points"`
	TotalPoints      int                 `json:"total_points"`
	AllDeterministic bool                `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rerun stored sweep points and verify their digests",
		Long: `Rerun points of a stored sweep from their recorded parameters and check
that each rerun reproduces the stored trace digest and final state.

Without --sweep the most recent sweep is used.

Exit codes:
  0 - Every replayed point reproduced its stored result
  1 - At least one point replayed differently
  2 - Command error (database not found, unknown sweep or point, etc.)

Examples:
  funny-fifo replay --db results.db
  funny-fifo replay --db results.db --failed
  funny-fifo replay --db results.db --sweep 01928c4e-... --point 17 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SweepID, "sweep", "", "sweep ID (default: latest)")
	cmd.Flags().IntVar(&opts.Point, "point", 0, "replay this point index only")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "replay failed points only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var sw store.Sweep
	if opts.SweepID != "" {
		sw, err = st.ReadSweep(ctx, opts.SweepID)
	} else {
		sw, err = st.LatestSweep(ctx)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, "sweep not found")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sweep", err)
	}

	var records []store.PointRecord
	switch {
	case cmd.Flags().Changed("point"):
		rec, err := st.ReadPoint(ctx, sw.ID, opts.Point)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("point %d not found in sweep %s", opts.Point, sw.ID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read point", err)
		}
		records = []store.PointRecord{rec}
	case opts.Failed:
		records, err = st.ReadFailures(ctx, sw.ID)
	default:
		records, err = st.ReadPoints(ctx, sw.ID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read points", err)
	}

	runner := sweep.NewRunner(sweep.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())))
	result := ReplayResult{
		SweepID:          sw.ID,
		Points:           make([]ReplayPointResult, 0, len(records)),
		TotalPoints:      len(records),
		AllDeterministic: true,
	}
	for _, rec := range records {
		pr, err := runner.Replay(ctx, rec.Point())
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay point %d", rec.Index), err)
		}
		r := compareReplay(rec, pr)
		result.Points = append(result.Points, r)
		if !r.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd.OutOrStdout(), result, opts.Verbose)
}

// compareReplay checks a rerun against its stored record.
func compareReplay(rec store.PointRecord, pr sweep.PointResult) ReplayPointResult {
	r := ReplayPointResult{
		Index:        rec.Index,
		Seed:         rec.Seed,
		StoredState:  rec.State,
		StoredDigest: rec.Digest,
		ReplayState:  store.StateRejected,
	}
	if pr.Result != nil {
		r.ReplayState = string(pr.Result.State)
		r.ReplayDigest = pr.Result.Digest
	}
	r.Deterministic = r.StoredState == r.ReplayState && r.StoredDigest == r.ReplayDigest
	return r
}

func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	var cliErr *CLIError
	if !result.AllDeterministic {
		cliErr = &CLIError{
			Code:    "E_REPLAY_MISMATCH",
			Message: "replay did not reproduce the stored results",
		}
	}
	if err := writeJSON(cmd.OutOrStdout(), result, cliErr); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay did not reproduce the stored results")
	}
	return nil
}

func outputReplayText(w io.Writer, result ReplayResult, verbose bool) error {
	fmt.Fprintf(w, "Replay Summary: sweep %s, %d point(s)\n", result.SweepID, result.TotalPoints)
	fmt.Fprintln(w)

	for _, p := range result.Points {
		if p.Deterministic && !verbose {
			continue
		}
		fmt.Fprintf(w, "%s point %d seed=%d: %s\n", mark(p.Deterministic), p.Index, p.Seed, p.ReplayState)
		if !p.Deterministic {
			fmt.Fprintf(w, "  stored: %s %s\n", p.StoredState, p.StoredDigest)
			fmt.Fprintf(w, "  replay: %s %s\n", p.ReplayState, p.ReplayDigest)
		}
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All points reproduced")
		return nil
	}
	fmt.Fprintln(w, "✗ Replay verification failed")
	return NewExitError(ExitFailure, "replay did not reproduce the stored results")
}
