package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/LukasVik/funny-fifo/internal/harness"
	"github.com/LukasVik/funny-fifo/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	SweepID  string // optional - a specific sweep only
	All      bool   // list every point, not just failures
}

// SweepInfo summarizes one stored sweep.
type SweepInfo struct {
	ID       string `json:"id"`
	Seq      int64  `json:"seq"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
	Recorded int    `json:"recorded"`
	Passed   int    `json:"passed"`
	Failed   int    `json:"failed"`
	Missing  []int  `json:"missing"`
	Complete bool   `json:"complete"`
}

// ShowResult holds the show output.
type ShowResult struct {
	Sweeps []SweepInfo    `json:"sweeps"`
	Points []PointSummary `json:"points,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List stored sweeps and their failures",
		Long: `List the sweeps stored in a result database, in the order they were
started, with how many of their points passed, failed or are missing.

With --sweep, also list the failing points of that sweep (every point with
--all).

Examples:
  funny-fifo show --db results.db
  funny-fifo show --db results.db --sweep 01928c4e-...
  funny-fifo show --db results.db --sweep 01928c4e-... --all --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SweepID, "sweep", "", "show this sweep only")
	cmd.Flags().BoolVar(&opts.All, "all", false, "list every point of the sweep")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var ids []string
	if opts.SweepID != "" {
		ids = []string{opts.SweepID}
	} else {
		sweeps, err := st.ListSweeps(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sweeps", err)
		}
		for _, sw := range sweeps {
			ids = append(ids, sw.ID)
		}
	}

	result := ShowResult{Sweeps: make([]SweepInfo, 0, len(ids))}
	for _, id := range ids {
		state, err := st.GetSweepState(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("sweep not found: %s", id))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read sweep", err)
		}
		result.Sweeps = append(result.Sweeps, SweepInfo{
			ID:       state.Sweep.ID,
			Seq:      state.Sweep.Seq,
			Name:     state.Sweep.Name,
			Points:   state.Sweep.Points,
			Recorded: len(state.Points),
			Passed:   state.Passed,
			Failed:   state.Failed,
			Missing:  state.Missing,
			Complete: state.IsComplete,
		})

		if opts.SweepID == "" {
			continue
		}
		for _, rec := range state.Points {
			if rec.Passed && !opts.All {
				continue
			}
			result.Points = append(result.Points, recordSummary(rec))
		}
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result, nil)
	}
	printShow(cmd.OutOrStdout(), result)
	return nil
}

func recordSummary(rec store.PointRecord) PointSummary {
	s := PointSummary{
		Index:     rec.Index,
		Seed:      rec.Seed,
		DataWidth: rec.DataWidth,
		FIFODepth: rec.FIFODepth,
		State:     rec.State,
		Digest:    rec.Digest,
		Message:   rec.Error,
	}
	if rec.Failure != nil {
		s.Message = rec.Failure.Error()
	}
	return s
}

func printShow(w io.Writer, result ShowResult) {
	if len(result.Sweeps) == 0 {
		fmt.Fprintln(w, "No sweeps found in database.")
		return
	}

	for _, sw := range result.Sweeps {
		status := mark(sw.Complete && sw.Failed == 0)
		fmt.Fprintf(w, "%s %s %s\n", status, sw.ID, sw.Name)
		fmt.Fprintf(w, "  points: %d passed, %d failed, %d missing of %d\n", sw.Passed, sw.Failed, len(sw.Missing), sw.Points)
	}

	if len(result.Points) > 0 {
		fmt.Fprintln(w)
	}
	for _, p := range result.Points {
		fmt.Fprintf(w, "%s point %d seed=%d width=%d depth=%d: %s\n",
			mark(p.State == string(harness.StatePassed)), p.Index, p.Seed, p.DataWidth, p.FIFODepth, p.State)
		if p.Message != "" {
			fmt.Fprintf(w, "  %s\n", p.Message)
		}
	}
}
