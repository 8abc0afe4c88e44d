package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/LukasVik/funny-fifo/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario name filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// ScenarioSummary holds the overall scenario result.
type ScenarioSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <scenarios-dir>",
		Short: "Run YAML test scenarios",
		Long: `Run every scenario file in a directory and check its assertions.

A scenario that ran is also compared against its golden trace at
<scenarios-dir>/golden/<name>.golden when that file exists. --update
rewrites the golden files instead.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, malformed scenario, etc.)

Examples:
  funny-fifo scenario ./scenarios
  funny-fifo scenario ./scenarios --filter "no_ready*"
  funny-fifo scenario ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name (glob pattern)")

	return cmd
}

func runScenarios(opts *ScenarioOptions, dir string, cmd *cobra.Command) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return WrapExitError(ExitCommandError, "invalid filter pattern", err)
		}
	}

	scenarios, err := harness.LoadScenarios(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	summary := ScenarioSummary{Scenarios: []ScenarioResult{}}
	for _, sc := range scenarios {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, sc.Name); !ok {
				continue
			}
		}

		res, err := runScenario(ctx, opts, dir, sc, cmd)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s aborted", sc.Name), err)
		}
		summary.Scenarios = append(summary.Scenarios, res)
		summary.Total++
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	if opts.Format == "json" {
		return outputScenarioJSON(cmd, summary)
	}
	return outputScenarioText(cmd, summary)
}

// runScenario executes one scenario, checks its assertions and handles its
// golden file. The error is reserved for cancellation.
func runScenario(ctx context.Context, opts *ScenarioOptions, dir string, sc *harness.Scenario, cmd *cobra.Command) (ScenarioResult, error) {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr()).With("scenario", sc.Name)
	outcome, err := harness.RunScenario(ctx, sc, harness.WithLogger(logger))
	if err != nil {
		if ctx.Err() != nil {
			return ScenarioResult{}, err
		}
		return report(opts, cmd, ScenarioResult{
			Name:   sc.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}), nil
	}

	res := ScenarioResult{Name: sc.Name, Errors: outcome.Errors}
	if outcome.Result != nil {
		golden, gerr := checkGolden(goldenFilePath(dir, sc.Name), outcome.Result, opts.Update)
		res.Golden = golden
		if gerr != nil {
			res.Errors = append(res.Errors, gerr.Error())
		}
	}
	res.Pass = len(res.Errors) == 0
	return report(opts, cmd, res), nil
}

// report prints one scenario line in text mode and returns res.
func report(opts *ScenarioOptions, cmd *cobra.Command, res ScenarioResult) ScenarioResult {
	if opts.Format == "json" {
		return res
	}
	w := cmd.OutOrStdout()
	line := fmt.Sprintf("%s %s", mark(res.Pass), res.Name)
	if res.Golden == "updated" {
		line += " (golden updated)"
	}
	fmt.Fprintln(w, line)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return res
}

// goldenFilePath returns the golden file of a scenario.
func goldenFilePath(dir, name string) string {
	return filepath.Join(dir, "golden", name+".golden")
}

// checkGolden compares the canonical trace of res with the golden file, or
// rewrites the file when update is set. It returns "match", "updated" or
// "missing".
func checkGolden(path string, res *harness.Result, update bool) (string, error) {
	current, err := harness.Snapshot(res)
	if err != nil {
		return "", fmt.Errorf("failed to render trace: %w", err)
	}

	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, current, 0o644); err != nil {
			return "", fmt.Errorf("failed to write golden file: %w", err)
		}
		return "updated", nil
	}

	golden, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "missing", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(golden, current) {
		return "", fmt.Errorf("trace does not match golden file (run with --update to regenerate)")
	}
	return "match", nil
}

func outputScenarioJSON(cmd *cobra.Command, summary ScenarioSummary) error {
	var cliErr *CLIError
	if summary.Failed > 0 {
		cliErr = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", summary.Failed),
		}
	}
	if err := writeJSON(cmd.OutOrStdout(), summary, cliErr); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

func outputScenarioText(cmd *cobra.Command, summary ScenarioSummary) error {
	w := cmd.OutOrStdout()

	if summary.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Scenario Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
