package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LukasVik/funny-fifo/internal/config"
	"github.com/LukasVik/funny-fifo/internal/harness"
)

// ValidationError describes one invalid input file.
type ValidationError struct {
	Path    string `json:"path"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidatedFile describes one valid input file.
type ValidatedFile struct {
	Path string `json:"path"`
	Kind string `json:"kind"` // "plan" or "scenario"

	// Points is the number of points a plan expands to.
	Points int `json:"points,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  []ValidatedFile   `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file|dir>...",
		Short: "Validate sweep plans and scenario files without running them",
		Long: `Validate CUE sweep plans (*.cue) and YAML scenarios (*.yaml, *.yml).

A directory is validated as a scenario directory, including the check that
scenario names are unique.

Exit codes:
  0 - Every file is valid
  1 - One or more files are invalid
  2 - Command error (file not found, unknown file type)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // verbose lines go to stderr to keep JSON intact
		Verbose:   opts.Verbose,
	}

	result := ValidationResult{Files: []ValidatedFile{}}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return outputValidateError(formatter, "E_NOT_FOUND", fmt.Sprintf("%s: %v", path, err))
		}

		switch {
		case info.IsDir():
			formatter.VerboseLog("validating scenario directory %s", path)
			scenarios, err := harness.LoadScenarios(path)
			if err != nil {
				result.Errors = append(result.Errors, ValidationError{Path: path, Message: err.Error()})
				continue
			}
			for _, sc := range scenarios {
				result.Files = append(result.Files, ValidatedFile{Path: filepath.Join(path, sc.Name), Kind: "scenario"})
			}
		case strings.EqualFold(filepath.Ext(path), ".cue"):
			formatter.VerboseLog("validating sweep plan %s", path)
			f, verr := validatePlan(path)
			if verr != nil {
				result.Errors = append(result.Errors, *verr)
				continue
			}
			result.Files = append(result.Files, f)
		case isScenarioFile(path):
			formatter.VerboseLog("validating scenario %s", path)
			if _, err := harness.LoadScenario(path); err != nil {
				result.Errors = append(result.Errors, ValidationError{Path: path, Message: err.Error()})
				continue
			}
			result.Files = append(result.Files, ValidatedFile{Path: path, Kind: "scenario"})
		default:
			return outputValidateError(formatter, "E_UNKNOWN_TYPE", fmt.Sprintf("%s: not a .cue, .yaml or .yml file", path))
		}
	}

	result.Valid = len(result.Errors) == 0
	if result.Valid {
		return outputValidateSuccess(formatter, result)
	}
	return outputValidationErrors(formatter, result)
}

func isScenarioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// validatePlan loads a plan and checks its expanded run parameters.
func validatePlan(path string) (ValidatedFile, *ValidationError) {
	s, err := config.LoadSweep(path)
	if err != nil {
		verr := &ValidationError{Path: path, Message: err.Error()}
		var ce *config.Error
		if errors.As(err, &ce) {
			verr.Field = ce.Field
			verr.Message = ce.Message
			if ce.Pos.IsValid() {
				verr.Line = ce.Pos.Line()
			}
		}
		return ValidatedFile{}, verr
	}

	plan := s.Plan()
	if err := plan.Validate(); err != nil {
		return ValidatedFile{}, &ValidationError{Path: path, Message: err.Error()}
	}
	return ValidatedFile{Path: path, Kind: "plan", Points: plan.Size()}, nil
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	for _, f := range result.Files {
		if f.Kind == "plan" {
			fmt.Fprintf(formatter.Writer, "✓ %s (plan, %d points)\n", f.Path, f.Points)
		} else {
			fmt.Fprintf(formatter.Writer, "✓ %s (%s)\n", f.Path, f.Kind)
		}
	}
	fmt.Fprintln(formatter.Writer, "✓ All files valid")
	return nil
}

// outputValidateError reports a command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors reports invalid files (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		first := result.Errors[0]
		if err := writeJSON(formatter.Writer, result, &CLIError{Code: "E_INVALID", Message: first.Message}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range result.Errors {
		loc := e.Path
		if e.Line > 0 {
			loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
		}
		fmt.Fprintln(formatter.Writer, loc)
		if e.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", e.Field, e.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s\n\n", e.Message)
		}
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
