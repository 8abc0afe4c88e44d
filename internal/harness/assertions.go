package harness

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/LukasVik/funny-fifo/internal/stimulus"
)

// Assertion validates the outcome of a scenario run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "state": the run ended in State
	// - "words_checked": Min <= words checked <= Max
	// - "failure": the failure has Kind, and Index if given
	// - "trace_prefix": the first observed values equal Values
	// - "in_order": every observed value matches the stimulus in order
	// - "config_error": the run was rejected, on Field if given
	Type string `yaml:"type"`

	State  string   `yaml:"state,omitempty"`
	Min    *int     `yaml:"min,omitempty"`
	Max    *int     `yaml:"max,omitempty"`
	Kind   string   `yaml:"kind,omitempty"`
	Index  *int     `yaml:"index,omitempty"`
	Values []uint64 `yaml:"values,omitempty"`
	Field  string   `yaml:"field,omitempty"`
}

// Assertion type constants.
const (
	AssertState        = "state"
	AssertWordsChecked = "words_checked"
	AssertFailure      = "failure"
	AssertTracePrefix  = "trace_prefix"
	AssertInOrder      = "in_order"
	AssertConfigError  = "config_error"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s failed: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertState:
		if !knownState(State(a.State)) {
			return fmt.Errorf("assertions[%d]: unknown state %q", index, a.State)
		}
	case AssertWordsChecked:
		if a.Min == nil && a.Max == nil {
			return fmt.Errorf("assertions[%d]: min or max is required for words_checked", index)
		}
		if a.Min != nil && a.Max != nil && *a.Min > *a.Max {
			return fmt.Errorf("assertions[%d]: min %d exceeds max %d", index, *a.Min, *a.Max)
		}
	case AssertFailure:
		switch FailureKind(a.Kind) {
		case FailureDataMismatch, FailureSequenceLength, FailureProtocol, FailureTimeout:
		default:
			return fmt.Errorf("assertions[%d]: unknown failure kind %q", index, a.Kind)
		}
	case AssertTracePrefix:
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values are required for trace_prefix", index)
		}
	case AssertInOrder, AssertConfigError:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func knownState(s State) bool {
	return slices.Contains(States, s)
}

// EvaluateAssertions checks every assertion of s against a run. res is nil
// when the run was rejected with runErr. Returns one message per failed
// assertion.
func EvaluateAssertions(s *Scenario, res *Result, runErr error) []string {
	var errs []string
	expectsConfigError := false

	for _, a := range s.Assertions {
		var err error
		if a.Type == AssertConfigError {
			expectsConfigError = true
			err = assertConfigError(a, runErr)
		} else if res == nil {
			err = &AssertionError{Type: a.Type, Expected: "a completed run", Actual: fmt.Sprintf("rejected: %v", runErr)}
		} else {
			err = evaluate(s, a, res)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if runErr != nil && !expectsConfigError && len(errs) == 0 {
		errs = append(errs, fmt.Sprintf("unexpected error: %v", runErr))
	}
	return errs
}

func evaluate(s *Scenario, a Assertion, res *Result) error {
	switch a.Type {
	case AssertState:
		if res.State != State(a.State) {
			return &AssertionError{Type: a.Type, Expected: a.State, Actual: describe(res)}
		}
	case AssertWordsChecked:
		n := res.WordsChecked
		if (a.Min != nil && n < *a.Min) || (a.Max != nil && n > *a.Max) {
			return &AssertionError{Type: a.Type, Expected: bounds(a.Min, a.Max), Actual: fmt.Sprintf("%d", n)}
		}
	case AssertFailure:
		if res.Failure == nil {
			return &AssertionError{Type: a.Type, Expected: a.Kind, Actual: "no failure"}
		}
		if string(res.Failure.Kind) != a.Kind {
			return &AssertionError{Type: a.Type, Expected: a.Kind, Actual: string(res.Failure.Kind)}
		}
		if a.Index != nil && res.Failure.Index != *a.Index {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("index %d", *a.Index), Actual: fmt.Sprintf("index %d", res.Failure.Index)}
		}
	case AssertTracePrefix:
		got := res.Values()
		if len(got) < len(a.Values) || !slices.Equal(got[:len(a.Values)], a.Values) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Values), Actual: fmt.Sprint(head(got, len(a.Values)))}
		}
	case AssertInOrder:
		ref, err := stimulus.Generate(stimulus.Rule(s.Pattern), res.Seed, res.DataWidth, res.WordCount)
		if err != nil {
			return err
		}
		for i, v := range res.Values() {
			if i >= ref.Len() {
				return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d transfers", ref.Len()), Actual: fmt.Sprintf("%d", len(res.Transfers))}
			}
			if v != ref.At(i) {
				return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("word %d = %d", i, ref.At(i)), Actual: fmt.Sprintf("%d", v)}
			}
		}
	}
	return nil
}

func assertConfigError(a Assertion, runErr error) error {
	if runErr == nil {
		return &AssertionError{Type: a.Type, Expected: "configuration error", Actual: "run accepted"}
	}
	var ce *ConfigError
	if !errors.As(runErr, &ce) {
		return &AssertionError{Type: a.Type, Expected: "configuration error", Actual: runErr.Error()}
	}
	if a.Field != "" && ce.Field != a.Field {
		return &AssertionError{Type: a.Type, Expected: "error on " + a.Field, Actual: "error on " + ce.Field}
	}
	return nil
}

func describe(res *Result) string {
	if res.Failure != nil {
		return fmt.Sprintf("%s (%v)", res.State, res.Failure)
	}
	return string(res.State)
}

func bounds(lo, hi *int) string {
	var parts []string
	if lo != nil {
		parts = append(parts, fmt.Sprintf(">= %d", *lo))
	}
	if hi != nil {
		parts = append(parts, fmt.Sprintf("<= %d", *hi))
	}
	return strings.Join(parts, " and ")
}

func head(words []uint64, n int) []uint64 {
	if len(words) < n {
		return words
	}
	return words[:n]
}
