package sim

import (
	"errors"
	"fmt"
)

// ErrStopped is returned from every wait primitive once the kernel shuts
// down. Process functions should propagate it unchanged.
var ErrStopped = errors.New("sim: kernel stopped")

// KernelError represents an abnormal end of a simulation run.
type KernelError struct {
	// Code identifies the error category.
	Code KernelErrorCode

	// Message is a human-readable description.
	Message string

	// At is the simulated time at which the error was detected.
	At Time

	// Process names the offending process, if any.
	Process string
}

// KernelErrorCode categorizes kernel errors.
type KernelErrorCode string

const (
	// ErrCodeDeadline indicates the time budget passed to Run was exhausted.
	ErrCodeDeadline KernelErrorCode = "DEADLINE"

	// ErrCodeStarved indicates nothing is left to schedule.
	ErrCodeStarved KernelErrorCode = "STARVED"

	// ErrCodeDeltaOverflow indicates signals kept changing without time
	// advancing (a zero-delay oscillation).
	ErrCodeDeltaOverflow KernelErrorCode = "DELTA_OVERFLOW"

	// ErrCodeProcessPanic indicates a process panicked.
	ErrCodeProcessPanic KernelErrorCode = "PROCESS_PANIC"
)

// Error implements the error interface.
func (e *KernelError) Error() string {
	if e.Process != "" {
		return fmt.Sprintf("%s: %s (t=%d, process=%s)", e.Code, e.Message, e.At, e.Process)
	}
	return fmt.Sprintf("%s: %s (t=%d)", e.Code, e.Message, e.At)
}

// IsDeadline returns true if the error reports an exhausted time budget.
// Uses errors.As to handle wrapped errors.
func IsDeadline(err error) bool {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Code == ErrCodeDeadline
	}
	return false
}

// IsStarved returns true if the error reports an empty schedule.
func IsStarved(err error) bool {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Code == ErrCodeStarved
	}
	return false
}

func newDeadlineError(at, budget Time) *KernelError {
	return &KernelError{
		Code:    ErrCodeDeadline,
		Message: fmt.Sprintf("time budget of %d exhausted", budget),
		At:      at,
	}
}
