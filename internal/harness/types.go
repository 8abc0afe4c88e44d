package harness

import (
	"errors"
	"fmt"

	"github.com/LukasVik/funny-fifo/internal/sim"
)

// State is a position in the run state machine.
type State string

const (
	StateInitialized        State = "initialized"
	StateClocksRunning      State = "clocks_running"
	StateDrivingAndChecking State = "driving_and_checking"
	StatePassed             State = "passed"
	StateFailedMismatch     State = "failed_mismatch"
	StateFailedSequenceLen  State = "failed_sequence_length"
	StateFailedProtocol     State = "failed_protocol"
	StateFailedTimeout      State = "failed_timeout"
)

// States lists every state in lifecycle order.
var States = []State{
	StateInitialized,
	StateClocksRunning,
	StateDrivingAndChecking,
	StatePassed,
	StateFailedMismatch,
	StateFailedSequenceLen,
	StateFailedProtocol,
	StateFailedTimeout,
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	switch s {
	case StatePassed, StateFailedMismatch, StateFailedSequenceLen, StateFailedProtocol, StateFailedTimeout:
		return true
	}
	return false
}

// FailureKind categorizes a failed run.
type FailureKind string

const (
	// FailureDataMismatch: an accepted word differs from the reference.
	FailureDataMismatch FailureKind = "ProtocolDataMismatch"

	// FailureSequenceLength: words were dropped or duplicated.
	FailureSequenceLength FailureKind = "SequenceLengthMismatch"

	// FailureProtocol: the device broke the handshake hold rule.
	FailureProtocol FailureKind = "ProtocolViolation"

	// FailureTimeout: the simulated time budget ran out.
	FailureTimeout FailureKind = "RunTimeout"
)

// State returns the terminal state a failure of this kind leads to.
func (k FailureKind) State() State {
	switch k {
	case FailureDataMismatch:
		return StateFailedMismatch
	case FailureSequenceLength:
		return StateFailedSequenceLen
	case FailureProtocol:
		return StateFailedProtocol
	default:
		return StateFailedTimeout
	}
}

// Failure is the diagnostic of a failed run. Processes return it as an
// error to stop the kernel.
type Failure struct {
	Kind FailureKind `json:"kind"`

	// Index is the position in the reference sequence the failure refers
	// to: the mismatching word, or the first word that never arrived.
	Index int `json:"index"`

	// Expected and Observed are only meaningful for data mismatches and
	// protocol violations.
	Expected uint64 `json:"expected"`
	Observed uint64 `json:"observed"`

	Message string   `json:"message"`
	At      sim.Time `json:"at"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s at word %d (t=%d): %s", f.Kind, f.Index, f.At, f.Message)
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// ConfigError reports invalid run parameters. It is returned before any
// clock starts; no partial run is performed.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// IsConfigError returns true if err wraps a *ConfigError.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Transfer is one accepted read-side handshake.
type Transfer struct {
	Index int      `json:"index"`
	Value uint64   `json:"value"`
	At    sim.Time `json:"at"`
}

// Result is the outcome of one run.
type Result struct {
	Passed  bool     `json:"passed"`
	State   State    `json:"state"`
	Failure *Failure `json:"failure,omitempty"`

	// WordsChecked counts transfers that matched the reference.
	WordsChecked int `json:"words_checked"`

	// WordsAccepted counts write-side handshakes.
	WordsAccepted int `json:"words_accepted"`

	Seed             uint64   `json:"seed"`
	DataWidth        int      `json:"data_width"`
	FIFODepth        int      `json:"fifo_depth"`
	WordCount        int      `json:"word_count"`
	WriteClockPeriod sim.Time `json:"write_clock_period"`
	ReadClockPeriod  sim.Time `json:"read_clock_period"`
	Budget           sim.Time `json:"budget"`

	// Elapsed is the time of the last observed transfer.
	Elapsed sim.Time `json:"elapsed"`

	// EndedAt is the simulated time at which the run stopped.
	EndedAt sim.Time `json:"ended_at"`

	Transfers   []Transfer `json:"transfers"`
	WriteStalls []int      `json:"write_stalls"`
	ReadStalls  []int      `json:"read_stalls"`

	// Digest fingerprints the canonical trace of the run.
	Digest string `json:"digest"`
}

// Values returns the observed transfer values in order.
func (r *Result) Values() []uint64 {
	out := make([]uint64, len(r.Transfers))
	for i, t := range r.Transfers {
		out[i] = t.Value
	}
	return out
}
