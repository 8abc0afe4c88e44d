// Package config loads sweep plans written in CUE.
//
// A plan file is a plain CUE struct validated against the embedded #Sweep
// schema. Every field is optional; absent fields keep the values of
// sweep.DefaultPlan. Unknown fields are rejected because #Sweep is closed.
//
//	name:         "nightly"
//	random_seeds: 20
//	data_widths:  [8, 16, 32]
//	read_stall: {probability_percent: 80, min_stall_cycles: 1, max_stall_cycles: 4}
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/sim"
	"github.com/LukasVik/funny-fifo/internal/stall"
	"github.com/LukasVik/funny-fifo/internal/stimulus"
	"github.com/LukasVik/funny-fifo/internal/sweep"
)

//go:embed schema.cue
var schemaSource string

// Sweep is the decoded form of a plan file. Pointer and nil-slice fields
// distinguish "absent" from an explicit zero.
type Sweep struct {
	Name string `json:"name,omitempty"`

	RegressionSeeds []uint64 `json:"regression_seeds,omitempty"`
	RandomSeeds     *int     `json:"random_seeds,omitempty"`

	DataWidths []int `json:"data_widths,omitempty"`
	FIFODepths []int `json:"fifo_depths,omitempty"`

	Variant string `json:"variant,omitempty"`
	Pattern string `json:"pattern,omitempty"`

	WriteStall *stall.Config `json:"write_stall,omitempty"`
	ReadStall  *stall.Config `json:"read_stall,omitempty"`

	WriteClockPeriod int64 `json:"write_clock_period,omitempty"`
	ReadClockPeriod  int64 `json:"read_clock_period,omitempty"`

	Timeout        int64 `json:"timeout,omitempty"`
	DrainCycles    int   `json:"drain_cycles,omitempty"`
	StrictProtocol bool  `json:"strict_protocol,omitempty"`

	Parallel int `json:"parallel,omitempty"`
}

// Error is a plan that failed to compile or validate.
type Error struct {
	// Field is the dotted path of the offending value, or "cue" when the
	// error has no path.
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadSweep reads and validates a plan file.
func LoadSweep(path string) (*Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sweep plan: %w", err)
	}
	return ParseSweep(data, path)
}

// ParseSweep compiles src, unifies it with #Sweep and decodes the result.
// filename is only used in error positions.
func ParseSweep(src []byte, filename string) (*Sweep, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile sweep schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err, filename)
	}

	unified := schema.LookupPath(cue.ParsePath("#Sweep")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err, filename)
	}

	var s Sweep
	if err := unified.Decode(&s); err != nil {
		return nil, formatCUEError(err, filename)
	}
	return &s, nil
}

// Plan applies the file on top of sweep.DefaultPlan.
func (s *Sweep) Plan() sweep.Plan {
	p := sweep.DefaultPlan()
	if s.Name != "" {
		p.Name = s.Name
	}
	if s.RegressionSeeds != nil {
		p.RegressionSeeds = s.RegressionSeeds
	}
	if s.RandomSeeds != nil {
		p.RandomSeeds = *s.RandomSeeds
	}
	if s.DataWidths != nil {
		p.DataWidths = s.DataWidths
	}
	if s.FIFODepths != nil {
		p.FIFODepths = s.FIFODepths
	}
	if s.Variant != "" {
		p.Variant = dut.Variant(s.Variant)
	}
	if s.Pattern != "" {
		p.Pattern = stimulus.Rule(s.Pattern)
	}
	if s.WriteStall != nil {
		p.WriteStall = *s.WriteStall
	}
	if s.ReadStall != nil {
		p.ReadStall = *s.ReadStall
	}
	p.WriteClockPeriod = sim.Time(s.WriteClockPeriod)
	p.ReadClockPeriod = sim.Time(s.ReadClockPeriod)
	p.Timeout = sim.Time(s.Timeout)
	p.DrainCycles = s.DrainCycles
	p.StrictProtocol = s.StrictProtocol
	if s.Parallel != 0 {
		p.Parallel = s.Parallel
	}
	return p
}

// formatCUEError converts the first CUE error to an *Error with its path
// and position, preferring a position inside the plan file over one in the
// schema.
func formatCUEError(err error, filename string) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	format, args := first.Msg()
	out := &Error{
		Field:   strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
	if out.Field == "" {
		out.Field = "cue"
	}
	for i, pos := range errors.Positions(first) {
		if i == 0 || pos.Filename() == filename {
			out.Pos = pos
		}
		if pos.Filename() == filename {
			break
		}
	}
	return out
}
