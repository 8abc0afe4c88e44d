package harness

import (
	"errors"
	"fmt"

	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/sim"
	"github.com/LukasVik/funny-fifo/internal/stall"
	"github.com/LukasVik/funny-fifo/internal/stimulus"
)

// DefaultDrainCycles is how many ready-asserted read edges the monitor keeps
// sampling after the last expected word, looking for duplicates.
const DefaultDrainCycles = 16

// DefaultStallProbability is the backpressure probability of the reference
// randomized configuration, applied to both sides.
const DefaultStallProbability = 50

// Clock periods drawn when none is given are 2*U[MinHalfPeriod, MaxHalfPeriod].
const (
	MinHalfPeriod = 10
	MaxHalfPeriod = 40
)

// Params is the input record of one run.
type Params struct {
	// Seed reproduces the run. Nil picks a fresh seed, which the result
	// reports.
	Seed *uint64

	DataWidth int
	FIFODepth int

	// Zero periods are drawn from the seeded setup stream.
	WriteClockPeriod sim.Time
	ReadClockPeriod  sim.Time

	WriteStall stall.Config
	ReadStall  stall.Config

	// Pattern is the stimulus generation rule; empty means descending.
	Pattern stimulus.Rule

	// WordCount overrides the drawn sequence length when positive.
	WordCount int

	// Timeout is the simulated time budget; zero uses TimeoutBudget.
	Timeout sim.Time

	// DrainCycles defaults to DefaultDrainCycles when zero.
	DrainCycles int

	// StrictProtocol fails the run when the device drops valid or changes
	// data while a read transfer is pending.
	StrictProtocol bool
}

// Seed returns a pointer to v, for Params.Seed.
func Seed(v uint64) *uint64 { return &v }

// DefaultParams returns the reference randomized configuration: 8-bit words,
// depth 7 and 50% single-cycle stalls on both sides.
func DefaultParams() Params {
	cfg := stall.Default().WithProbability(DefaultStallProbability)
	return Params{
		DataWidth:  8,
		FIFODepth:  7,
		WriteStall: cfg,
		ReadStall:  cfg,
		Pattern:    stimulus.Descending,
	}
}

// Validate checks every parameter and returns a *ConfigError for the first
// invalid one.
func (p Params) Validate() error {
	if err := (dut.Config{DataWidth: p.DataWidth, FIFODepth: p.FIFODepth}).Validate(); err != nil {
		field := "data_width"
		if p.DataWidth >= 1 && p.DataWidth <= 64 {
			field = "fifo_depth"
		}
		return &ConfigError{Field: field, Message: err.Error()}
	}
	if err := validPeriod(p.WriteClockPeriod); err != nil {
		return &ConfigError{Field: "write_clock_period", Message: err.Error()}
	}
	if err := validPeriod(p.ReadClockPeriod); err != nil {
		return &ConfigError{Field: "read_clock_period", Message: err.Error()}
	}
	if err := validStall("write_stall", p.WriteStall); err != nil {
		return err
	}
	if err := validStall("read_stall", p.ReadStall); err != nil {
		return err
	}
	if _, err := stimulus.ParseRule(string(p.Pattern)); err != nil {
		return &ConfigError{Field: "pattern", Message: err.Error()}
	}
	if p.WordCount < 0 {
		return &ConfigError{Field: "word_count", Message: fmt.Sprintf("must be non-negative, got %d", p.WordCount)}
	}
	if p.Timeout < 0 {
		return &ConfigError{Field: "timeout", Message: fmt.Sprintf("must be non-negative, got %d", p.Timeout)}
	}
	if p.DrainCycles < 0 {
		return &ConfigError{Field: "drain_cycles", Message: fmt.Sprintf("must be non-negative, got %d", p.DrainCycles)}
	}
	return nil
}

func validPeriod(period sim.Time) error {
	if period == 0 {
		return nil
	}
	if period < 2 {
		return fmt.Errorf("must be at least 2 time units, got %d", period)
	}
	return nil
}

func validStall(field string, c stall.Config) error {
	if err := c.Validate(); err != nil {
		var ce *stall.ConfigError
		if errors.As(err, &ce) {
			return &ConfigError{Field: field + "." + ce.Field, Message: ce.Message}
		}
		return &ConfigError{Field: field, Message: err.Error()}
	}
	return nil
}

func (p Params) drainCycles() int {
	if p.DrainCycles == 0 {
		return DefaultDrainCycles
	}
	return p.DrainCycles
}

// TimeoutBudget computes the simulated time a healthy device needs at most
// to move words through a FIFO of the given depth.
//
// Each word is charged a full stall on both sides plus a pointer
// synchronization round trip, all at the slower clock. The result never
// decreases when words or the slower period grow.
func TimeoutBudget(words, depth int, writePeriod, readPeriod sim.Time, writeStall, readStall stall.Config, drain int) sim.Time {
	slower := max(writePeriod, readPeriod)
	perWord := sim.Time((1+writeStall.EffectiveMax())*(1+readStall.EffectiveMax())) * 8 * slower
	drainTime := sim.Time((drain+1)*(1+readStall.EffectiveMax())) * readPeriod
	return sim.Time(words+depth+16)*perWord + drainTime
}

// QuiescenceLimit is how many read edges without a transfer the watchdog
// tolerates once the driver has delivered every word.
func QuiescenceLimit(readStall stall.Config) int {
	return 4*(readStall.EffectiveMax()+1) + 16
}
