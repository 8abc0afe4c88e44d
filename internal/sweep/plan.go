// Package sweep runs the harness across a cross-product of seeds, data
// widths and FIFO depths.
//
// A sweep point is independent of every other point: it builds its own
// device on its own kernel and seeds its own random streams, so points may
// run in any order or in parallel without changing any result.
package sweep

import (
	"fmt"
	"runtime"

	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/harness"
	"github.com/LukasVik/funny-fifo/internal/sim"
	"github.com/LukasVik/funny-fifo/internal/stall"
	"github.com/LukasVik/funny-fifo/internal/stimulus"
)

// RegressionSeeds are seeds that once exposed problems and are kept in
// every default sweep.
var RegressionSeeds = []uint64{1337, 1753613141, 1753611814, 1753621678}

// DefaultRandomSeeds is how many fresh seeds the reference sweep adds.
const DefaultRandomSeeds = 10

// Widths and depths of the reference sweep.
var (
	DefaultDataWidths = []int{8, 16}
	DefaultFIFODepths = []int{7, 15, 31}
)

// Plan describes a sweep.
type Plan struct {
	// Name labels the sweep in the store and in reports.
	Name string

	RegressionSeeds []uint64

	// RandomSeeds is how many fresh seeds to draw in addition to the
	// regression set.
	RandomSeeds int

	DataWidths []int
	FIFODepths []int

	Variant dut.Variant
	Pattern stimulus.Rule

	WriteStall stall.Config
	ReadStall  stall.Config

	// Zero periods are drawn per point from its seed.
	WriteClockPeriod sim.Time
	ReadClockPeriod  sim.Time

	Timeout        sim.Time
	DrainCycles    int
	StrictProtocol bool

	// Parallel bounds how many points run at once.
	Parallel int
}

// DefaultPlan returns the reference sweep: the regression seeds plus ten
// fresh ones, widths {8,16}, depths {7,15,31} and 50% single-cycle stalls
// on both sides.
func DefaultPlan() Plan {
	p := harness.DefaultParams()
	return Plan{
		Name:            "default",
		RegressionSeeds: append([]uint64(nil), RegressionSeeds...),
		RandomSeeds:     DefaultRandomSeeds,
		DataWidths:      append([]int(nil), DefaultDataWidths...),
		FIFODepths:      append([]int(nil), DefaultFIFODepths...),
		Variant:         dut.VariantHandshake,
		Pattern:         p.Pattern,
		WriteStall:      p.WriteStall,
		ReadStall:       p.ReadStall,
		Parallel:        runtime.GOMAXPROCS(0),
	}
}

// PlanError reports an invalid sweep plan.
type PlanError struct {
	Field   string
	Message string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("invalid sweep plan: %s: %s", e.Field, e.Message)
}

// Validate checks the plan before any point runs, including the run
// parameters of every width and depth combination.
func (p Plan) Validate() error {
	if len(p.RegressionSeeds) == 0 && p.RandomSeeds == 0 {
		return &PlanError{Field: "seeds", Message: "no regression seeds and no random seeds"}
	}
	if p.RandomSeeds < 0 {
		return &PlanError{Field: "random_seeds", Message: fmt.Sprintf("must be non-negative, got %d", p.RandomSeeds)}
	}
	if len(p.DataWidths) == 0 {
		return &PlanError{Field: "data_widths", Message: "at least one width is required"}
	}
	if len(p.FIFODepths) == 0 {
		return &PlanError{Field: "fifo_depths", Message: "at least one depth is required"}
	}
	if _, err := dut.ParseVariant(string(p.Variant)); err != nil {
		return &PlanError{Field: "variant", Message: err.Error()}
	}
	if p.Parallel < 1 {
		return &PlanError{Field: "parallel", Message: fmt.Sprintf("must be at least 1, got %d", p.Parallel)}
	}
	for _, w := range p.DataWidths {
		for _, d := range p.FIFODepths {
			params := p.params(0, w, d)
			if err := params.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Point is one (seed, width, depth) combination of a plan.
type Point struct {
	// Index is the position of the point in plan order.
	Index int `json:"index"`

	Seed       uint64      `json:"seed"`
	Regression bool        `json:"regression"`
	DataWidth  int         `json:"data_width"`
	FIFODepth  int         `json:"fifo_depth"`
	Variant    dut.Variant `json:"variant"`

	Params harness.Params `json:"-"`
}

// Points expands the plan in a fixed order: seeds (regression first, then
// fresh), then widths, then depths. Fresh seeds are drawn from next.
func (p Plan) Points(next func() uint64) []Point {
	type seed struct {
		value      uint64
		regression bool
	}
	seeds := make([]seed, 0, len(p.RegressionSeeds)+p.RandomSeeds)
	for _, s := range p.RegressionSeeds {
		seeds = append(seeds, seed{s, true})
	}
	for i := 0; i < p.RandomSeeds; i++ {
		seeds = append(seeds, seed{next(), false})
	}

	points := make([]Point, 0, p.Size())
	for _, s := range seeds {
		for _, w := range p.DataWidths {
			for _, d := range p.FIFODepths {
				points = append(points, Point{
					Index:      len(points),
					Seed:       s.value,
					Regression: s.regression,
					DataWidth:  w,
					FIFODepth:  d,
					Variant:    p.variant(),
					Params:     p.params(s.value, w, d),
				})
			}
		}
	}
	return points
}

func (p Plan) variant() dut.Variant {
	if p.Variant == "" {
		return dut.VariantHandshake
	}
	return p.Variant
}

func (p Plan) params(seed uint64, width, depth int) harness.Params {
	return harness.Params{
		Seed:             harness.Seed(seed),
		DataWidth:        width,
		FIFODepth:        depth,
		WriteClockPeriod: p.WriteClockPeriod,
		ReadClockPeriod:  p.ReadClockPeriod,
		WriteStall:       p.WriteStall,
		ReadStall:        p.ReadStall,
		Pattern:          p.Pattern,
		Timeout:          p.Timeout,
		DrainCycles:      p.DrainCycles,
		StrictProtocol:   p.StrictProtocol,
	}
}

// Size is the number of points the plan expands to.
func (p Plan) Size() int {
	return (len(p.RegressionSeeds) + p.RandomSeeds) * len(p.DataWidths) * len(p.FIFODepths)
}
