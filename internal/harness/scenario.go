package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LukasVik/funny-fifo/internal/dut"
	"github.com/LukasVik/funny-fifo/internal/sim"
	"github.com/LukasVik/funny-fifo/internal/stall"
	"github.com/LukasVik/funny-fifo/internal/stimulus"
)

// Scenario is a single run described in YAML, together with the assertions
// its result must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Seed      *uint64 `yaml:"seed,omitempty"`
	DataWidth int     `yaml:"data_width"`
	FIFODepth int     `yaml:"fifo_depth"`

	WriteClockPeriod int64 `yaml:"write_clock_period,omitempty"`
	ReadClockPeriod  int64 `yaml:"read_clock_period,omitempty"`

	// Absent stall configs are inert (stall.Default). A present config must
	// spell out all three fields.
	WriteStall *stall.Config `yaml:"write_stall,omitempty"`
	ReadStall  *stall.Config `yaml:"read_stall,omitempty"`

	Pattern        string `yaml:"pattern,omitempty"`
	WordCount      int    `yaml:"word_count,omitempty"`
	Timeout        int64  `yaml:"timeout,omitempty"`
	DrainCycles    int    `yaml:"drain_cycles,omitempty"`
	StrictProtocol bool   `yaml:"strict_protocol,omitempty"`

	// Device selects the model: "fifo" (default) or "stuck".
	Device  string `yaml:"device,omitempty"`
	Variant string `yaml:"variant,omitempty"`
	Fault   *Fault `yaml:"fault,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// Fault injects a defect into the device's read data path.
type Fault struct {
	FlipBit *FlipBitFault `yaml:"flip_bit,omitempty"`
}

// FlipBitFault inverts one bit of one presented word.
type FlipBitFault struct {
	Index uint64 `yaml:"index"`
	Bit   int    `yaml:"bit"`
}

// Device names accepted in scenarios.
const (
	DeviceFIFO  = "fifo"
	DeviceStuck = "stuck"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by file
// name. Names must be unique.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	seen := make(map[string]string)
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		sc, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if prev, dup := seen[sc.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(path), sc.Name, prev)
		}
		seen[sc.Name] = filepath.Base(path)
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
// Parameter ranges are left to Params.Validate so that scenarios can assert
// on configuration errors.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Device {
	case "", DeviceFIFO, DeviceStuck:
	default:
		return fmt.Errorf("unknown device %q", s.Device)
	}
	if _, err := dut.ParseVariant(s.Variant); err != nil {
		return err
	}
	if s.Fault != nil {
		if s.Fault.FlipBit == nil {
			return fmt.Errorf("fault: flip_bit is required")
		}
		if s.Fault.FlipBit.Bit < 0 || s.Fault.FlipBit.Bit > 63 {
			return fmt.Errorf("fault.flip_bit: bit must be within 0..63, got %d", s.Fault.FlipBit.Bit)
		}
		if s.Device == DeviceStuck {
			return fmt.Errorf("fault: the stuck device presents no data to corrupt")
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// Params converts the scenario to run parameters.
func (s *Scenario) Params() Params {
	p := Params{
		Seed:             s.Seed,
		DataWidth:        s.DataWidth,
		FIFODepth:        s.FIFODepth,
		WriteClockPeriod: sim.Time(s.WriteClockPeriod),
		ReadClockPeriod:  sim.Time(s.ReadClockPeriod),
		WriteStall:       stall.Default(),
		ReadStall:        stall.Default(),
		Pattern:          stimulus.Rule(s.Pattern),
		WordCount:        s.WordCount,
		Timeout:          sim.Time(s.Timeout),
		DrainCycles:      s.DrainCycles,
		StrictProtocol:   s.StrictProtocol,
	}
	if s.WriteStall != nil {
		p.WriteStall = *s.WriteStall
	}
	if s.ReadStall != nil {
		p.ReadStall = *s.ReadStall
	}
	return p
}

// Builder returns the device builder the scenario asks for.
func (s *Scenario) Builder() (dut.Builder, error) {
	if s.Device == DeviceStuck {
		return dut.StuckBuilder, nil
	}
	var opts []dut.Option
	if s.Fault != nil && s.Fault.FlipBit != nil {
		opts = append(opts, dut.WithOutputHook(dut.FlipBit(s.Fault.FlipBit.Index, s.Fault.FlipBit.Bit)))
	}
	return dut.NewBuilder(dut.Variant(s.Variant), opts...)
}

// Outcome is the result of running a scenario and evaluating its
// assertions.
type Outcome struct {
	Scenario *Scenario

	// Result is nil when the run was rejected with RunErr.
	Result *Result
	RunErr error

	// Errors holds one message per failed assertion.
	Errors []string
}

// Pass reports whether every assertion held.
func (o *Outcome) Pass() bool { return len(o.Errors) == 0 }

// RunScenario executes a scenario and evaluates its assertions.
//
// Configuration errors are captured in the outcome so a scenario can assert
// on them. The returned error is reserved for failures outside the run,
// such as ctx cancellation.
func RunScenario(ctx context.Context, s *Scenario, opts ...Option) (*Outcome, error) {
	build, err := s.Builder()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	out := &Outcome{Scenario: s}
	res, err := Run(ctx, s.Params(), build, opts...)
	switch {
	case err == nil:
		out.Result = res
	case IsConfigError(err):
		out.RunErr = err
	default:
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	out.Errors = EvaluateAssertions(s, res, out.RunErr)
	return out, nil
}
