// Package dut provides the signal boundary of a dual-clock FIFO and
// behavioural device models that expose it.
//
// The harness only ever touches the ports returned by a Device. Models in
// this package exist so the harness has something to drive; their internals
// are not part of what the harness verifies.
package dut

import (
	"fmt"

	"github.com/LukasVik/funny-fifo/internal/sim"
)

// WritePort is the producer side of the boundary. The harness drives Valid
// and Data; the device drives Ready.
type WritePort struct {
	Clock *sim.Signal
	Valid *sim.Signal
	Ready *sim.Signal
	Data  *sim.Signal
}

// ReadPort is the consumer side of the boundary. The harness drives Ready;
// the device drives Valid and Data.
type ReadPort struct {
	Clock *sim.Signal
	Valid *sim.Signal
	Ready *sim.Signal
	Data  *sim.Signal
}

// Device is the externally observable boundary of a device under test,
// including read-only reflection of its build parameters.
type Device interface {
	Name() string
	DataWidth() int
	FIFODepth() int
	WritePort() WritePort
	ReadPort() ReadPort
}

// Config carries the build parameters of one device instance.
type Config struct {
	DataWidth int
	FIFODepth int
}

// Validate checks the parameter ranges every model supports.
func (c Config) Validate() error {
	if c.DataWidth < 1 || c.DataWidth > 64 {
		return fmt.Errorf("data width must be within 1..64, got %d", c.DataWidth)
	}
	if c.FIFODepth < 1 || c.FIFODepth > MaxDepth {
		return fmt.Errorf("fifo depth must be within 1..%d, got %d", MaxDepth, c.FIFODepth)
	}
	return nil
}

// MaxDepth bounds the storage a model will allocate.
const MaxDepth = 1 << 16

// Builder instantiates a device inside a simulator. A sweep calls it once per
// parameter point.
type Builder func(s *sim.Simulator, cfg Config) (Device, error)

// NewPorts allocates the eight boundary signals for a device named name.
func NewPorts(s *sim.Simulator, name string, width int) (WritePort, ReadPort) {
	w := WritePort{
		Clock: s.NewSignal(name+".write_clock", 1),
		Valid: s.NewSignal(name+".write_valid", 1),
		Ready: s.NewSignal(name+".write_ready", 1),
		Data:  s.NewSignal(name+".write_data", width),
	}
	r := ReadPort{
		Clock: s.NewSignal(name+".read_clock", 1),
		Valid: s.NewSignal(name+".read_valid", 1),
		Ready: s.NewSignal(name+".read_ready", 1),
		Data:  s.NewSignal(name+".read_data", width),
	}
	return w, r
}
