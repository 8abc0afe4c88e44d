package dut

import "github.com/LukasVik/funny-fifo/internal/sim"

// FlipBit returns an output hook that inverts bit of the word at position
// index and leaves every other word untouched.
func FlipBit(index uint64, bit int) OutputHook {
	return func(i, word uint64) uint64 {
		if i == index {
			return word ^ (uint64(1) << uint(bit))
		}
		return word
	}
}

// Stuck is a device that never accepts and never produces a word: write
// ready and read valid stay low forever.
type Stuck struct {
	cfg Config
	w   WritePort
	r   ReadPort
}

// NewStuck instantiates a Stuck device inside s.
func NewStuck(s *sim.Simulator, cfg Config) (*Stuck, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w, r := NewPorts(s, "stuck_fifo", cfg.DataWidth)
	return &Stuck{cfg: cfg, w: w, r: r}, nil
}

// StuckBuilder is a Builder for Stuck.
func StuckBuilder(s *sim.Simulator, cfg Config) (Device, error) {
	return NewStuck(s, cfg)
}

func (d *Stuck) Name() string { return "stuck_fifo" }

func (d *Stuck) DataWidth() int { return d.cfg.DataWidth }

func (d *Stuck) FIFODepth() int { return d.cfg.FIFODepth }

func (d *Stuck) WritePort() WritePort { return d.w }

func (d *Stuck) ReadPort() ReadPort { return d.r }
